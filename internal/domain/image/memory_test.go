package image

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
)

func seedImage(t *testing.T, repo Repository) *Image {
	t.Helper()

	img := &Image{
		ID:        uuid.New(),
		Filename:  "cat.png",
		CreatedAt: time.Now().UTC(),
	}
	seed := &Version{
		ImageID:      img.ID,
		VersionID:    1,
		ContentKey:   "images/" + img.ID.String() + "/1/content.jpg",
		ThumbnailKey: "images/" + img.ID.String() + "/1/thumbnail.jpg",
		Origin:       OriginInitial,
		CreatedAt:    img.CreatedAt,
	}
	if err := repo.CreateImage(context.Background(), img, seed); err != nil {
		t.Fatalf("CreateImage: %v", err)
	}
	return img
}

func TestMemoryCreateSetsPointer(t *testing.T) {
	repo := NewMemoryRepository()
	img := seedImage(t, repo)

	got, err := repo.GetImage(context.Background(), img.ID)
	if err != nil {
		t.Fatalf("GetImage: %v", err)
	}
	if got == nil || got.LatestVersion != 1 {
		t.Fatalf("GetImage = %+v, want latest_version 1", got)
	}

	latest, err := repo.GetLatestVersion(context.Background(), img.ID)
	if err != nil {
		t.Fatalf("GetLatestVersion: %v", err)
	}
	if latest == nil || latest.VersionID != 1 || latest.Origin != OriginInitial {
		t.Fatalf("GetLatestVersion = %+v", latest)
	}
}

func TestMemoryGetMissing(t *testing.T) {
	repo := NewMemoryRepository()

	img, err := repo.GetImage(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("GetImage: %v", err)
	}
	if img != nil {
		t.Fatalf("GetImage = %+v, want nil", img)
	}

	v, err := repo.GetVersion(context.Background(), uuid.New(), 1)
	if err != nil {
		t.Fatalf("GetVersion: %v", err)
	}
	if v != nil {
		t.Fatalf("GetVersion = %+v, want nil", v)
	}
}

func TestMemoryAppendAdvancesPointer(t *testing.T) {
	repo := NewMemoryRepository()
	img := seedImage(t, repo)

	v2 := &Version{
		ImageID:        img.ID,
		VersionID:      2,
		ContentKey:     "images/" + img.ID.String() + "/2/content.jpg",
		ThumbnailKey:   "images/" + img.ID.String() + "/2/thumbnail.jpg",
		Origin:         OriginEdit,
		Transformation: "grayscale",
		CreatedAt:      time.Now().UTC(),
	}
	if err := repo.AppendVersion(context.Background(), v2); err != nil {
		t.Fatalf("AppendVersion: %v", err)
	}

	got, _ := repo.GetImage(context.Background(), img.ID)
	if got.LatestVersion != 2 {
		t.Fatalf("latest_version = %d, want 2", got.LatestVersion)
	}

	versions, err := repo.ListVersions(context.Background(), img.ID)
	if err != nil {
		t.Fatalf("ListVersions: %v", err)
	}
	if len(versions) != 2 || versions[0].VersionID != 1 || versions[1].VersionID != 2 {
		t.Fatalf("unexpected history: %+v", versions)
	}
}

func TestMemoryAppendToMissingImage(t *testing.T) {
	repo := NewMemoryRepository()

	err := repo.AppendVersion(context.Background(), &Version{ImageID: uuid.New(), VersionID: 1})
	if err != ErrImageNotFound {
		t.Fatalf("AppendVersion = %v, want ErrImageNotFound", err)
	}
}

func TestMemoryDeleteRemovesHistory(t *testing.T) {
	repo := NewMemoryRepository()
	img := seedImage(t, repo)

	if err := repo.DeleteImage(context.Background(), img.ID); err != nil {
		t.Fatalf("DeleteImage: %v", err)
	}

	versions, err := repo.ListVersions(context.Background(), img.ID)
	if err != nil {
		t.Fatalf("ListVersions: %v", err)
	}
	if len(versions) != 0 {
		t.Fatalf("history survives delete: %+v", versions)
	}

	keys, err := repo.ListBlobKeys(context.Background())
	if err != nil {
		t.Fatalf("ListBlobKeys: %v", err)
	}
	if len(keys) != 0 {
		t.Fatalf("blob keys survive delete: %v", keys)
	}
}

func TestMemoryReturnsCopies(t *testing.T) {
	repo := NewMemoryRepository()
	img := seedImage(t, repo)

	got, _ := repo.GetImage(context.Background(), img.ID)
	got.Filename = "mutated.png"

	again, _ := repo.GetImage(context.Background(), img.ID)
	if again.Filename != "cat.png" {
		t.Fatalf("caller mutation leaked into store: %s", again.Filename)
	}
}

func TestMemoryListBlobKeys(t *testing.T) {
	repo := NewMemoryRepository()
	img := seedImage(t, repo)

	keys, err := repo.ListBlobKeys(context.Background())
	if err != nil {
		t.Fatalf("ListBlobKeys: %v", err)
	}
	if len(keys) != 2 {
		t.Fatalf("ListBlobKeys returned %d keys, want 2", len(keys))
	}
	want := map[string]bool{
		"images/" + img.ID.String() + "/1/content.jpg":   true,
		"images/" + img.ID.String() + "/1/thumbnail.jpg": true,
	}
	for _, k := range keys {
		if !want[k] {
			t.Fatalf("unexpected key %s", k)
		}
	}
}
