package image_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/pixvault/pixvault-api/internal/domain/image"
)

func newTestServer(t *testing.T) (*httptest.Server, *harness) {
	t.Helper()

	h := newHarness(t)
	handler := image.NewHandler(h.service, h.blobs, "/images", 10)

	r := chi.NewRouter()
	r.Mount("/images", handler.Routes())

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, h
}

type apiResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Details map[string]string `json:"details"`
	} `json:"error"`
}

func doJSON(t *testing.T, method, url string, body interface{}) (*http.Response, *apiResponse) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()

	var parsed apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil && resp.StatusCode != http.StatusNoContent {
		t.Fatalf("decode response: %v", err)
	}
	return resp, &parsed
}

func uploadPNG(t *testing.T, serverURL, filename string) *apiResponse {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("image", filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := fw.Write(testPNG(t)); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	mw.Close()

	resp, err := http.Post(serverURL+"/images/upload", mw.FormDataContentType(), &buf)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("upload status = %d, want 201", resp.StatusCode)
	}

	var parsed apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		t.Fatalf("decode upload response: %v", err)
	}
	return &parsed
}

type imagePayload struct {
	ID            string `json:"id"`
	Filename      string `json:"filename"`
	LatestVersion int    `json:"latest_version"`
	URL           string `json:"url"`
	ThumbnailURL  string `json:"thumbnail_url"`
}

type versionPayload struct {
	VersionID      int    `json:"version_id"`
	Origin         string `json:"origin"`
	Transformation string `json:"transformation"`
	SourceVersion  int    `json:"source_version"`
	ThumbnailURL   string `json:"thumbnail_url"`
}

type versionsPayload struct {
	Versions []versionPayload `json:"versions"`
	Latest   versionPayload   `json:"latest_version"`
}

func TestUploadAndGet(t *testing.T) {
	srv, _ := newTestServer(t)

	created := uploadPNG(t, srv.URL, "cat.png")

	var img imagePayload
	if err := json.Unmarshal(created.Data, &img); err != nil {
		t.Fatalf("unmarshal image: %v", err)
	}
	if img.Filename != "cat.png" || img.LatestVersion != 1 {
		t.Fatalf("unexpected image payload: %+v", img)
	}

	resp, parsed := doJSON(t, http.MethodGet, srv.URL+"/images/"+img.ID, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get status = %d", resp.StatusCode)
	}
	var got imagePayload
	if err := json.Unmarshal(parsed.Data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.ID != img.ID {
		t.Fatalf("get returned %s, want %s", got.ID, img.ID)
	}
}

func TestUploadRejectsBadExtension(t *testing.T) {
	srv, _ := newTestServer(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, _ := mw.CreateFormFile("image", "anim.gif")
	fw.Write(testPNG(t))
	mw.Close()

	resp, err := http.Post(srv.URL+"/images/upload", mw.FormDataContentType(), &buf)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestUploadRequiresFile(t *testing.T) {
	srv, _ := newTestServer(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.WriteField("name", "no file here")
	mw.Close()

	resp, err := http.Post(srv.URL+"/images/upload", mw.FormDataContentType(), &buf)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestListImages(t *testing.T) {
	srv, _ := newTestServer(t)

	uploadPNG(t, srv.URL, "one.png")
	uploadPNG(t, srv.URL, "two.png")

	resp, parsed := doJSON(t, http.MethodGet, srv.URL+"/images/", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list status = %d", resp.StatusCode)
	}

	var items []imagePayload
	if err := json.Unmarshal(parsed.Data, &items); err != nil {
		t.Fatalf("unmarshal list: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("list returned %d items, want 2", len(items))
	}
}

func TestEditAndVersionsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	created := uploadPNG(t, srv.URL, "cat.png")
	var img imagePayload
	json.Unmarshal(created.Data, &img)

	resp, parsed := doJSON(t, http.MethodPost, srv.URL+"/images/edit/"+img.ID, image.EditRequest{Transformation: "grayscale"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("edit status = %d", resp.StatusCode)
	}
	var v versionPayload
	if err := json.Unmarshal(parsed.Data, &v); err != nil {
		t.Fatalf("unmarshal version: %v", err)
	}
	if v.VersionID != 2 || v.Origin != "edit" || v.Transformation != "grayscale" {
		t.Fatalf("unexpected edit version: %+v", v)
	}

	resp, parsed = doJSON(t, http.MethodGet, srv.URL+"/images/versions/"+img.ID, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("versions status = %d", resp.StatusCode)
	}
	var vs versionsPayload
	if err := json.Unmarshal(parsed.Data, &vs); err != nil {
		t.Fatalf("unmarshal versions: %v", err)
	}
	if len(vs.Versions) != 2 || vs.Latest.VersionID != 2 {
		t.Fatalf("unexpected versions payload: %+v", vs)
	}
}

func TestEditRejectsUnknownTransformation(t *testing.T) {
	srv, _ := newTestServer(t)

	created := uploadPNG(t, srv.URL, "cat.png")
	var img imagePayload
	json.Unmarshal(created.Data, &img)

	resp, parsed := doJSON(t, http.MethodPost, srv.URL+"/images/edit/"+img.ID, image.EditRequest{Transformation: "sepia"})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", resp.StatusCode)
	}
	if parsed.Error == nil || parsed.Error.Code != "VALIDATION_ERROR" {
		t.Fatalf("unexpected error payload: %+v", parsed.Error)
	}

	// The rejected edit appended nothing
	_, versions := doJSON(t, http.MethodGet, srv.URL+"/images/versions/"+img.ID, nil)
	var vs versionsPayload
	json.Unmarshal(versions.Data, &vs)
	if len(vs.Versions) != 1 {
		t.Fatalf("history = %d entries after rejected edit", len(vs.Versions))
	}
}

func TestRevertEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	created := uploadPNG(t, srv.URL, "cat.png")
	var img imagePayload
	json.Unmarshal(created.Data, &img)

	doJSON(t, http.MethodPost, srv.URL+"/images/edit/"+img.ID, image.EditRequest{Transformation: "flip"})

	resp, parsed := doJSON(t, http.MethodPost, fmt.Sprintf("%s/images/revert/%s/1", srv.URL, img.ID), nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("revert status = %d", resp.StatusCode)
	}
	var v versionPayload
	if err := json.Unmarshal(parsed.Data, &v); err != nil {
		t.Fatalf("unmarshal version: %v", err)
	}
	if v.VersionID != 3 || v.Origin != "revert" || v.SourceVersion != 1 {
		t.Fatalf("unexpected revert version: %+v", v)
	}

	resp, _ = doJSON(t, http.MethodPost, fmt.Sprintf("%s/images/revert/%s/42", srv.URL, img.ID), nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("revert missing version status = %d, want 404", resp.StatusCode)
	}
}

func TestServeEndpoints(t *testing.T) {
	srv, _ := newTestServer(t)

	created := uploadPNG(t, srv.URL, "cat.png")
	var img imagePayload
	json.Unmarshal(created.Data, &img)

	for _, path := range []string{
		"/images/serve/latest/" + img.ID,
		"/images/serve/latest-thumbnail/" + img.ID,
		"/images/serve/thumbnail/" + img.ID + "/1",
	} {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("GET %s status = %d", path, resp.StatusCode)
		}
		if ct := resp.Header.Get("Content-Type"); ct != "image/jpeg" {
			t.Fatalf("GET %s content type = %s", path, ct)
		}
		resp.Body.Close()
	}
}

func TestDeleteEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	created := uploadPNG(t, srv.URL, "cat.png")
	var img imagePayload
	json.Unmarshal(created.Data, &img)

	req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/images/"+img.ID, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete status = %d, want 204", resp.StatusCode)
	}

	for _, path := range []string{
		"/images/" + img.ID,
		"/images/versions/" + img.ID,
		"/images/serve/latest/" + img.ID,
	} {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusNotFound {
			t.Fatalf("GET %s after delete status = %d, want 404", path, resp.StatusCode)
		}
	}
}

func TestInvalidIDsRejected(t *testing.T) {
	srv, _ := newTestServer(t)

	for _, path := range []string{
		"/images/not-a-uuid",
		"/images/versions/not-a-uuid",
		"/images/serve/latest/not-a-uuid",
	} {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("GET %s status = %d, want 400", path, resp.StatusCode)
		}
	}

	created := uploadPNG(t, srv.URL, "cat.png")
	var img imagePayload
	json.Unmarshal(created.Data, &img)

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/images/revert/"+img.ID+"/zero", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("revert bad version id status = %d, want 400", resp.StatusCode)
	}
}

func TestUploadOversizedBody(t *testing.T) {
	h := newHarness(t)
	handler := image.NewHandler(h.service, h.blobs, "/images", 1)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, _ := mw.CreateFormFile("image", "big.png")
	fw.Write(bytes.Repeat([]byte{0xff}, 2<<20))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/images/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	handler.Upload(rec, req)

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, want 413", rec.Code)
	}
	var parsed apiResponse
	if err := json.NewDecoder(rec.Body).Decode(&parsed); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if parsed.Error == nil || parsed.Error.Code != "FILE_TOO_LARGE" {
		t.Fatalf("unexpected error payload: %+v", parsed.Error)
	}
}

func TestUploadMalformedMultipart(t *testing.T) {
	h := newHarness(t)
	handler := image.NewHandler(h.service, h.blobs, "/images", 10)

	req := httptest.NewRequest(http.MethodPost, "/images/upload", bytes.NewReader([]byte("this is not a multipart body")))
	req.Header.Set("Content-Type", "multipart/form-data; boundary=deadbeef")
	rec := httptest.NewRecorder()
	handler.Upload(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}
