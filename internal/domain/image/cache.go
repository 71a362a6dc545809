package image

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const thumbnailTTL = 15 * time.Minute

// ThumbnailCache is a read-through Redis cache for thumbnail bytes.
// Versions are immutable, so a cached entry can never go stale; entries
// simply age out. A nil cache is valid and degrades to pass-through.
type ThumbnailCache struct {
	client *redis.Client
}

// NewThumbnailCache creates a thumbnail cache.
// Returns nil when no Redis client is configured.
func NewThumbnailCache(client *redis.Client) *ThumbnailCache {
	if client == nil {
		return nil
	}
	return &ThumbnailCache{client: client}
}

// Get returns cached thumbnail bytes, or nil on a miss
func (c *ThumbnailCache) Get(ctx context.Context, imageID uuid.UUID, versionID int) []byte {
	if c == nil {
		return nil
	}
	data, err := c.client.Get(ctx, thumbnailKey(imageID, versionID)).Bytes()
	if err != nil {
		return nil
	}
	return data
}

// Set stores thumbnail bytes with a TTL
func (c *ThumbnailCache) Set(ctx context.Context, imageID uuid.UUID, versionID int, data []byte) {
	if c == nil {
		return
	}
	if err := c.client.Set(ctx, thumbnailKey(imageID, versionID), data, thumbnailTTL).Err(); err != nil {
		log.Warn().Err(err).Msg("Failed to cache thumbnail")
	}
}

func thumbnailKey(imageID uuid.UUID, versionID int) string {
	return fmt.Sprintf("thumb:%s:%d", imageID, versionID)
}
