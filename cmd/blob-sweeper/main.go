package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/pixvault/pixvault-api/internal/config"
	"github.com/pixvault/pixvault-api/internal/domain/image"
	"github.com/pixvault/pixvault-api/internal/pkg/database"
	"github.com/pixvault/pixvault-api/internal/pkg/logger"
	"github.com/pixvault/pixvault-api/internal/pkg/storage"
)

// WakeChannel is the Redis pub/sub channel that triggers an immediate
// sweep. Polling is still the main mechanism.
const WakeChannel = "pixvault:sweep"

// The sweeper removes blobs that no version references: leftovers of
// appends that wrote blobs but failed before committing the version
// record. Only blobs older than the configured minimum age are touched
// so an in-flight append is never raced.
func main() {
	cfg := config.Load()
	logger.Init(logger.Config{Level: cfg.LogLevel, Environment: cfg.Env})

	log.Info().
		Dur("interval", cfg.SweepInterval).
		Dur("min_age", cfg.SweepMinAge).
		Msg("Starting blob-sweeper")

	if cfg.DatabaseURL == "" {
		log.Fatal().Msg("DATABASE_URL is required: the sweeper needs the version ledger to know which blobs are live")
	}

	db, err := database.NewPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer database.ClosePostgres(db)

	repo := image.NewPostgresRepository(db)

	blobs, err := newStorage(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create blob storage")
	}

	rdb, err := database.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer database.CloseRedis(rdb)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	wake := make(chan struct{}, 1)
	if rdb != nil {
		go subscribeWakeups(ctx, rdb, wake)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		<-sigChan
		log.Info().Msg("Shutdown signal received")
		cancel()
	}()

	ticker := time.NewTicker(cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("blob-sweeper stopped")
			return
		case <-wake:
			// immediate sweep
		case <-ticker.C:
		}

		removed, err := sweepOnce(ctx, repo, blobs, cfg.SweepMinAge)
		if err != nil {
			log.Error().Err(err).Msg("Sweep failed")
			continue
		}
		if removed > 0 {
			log.Info().Int("removed", removed).Msg("Removed unreferenced blobs")
		}
	}
}

// sweepOnce deletes stale blobs that no version references
func sweepOnce(ctx context.Context, repo image.Repository, blobs storage.Storage, minAge time.Duration) (int, error) {
	stale, err := blobs.ListStale(ctx, image.BlobPrefix, minAge)
	if err != nil {
		return 0, err
	}
	if len(stale) == 0 {
		return 0, nil
	}

	referenced, err := repo.ListBlobKeys(ctx)
	if err != nil {
		return 0, err
	}
	live := make(map[string]struct{}, len(referenced))
	for _, key := range referenced {
		live[key] = struct{}{}
	}

	removed := 0
	for _, key := range stale {
		if _, ok := live[key]; ok {
			continue
		}
		if err := blobs.Delete(ctx, key); err != nil {
			log.Error().Err(err).Str("key", key).Msg("Failed to delete blob")
			continue
		}
		removed++
	}
	return removed, nil
}

func subscribeWakeups(ctx context.Context, rdb *redis.Client, wake chan<- struct{}) {
	sub := rdb.Subscribe(ctx, WakeChannel)
	defer func() { _ = sub.Close() }()

	for {
		select {
		case <-ctx.Done():
			return
		case <-sub.Channel():
			// non-blocking wake-up
			select {
			case wake <- struct{}{}:
			default:
			}
		}
	}
}

func newStorage(cfg *config.Config) (storage.Storage, error) {
	if cfg.StorageBackend == "s3" {
		return storage.NewS3Storage(storage.S3Config{
			Endpoint:  cfg.S3Endpoint,
			Region:    cfg.S3Region,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Bucket:    cfg.S3Bucket,
			PublicURL: cfg.S3PublicURL,
		})
	}
	return storage.NewLocalStorage(cfg.StoragePath, cfg.StorageBaseURL)
}
