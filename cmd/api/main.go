package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/pixvault/pixvault-api/internal/config"
	"github.com/pixvault/pixvault-api/internal/domain/image"
	"github.com/pixvault/pixvault-api/internal/middleware"
	"github.com/pixvault/pixvault-api/internal/pkg/database"
	"github.com/pixvault/pixvault-api/internal/pkg/imaging"
	"github.com/pixvault/pixvault-api/internal/pkg/logger"
	"github.com/pixvault/pixvault-api/internal/pkg/response"
	"github.com/pixvault/pixvault-api/internal/pkg/storage"
)

const imagesBasePath = "/images"

func main() {
	cfg := config.Load()
	logger.Init(logger.Config{Level: cfg.LogLevel, Environment: cfg.Env})

	log.Info().
		Str("env", cfg.Env).
		Str("port", cfg.Port).
		Msg("Starting PixVault API")

	// ---------- Repository ----------
	var repo image.Repository
	if cfg.DatabaseURL != "" {
		db, err := database.NewPostgres(cfg.DatabaseURL)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
		}
		defer database.ClosePostgres(db)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := image.EnsureSchema(ctx, db); err != nil {
			cancel()
			log.Fatal().Err(err).Msg("Failed to ensure database schema")
		}
		cancel()

		repo = image.NewPostgresRepository(db)
	} else {
		log.Warn().Msg("DATABASE_URL not set, using in-memory registry")
		repo = image.NewMemoryRepository()
	}

	// ---------- Blob store ----------
	blobs, err := newStorage(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create blob storage")
	}

	// ---------- Redis (optional thumbnail cache) ----------
	rdb, err := database.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer database.CloseRedis(rdb)

	// ---------- Core wiring ----------
	engine := imaging.NewEngine(imaging.Config{
		ThumbWidth:  cfg.ThumbWidth,
		ThumbHeight: cfg.ThumbHeight,
		Quality:     cfg.JPEGQuality,
		Brightness:  imaging.DefaultConfig().Brightness,
	})
	ledger := image.NewLedger(repo, blobs, engine)
	cache := image.NewThumbnailCache(rdb)
	service := image.NewService(repo, ledger, blobs, engine, cache)
	handler := image.NewHandler(service, blobs, imagesBasePath, cfg.MaxUploadMB)

	// ---------- Router ----------
	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recover)
	r.Use(middleware.CORSHandler(cfg.AllowedOrigins))

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		response.OK(w, map[string]string{"message": "Welcome to the PixVault API"})
	})
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		response.OK(w, map[string]string{"status": "ok"})
	})

	r.Mount(imagesBasePath, handler.Routes())

	// Local blob store doubles as the public file server in development
	if local, ok := blobs.(*storage.LocalStorage); ok {
		r.Mount("/files", http.StripPrefix("/files", local.FileServer()))
	}

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited properly")
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
