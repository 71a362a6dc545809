package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	Port string
	Env  string

	// Database (empty = in-memory registry, useful for local development)
	DatabaseURL string

	// Redis (empty = no thumbnail cache, no sweeper wakeups)
	RedisURL string

	// CORS
	AllowedOrigins []string

	// Storage
	StorageBackend string // local or s3
	StoragePath    string // base directory for local backend
	StorageBaseURL string // public URL prefix for stored blobs
	S3Endpoint     string
	S3Region       string
	S3AccessKey    string
	S3SecretKey    string
	S3Bucket       string
	S3PublicURL    string

	// Image processing
	ThumbWidth  int
	ThumbHeight int
	JPEGQuality int
	MaxUploadMB int

	// Sweeper
	SweepInterval time.Duration
	SweepMinAge   time.Duration

	// Logging
	LogLevel string
}

func Load() *Config {
	// Load .env file in development
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	return &Config{
		// Server
		Port: getEnv("PORT", "8080"),
		Env:  getEnv("ENV", "development"),

		// Database
		DatabaseURL: getEnv("DATABASE_URL", ""),

		// Redis
		RedisURL: getEnv("REDIS_URL", ""),

		// CORS
		AllowedOrigins: parseStringSlice(getEnv("ALLOWED_ORIGINS", "http://localhost:3000")),

		// Storage
		StorageBackend: getEnv("STORAGE_BACKEND", "local"),
		StoragePath:    getEnv("STORAGE_PATH", "./uploads"),
		StorageBaseURL: getEnv("STORAGE_BASE_URL", "http://localhost:8080/files"),
		S3Endpoint:     getEnv("S3_ENDPOINT", ""),
		S3Region:       getEnv("S3_REGION", "auto"),
		S3AccessKey:    getEnv("S3_ACCESS_KEY", ""),
		S3SecretKey:    getEnv("S3_SECRET_KEY", ""),
		S3Bucket:       getEnv("S3_BUCKET", "pixvault-images"),
		S3PublicURL:    getEnv("S3_PUBLIC_URL", ""),

		// Image processing
		ThumbWidth:  parseInt(getEnv("THUMB_WIDTH", "150"), 150),
		ThumbHeight: parseInt(getEnv("THUMB_HEIGHT", "150"), 150),
		JPEGQuality: parseInt(getEnv("JPEG_QUALITY", "85"), 85),
		MaxUploadMB: parseInt(getEnv("MAX_UPLOAD_MB", "10"), 10),

		// Sweeper
		SweepInterval: parseDuration(getEnv("SWEEP_INTERVAL", "10m"), 10*time.Minute),
		SweepMinAge:   parseDuration(getEnv("SWEEP_MIN_AGE", "1h"), 1*time.Hour),

		// Logging
		LogLevel: getEnv("LOG_LEVEL", "debug"),
	}
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func parseInt(s string, defaultValue int) int {
	value, err := strconv.Atoi(s)
	if err != nil {
		return defaultValue
	}
	return value
}

func parseDuration(s string, defaultValue time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultValue
	}
	return d
}

func parseStringSlice(s string) []string {
	if s == "" {
		return []string{}
	}
	var result []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			result = append(result, part)
		}
	}
	return result
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}
