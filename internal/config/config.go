package config

import (
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	// Addr is the address the HTTP server binds to, e.g. ":8080".
	Addr string

	// SurrealDB connection settings.
	DBUrl  string
	DBNs   string
	DBDb   string
	DBUser string
	DBPass string

	// JWTSecret signs and verifies identity tokens.
	JWTSecret string
	// TokenTTL is how long an issued token stays valid.
	TokenTTL time.Duration

	// PresenceDebounce is the quiet period the presence aggregator waits
	// after the last connect/disconnect before broadcasting the online set.
	PresenceDebounce time.Duration

	// UploadDir is where profile pictures are written.
	UploadDir string
}

// New loads configuration from environment variables.
func New() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	cfg := &Config{
		Addr:             getEnv("ADDR", ":8080"),
		DBUrl:            os.Getenv("SURREAL_URL"),
		DBUser:           os.Getenv("SURREAL_USER"),
		DBPass:           os.Getenv("SURREAL_PASS"),
		DBNs:             os.Getenv("SURREAL_NS"),
		DBDb:             os.Getenv("SURREAL_DB"),
		JWTSecret:        os.Getenv("JWT_SECRET"),
		TokenTTL:         getDuration("TOKEN_TTL", 24*time.Hour),
		PresenceDebounce: getDuration("PRESENCE_DEBOUNCE", 3*time.Second),
		UploadDir:        getEnv("UPLOAD_DIR", "uploads"),
	}

	if cfg.DBUrl == "" || cfg.DBNs == "" || cfg.DBDb == "" {
		log.Fatal("Required environment variables SURREAL_URL, SURREAL_NS, or SURREAL_DB are not set.")
	}
	if cfg.JWTSecret == "" {
		log.Fatal("Required environment variable JWT_SECRET is not set.")
	}

	return cfg
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Fatalf("Invalid duration for %s: %q", key, v)
	}
	return d
}
