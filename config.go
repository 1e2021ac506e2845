package main

import (
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
)

// Config carries the filesystem locations and server settings. Everything is
// env-driven with the original relative-path defaults.
type Config struct {
	Port        string
	StagingDir  string
	UploadDir   string
	CatalogFile string
	OCRLang     string
	StagingTTL  time.Duration
}

// loadConfig reads the environment, auto-loading ./.env first. Variables
// already set in the environment win over .env values.
func loadConfig() Config {
	_ = godotenv.Load()
	cfg := Config{
		Port:        envOr("PORT", "8081"),
		StagingDir:  envOr("STAGING_DIR", filepath.Join("static", "temp")),
		UploadDir:   envOr("UPLOAD_DIR", filepath.Join("static", "uploads")),
		CatalogFile: envOr("CATALOG_FILE", "brand_visual_db.json"),
		OCRLang:     envOr("OCR_LANG", "eng"),
		StagingTTL:  time.Hour,
	}
	if v := os.Getenv("STAGING_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.StagingTTL = d
		}
	}
	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// ensureDirs creates the staging and permanent storage directories.
func (c Config) ensureDirs() error {
	if err := os.MkdirAll(c.StagingDir, 0o755); err != nil {
		return err
	}
	return os.MkdirAll(c.UploadDir, 0o755)
}
