package main

import (
	"log"
	"os"

	"bv01/pkg/ocr"

	"github.com/gin-gonic/gin"
)

func main() {
	cfg := loadConfig()
	if err := cfg.ensureDirs(); err != nil {
		log.Fatalf("failed to create storage directories: %v", err)
	}

	if os.Getenv("MODE") == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	app := newApp(cfg, ocr.NewTesseract(cfg.OCRLang))

	jan := newJanitor(cfg.StagingDir, cfg.StagingTTL)
	go jan.Run()
	defer jan.Stop()

	r := gin.Default()
	setupRoutes(r, app)
	// Slide previews reference paths under static/; serve them when present.
	if _, err := os.Stat("static"); err == nil {
		r.Static("/static", "static")
	}

	log.Printf("listening on :%s", cfg.Port)
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}
