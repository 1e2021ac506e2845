package main

import (
	"log"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"bv01/models"
	"bv01/pkg/ocr"

	"github.com/disintegration/imaging"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// maxUploadBytes caps a single uploaded file; oversized files are skipped
// like any other bad file in a batch.
const maxUploadBytes = 5 * 1024 * 1024

// App bundles the stores and the OCR engine consumed by the handlers.
type App struct {
	cfg     Config
	staging *StagingStore
	catalog *CatalogStore
	engine  ocr.Engine
}

func newApp(cfg Config, engine ocr.Engine) *App {
	return &App{
		cfg:     cfg,
		staging: NewStagingStore(cfg.StagingDir),
		catalog: NewCatalogStore(cfg.CatalogFile),
		engine:  engine,
	}
}

func setupRoutes(r *gin.Engine, app *App) {
	r.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	r.POST("/upload", app.uploadHandler)
	r.POST("/upload_brand_slides", app.uploadBrandSlidesHandler)
	r.POST("/save_brand_visual", app.saveBrandVisualHandler)
	r.GET("/get_brand_visuals", app.getBrandVisualsHandler)
	r.POST("/confirm_single", app.confirmSingleHandler)
	r.POST("/confirm_bulk", app.confirmBulkHandler)
	r.GET("/download/:filename", app.downloadHandler)
}

// previewResult is one staged upload reported back for review before confirm.
type previewResult struct {
	ID       string `json:"id"`
	Text     string `json:"text"`
	Preview  string `json:"preview"`
	Ext      string `json:"ext"`
	Filename string `json:"filename,omitempty"`
}

// confirmItem references a staged file plus the (possibly user-edited) text
// it should be named from.
type confirmItem struct {
	ID   string `json:"id"`
	Text string `json:"text"`
	Ext  string `json:"ext"`
}

// stageFiles stages and OCRs a batch. Files that are oversized, unreadable,
// nameless or undecodable are skipped; the batch succeeds with whatever
// survived.
func (a *App) stageFiles(files []*multipart.FileHeader, withFilename bool) []previewResult {
	results := make([]previewResult, 0, len(files))
	for _, fh := range files {
		if fh.Filename == "" {
			continue
		}
		if fh.Size > maxUploadBytes {
			log.Printf("skip oversized upload %s (%d bytes)", fh.Filename, fh.Size)
			continue
		}
		src, err := fh.Open()
		if err != nil {
			log.Printf("skip unreadable upload %s: %v", fh.Filename, err)
			continue
		}
		staged, err := a.staging.Stage(src, fh.Filename)
		_ = src.Close()
		if err != nil {
			log.Printf("skip upload %s: %v", fh.Filename, err)
			continue
		}
		res := previewResult{
			ID:      staged.ID,
			Text:    ocr.MainText(a.engine, staged.Path),
			Preview: filepath.ToSlash(staged.Path),
			Ext:     staged.Ext,
		}
		if withFilename {
			res.Filename = staged.Name
		}
		results = append(results, res)
	}
	return results
}

// uploadHandler accepts one image (mode=single, field "image") or several
// (mode=bulk, field "images") and returns a preview row per staged file.
func (a *App) uploadHandler(c *gin.Context) {
	mode := c.DefaultPostForm("mode", "single")
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no image uploaded"})
		return
	}
	var files []*multipart.FileHeader
	if mode == "bulk" {
		files = form.File["images"]
	} else {
		files = form.File["image"]
	}
	if len(files) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no image uploaded"})
		return
	}
	if mode == "single" && len(files) != 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "single mode requires exactly one image"})
		return
	}
	results := a.stageFiles(files, false)
	if len(results) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no valid images processed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"mode": mode, "results": results})
}

// uploadBrandSlidesHandler stages a batch of brand slides; rows additionally
// carry the sanitized client filename for display.
func (a *App) uploadBrandSlidesHandler(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no images uploaded"})
		return
	}
	files := form.File["slides"]
	if len(files) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no images uploaded"})
		return
	}
	results := a.stageFiles(files, true)
	if len(results) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no valid images processed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}

// saveBrandVisualHandler finalizes a slide batch: every slide is written to
// permanent storage and to the response zip under the same resolved name,
// then one catalog entry records the batch. Slides that vanished from
// staging or fail to decode are skipped without failing the request.
func (a *App) saveBrandVisualHandler(c *gin.Context) {
	var req struct {
		BrandName string        `json:"brandName"`
		Slides    []confirmItem `json:"slides"`
		Sequence  int           `json:"sequence"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	brand := strings.TrimSpace(req.BrandName)
	if brand == "" || len(req.Slides) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "brand name and slides are required"})
		return
	}
	if req.Sequence == 0 {
		req.Sequence = 1
	}

	zb := newZipBuilder()
	saved := make([]models.SavedImage, 0, len(req.Slides))
	for idx, slide := range req.Slides {
		tempPath, ok := a.staging.Lookup(slide.ID, slide.Ext)
		if !ok {
			continue
		}
		img, err := imaging.Open(tempPath)
		if err != nil {
			_ = a.staging.Discard(slide.ID, slide.Ext)
			continue
		}
		text := strings.TrimSpace(slide.Text)
		// The permanent directory owns collision resolution; the zip entry
		// reuses the resolved name so both destinations match.
		filename := resolveName(text, dirHasFile(a.cfg.UploadDir))
		finalPath := filepath.Join(a.cfg.UploadDir, filename)
		if err := writePNG(img, finalPath); err != nil {
			log.Printf("save slide %s: %v", slide.ID, err)
			_ = a.staging.Discard(slide.ID, slide.Ext)
			continue
		}
		if data, err := encodePNG(img); err == nil {
			if err := zb.Add(filename, data); err != nil {
				log.Printf("zip add %s: %v", filename, err)
			}
		}
		saved = append(saved, models.SavedImage{
			Filename: filename,
			OCRText:  text,
			Path:     filepath.ToSlash(finalPath),
			Order:    idx + 1,
		})
		_ = a.staging.Discard(slide.ID, slide.Ext)
	}

	entry := models.BrandVisual{
		ID:        uuid.NewString(),
		BrandName: brand,
		Sequence:  req.Sequence,
		Images:    saved,
		CreatedAt: time.Now(),
	}
	if err := a.catalog.Append(entry); err != nil {
		log.Printf("catalog append: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update catalog"})
		return
	}
	data, err := zb.Bytes()
	if err != nil {
		log.Printf("build archive: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to build archive"})
		return
	}
	sendZip(c, "brand_visual_slides.zip", data)
}

func (a *App) getBrandVisualsHandler(c *gin.Context) {
	entries, err := a.catalog.Load()
	if err != nil {
		log.Printf("catalog load: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load catalog"})
		return
	}
	c.JSON(http.StatusOK, entries)
}

// confirmSingleHandler finalizes one staged image into permanent storage and
// returns its download link. The catalog is not touched on this path.
func (a *App) confirmSingleHandler(c *gin.Context) {
	var req confirmItem
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	tempPath, ok := a.staging.Lookup(req.ID, req.Ext)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "temp file not found"})
		return
	}
	img, err := imaging.Open(tempPath)
	if err != nil {
		_ = a.staging.Discard(req.ID, req.Ext)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to process image"})
		return
	}
	filename := resolveName(strings.TrimSpace(req.Text), dirHasFile(a.cfg.UploadDir))
	if err := writePNG(img, filepath.Join(a.cfg.UploadDir, filename)); err != nil {
		log.Printf("confirm %s: %v", req.ID, err)
		_ = a.staging.Discard(req.ID, req.Ext)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save image"})
		return
	}
	_ = a.staging.Discard(req.ID, req.Ext)
	c.JSON(http.StatusOK, gin.H{"download_link": "/download/" + filename})
}

// confirmBulkHandler packages staged images into a zip without touching
// permanent storage or the catalog. Collisions are resolved against the
// archive's own name list.
func (a *App) confirmBulkHandler(c *gin.Context) {
	var items []confirmItem
	if err := c.ShouldBindJSON(&items); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	zb := newZipBuilder()
	for _, it := range items {
		tempPath, ok := a.staging.Lookup(it.ID, it.Ext)
		if !ok {
			continue
		}
		img, err := imaging.Open(tempPath)
		if err != nil {
			_ = a.staging.Discard(it.ID, it.Ext)
			continue
		}
		data, err := encodePNG(img)
		if err != nil {
			_ = a.staging.Discard(it.ID, it.Ext)
			continue
		}
		name := resolveName(strings.TrimSpace(it.Text), zb.Has)
		if err := zb.Add(name, data); err != nil {
			log.Printf("zip add %s: %v", name, err)
			continue
		}
		_ = a.staging.Discard(it.ID, it.Ext)
	}
	data, err := zb.Bytes()
	if err != nil {
		log.Printf("build archive: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to build archive"})
		return
	}
	sendZip(c, "extracted_images.zip", data)
}

func (a *App) downloadHandler(c *gin.Context) {
	filename := c.Param("filename")
	if filename == "" || filename != filepath.Base(filename) || strings.Contains(filename, "..") {
		c.JSON(http.StatusNotFound, gin.H{"error": "file not found"})
		return
	}
	path := filepath.Join(a.cfg.UploadDir, filename)
	if _, err := os.Stat(path); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "file not found"})
		return
	}
	c.FileAttachment(path, filename)
}

func sendZip(c *gin.Context, name string, data []byte) {
	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	c.Data(http.StatusOK, "application/zip", data)
}
