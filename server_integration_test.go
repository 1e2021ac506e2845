package main

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"bv01/pkg/ocr"

	"github.com/gin-gonic/gin"
)

// scriptedEngine returns queued texts, one per Detect call; empty queue means
// no detections.
type scriptedEngine struct {
	texts []string
	err   error
}

func (e *scriptedEngine) Detect(path string) ([]ocr.Detection, error) {
	if e.err != nil {
		return nil, e.err
	}
	if len(e.texts) == 0 {
		return nil, nil
	}
	text := e.texts[0]
	e.texts = e.texts[1:]
	return []ocr.Detection{{Text: text, Box: image.Rect(0, 0, 100, 40)}}, nil
}

// testPNG renders a small opaque image with deterministic pixels.
func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(37 * x), G: uint8(59 * y), B: uint8(11 * (x + y)), A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode test png: %v", err)
	}
	return buf.Bytes()
}

func setupTestServer(t *testing.T, eng ocr.Engine) (*gin.Engine, *App) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg := Config{
		StagingDir:  t.TempDir(),
		UploadDir:   t.TempDir(),
		CatalogFile: filepath.Join(t.TempDir(), "brand_visual_db.json"),
	}
	app := newApp(cfg, eng)
	r := gin.New()
	setupRoutes(r, app)
	return r, app
}

func performRequest(r http.Handler, method, path string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

// multipartBody builds a form with files under field plus extra string fields.
func multipartBody(t *testing.T, field string, files map[string][]byte, extra map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)
	for k, v := range extra {
		_ = mw.WriteField(k, v)
	}
	for name, data := range files {
		w, err := mw.CreateFormFile(field, name)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := w.Write(data); err != nil {
			t.Fatalf("write form file: %v", err)
		}
	}
	_ = mw.Close()
	return buf, mw.FormDataContentType()
}

type uploadResponse struct {
	Mode    string          `json:"mode"`
	Results []previewResult `json:"results"`
}

func TestUploadSingleAndConfirm(t *testing.T) {
	r, app := setupTestServer(t, &scriptedEngine{})

	body, ct := multipartBody(t, "image", map[string][]byte{"logo.png": testPNG(t, 8, 8)}, map[string]string{"mode": "single"})
	resp := performRequest(r, http.MethodPost, "/upload", body, ct)
	if resp.Code != http.StatusOK {
		t.Fatalf("upload failed status=%d body=%s", resp.Code, resp.Body.String())
	}
	var up uploadResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &up); err != nil {
		t.Fatalf("parse upload response: %v", err)
	}
	if up.Mode != "single" || len(up.Results) != 1 {
		t.Fatalf("unexpected upload response: %+v", up)
	}
	res := up.Results[0]
	if res.Text != ocr.NoTextDetected {
		t.Fatalf("expected %q got %q", ocr.NoTextDetected, res.Text)
	}

	confirmBody, _ := json.Marshal(confirmItem{ID: res.ID, Text: "Acme Corp", Ext: res.Ext})
	resp = performRequest(r, http.MethodPost, "/confirm_single", bytes.NewReader(confirmBody), "application/json")
	if resp.Code != http.StatusOK {
		t.Fatalf("confirm failed status=%d body=%s", resp.Code, resp.Body.String())
	}
	var confirm struct {
		DownloadLink string `json:"download_link"`
	}
	_ = json.Unmarshal(resp.Body.Bytes(), &confirm)
	if confirm.DownloadLink != "/download/Acme Corp.png" {
		t.Fatalf("unexpected download link %q", confirm.DownloadLink)
	}

	// temp file must be gone, permanent file must exist
	if _, ok := app.staging.Lookup(res.ID, res.Ext); ok {
		t.Fatalf("temp file survived confirm")
	}
	savedPath := filepath.Join(app.cfg.UploadDir, "Acme Corp.png")
	if _, err := os.Stat(savedPath); err != nil {
		t.Fatalf("saved file missing: %v", err)
	}

	// saved PNG decodes to pixel-identical content
	f, err := os.Open(savedPath)
	if err != nil {
		t.Fatalf("open saved: %v", err)
	}
	saved, err := png.Decode(f)
	_ = f.Close()
	if err != nil {
		t.Fatalf("decode saved: %v", err)
	}
	orig, _ := png.Decode(bytes.NewReader(testPNG(t, 8, 8)))
	if saved.Bounds() != orig.Bounds() {
		t.Fatalf("bounds changed: %v vs %v", saved.Bounds(), orig.Bounds())
	}
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			wr, wg, wb, wa := orig.At(x, y).RGBA()
			gr, gg, gb, ga := saved.At(x, y).RGBA()
			if wr != gr || wg != gg || wb != gb || wa != ga {
				t.Fatalf("pixel (%d,%d) changed", x, y)
			}
		}
	}

	// download link works (segment escaped)
	resp = performRequest(r, http.MethodGet, "/download/"+url.PathEscape("Acme Corp.png"), nil, "")
	if resp.Code != http.StatusOK {
		t.Fatalf("download failed status=%d", resp.Code)
	}
}

func TestUploadSingleRequiresExactlyOneFile(t *testing.T) {
	r, _ := setupTestServer(t, &scriptedEngine{})
	body, ct := multipartBody(t, "image", map[string][]byte{
		"a.png": testPNG(t, 2, 2),
		"b.png": testPNG(t, 2, 2),
	}, map[string]string{"mode": "single"})
	resp := performRequest(r, http.MethodPost, "/upload", body, ct)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestUploadBulkSkipsBadFiles(t *testing.T) {
	r, _ := setupTestServer(t, &scriptedEngine{texts: []string{"Brand"}})
	body, ct := multipartBody(t, "images", map[string][]byte{
		"good.png": testPNG(t, 4, 4),
		"junk.png": []byte("definitely not an image"),
	}, map[string]string{"mode": "bulk"})
	resp := performRequest(r, http.MethodPost, "/upload", body, ct)
	if resp.Code != http.StatusOK {
		t.Fatalf("bulk upload failed status=%d body=%s", resp.Code, resp.Body.String())
	}
	var up uploadResponse
	_ = json.Unmarshal(resp.Body.Bytes(), &up)
	if len(up.Results) != 1 {
		t.Fatalf("expected 1 surviving file got %d", len(up.Results))
	}

	// all-bad batch is a hard failure
	body, ct = multipartBody(t, "images", map[string][]byte{"junk.png": []byte("nope")}, map[string]string{"mode": "bulk"})
	resp = performRequest(r, http.MethodPost, "/upload", body, ct)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty batch got %d", resp.Code)
	}
}

func TestUploadNoFiles(t *testing.T) {
	r, _ := setupTestServer(t, &scriptedEngine{})
	body, ct := multipartBody(t, "image", nil, map[string]string{"mode": "single"})
	resp := performRequest(r, http.MethodPost, "/upload", body, ct)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestConfirmSingleMissingTempFile(t *testing.T) {
	r, _ := setupTestServer(t, &scriptedEngine{})
	body, _ := json.Marshal(confirmItem{ID: "deadbeef", Text: "x", Ext: ".png"})
	resp := performRequest(r, http.MethodPost, "/confirm_single", bytes.NewReader(body), "application/json")
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", resp.Code)
	}
}

func TestConfirmBulkResolvesArchiveCollisions(t *testing.T) {
	r, app := setupTestServer(t, &scriptedEngine{texts: []string{"Logo", "Logo"}})

	body, ct := multipartBody(t, "images", map[string][]byte{
		"one.png": testPNG(t, 4, 4),
		"two.png": testPNG(t, 4, 4),
	}, map[string]string{"mode": "bulk"})
	resp := performRequest(r, http.MethodPost, "/upload", body, ct)
	if resp.Code != http.StatusOK {
		t.Fatalf("upload failed: %s", resp.Body.String())
	}
	var up uploadResponse
	_ = json.Unmarshal(resp.Body.Bytes(), &up)
	if len(up.Results) != 2 {
		t.Fatalf("expected 2 staged files got %d", len(up.Results))
	}

	items := []confirmItem{
		{ID: up.Results[0].ID, Text: "Logo", Ext: up.Results[0].Ext},
		{ID: up.Results[1].ID, Text: "Logo", Ext: up.Results[1].Ext},
	}
	payload, _ := json.Marshal(items)
	resp = performRequest(r, http.MethodPost, "/confirm_bulk", bytes.NewReader(payload), "application/json")
	if resp.Code != http.StatusOK {
		t.Fatalf("confirm_bulk failed status=%d body=%s", resp.Code, resp.Body.String())
	}
	if cd := resp.Header().Get("Content-Disposition"); cd == "" {
		t.Fatalf("missing attachment header")
	}
	entries := readZip(t, resp.Body.Bytes())
	if _, ok := entries["Logo.png"]; !ok {
		t.Fatalf("missing Logo.png in archive: %v", entryNames(entries))
	}
	if _, ok := entries["Logo_1.png"]; !ok {
		t.Fatalf("missing Logo_1.png in archive: %v", entryNames(entries))
	}

	// bulk confirm never touches permanent storage or the catalog
	files, _ := os.ReadDir(app.cfg.UploadDir)
	if len(files) != 0 {
		t.Fatalf("confirm_bulk wrote to permanent storage")
	}
	if _, err := os.Stat(app.cfg.CatalogFile); !os.IsNotExist(err) {
		t.Fatalf("confirm_bulk touched the catalog")
	}
}

func entryNames(entries map[string][]byte) []string {
	names := make([]string, 0, len(entries))
	for n := range entries {
		names = append(names, n)
	}
	return names
}

func TestSaveBrandVisual(t *testing.T) {
	r, app := setupTestServer(t, &scriptedEngine{texts: []string{"Second Slide", "First Slide"}})

	body, ct := multipartBody(t, "slides", map[string][]byte{
		"b.png": testPNG(t, 4, 4),
		"a.png": testPNG(t, 4, 4),
	}, nil)
	resp := performRequest(r, http.MethodPost, "/upload_brand_slides", body, ct)
	if resp.Code != http.StatusOK {
		t.Fatalf("upload_brand_slides failed: %s", resp.Body.String())
	}
	var up uploadResponse
	_ = json.Unmarshal(resp.Body.Bytes(), &up)
	if len(up.Results) != 2 {
		t.Fatalf("expected 2 slides got %d", len(up.Results))
	}
	for _, res := range up.Results {
		if res.Filename == "" {
			t.Fatalf("slide result missing filename: %+v", res)
		}
	}

	// both slides sanitize to the same name to exercise collision handling
	save := map[string]any{
		"brandName": "Acme",
		"sequence":  2,
		"slides": []confirmItem{
			{ID: up.Results[0].ID, Text: "Brand", Ext: up.Results[0].Ext},
			{ID: up.Results[1].ID, Text: "Brand", Ext: up.Results[1].Ext},
		},
	}
	payload, _ := json.Marshal(save)
	resp = performRequest(r, http.MethodPost, "/save_brand_visual", bytes.NewReader(payload), "application/json")
	if resp.Code != http.StatusOK {
		t.Fatalf("save_brand_visual failed status=%d body=%s", resp.Code, resp.Body.String())
	}

	entries := readZip(t, resp.Body.Bytes())
	if len(entries) != 2 {
		t.Fatalf("expected 2 archive entries got %v", entryNames(entries))
	}
	for _, name := range []string{"Brand.png", "Brand_1.png"} {
		if _, ok := entries[name]; !ok {
			t.Fatalf("missing %s in archive: %v", name, entryNames(entries))
		}
		if _, err := os.Stat(filepath.Join(app.cfg.UploadDir, name)); err != nil {
			t.Fatalf("missing %s in permanent storage: %v", name, err)
		}
	}

	cat, err := app.catalog.Load()
	if err != nil {
		t.Fatalf("catalog load: %v", err)
	}
	if len(cat) != 1 {
		t.Fatalf("expected 1 catalog entry got %d", len(cat))
	}
	entry := cat[0]
	if entry.BrandName != "Acme" || entry.Sequence != 2 || entry.ID == "" {
		t.Fatalf("unexpected catalog entry: %+v", entry)
	}
	if len(entry.Images) != 2 {
		t.Fatalf("expected 2 images got %d", len(entry.Images))
	}
	// order follows input position, not filename
	if entry.Images[0].Order != 1 || entry.Images[1].Order != 2 {
		t.Fatalf("order fields wrong: %+v", entry.Images)
	}
	if entry.Images[0].Filename != "Brand.png" || entry.Images[1].Filename != "Brand_1.png" {
		t.Fatalf("filenames wrong: %+v", entry.Images)
	}
}

func TestSaveBrandVisualValidation(t *testing.T) {
	r, app := setupTestServer(t, &scriptedEngine{})
	cases := []map[string]any{
		{"brandName": "  ", "slides": []confirmItem{{ID: "x", Text: "t", Ext: ".png"}}, "sequence": 1},
		{"brandName": "Acme", "slides": []confirmItem{}, "sequence": 1},
	}
	for _, payload := range cases {
		body, _ := json.Marshal(payload)
		resp := performRequest(r, http.MethodPost, "/save_brand_visual", bytes.NewReader(body), "application/json")
		if resp.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 got %d for %v", resp.Code, payload)
		}
	}
	// no catalog mutation, no files written
	if _, err := os.Stat(app.cfg.CatalogFile); !os.IsNotExist(err) {
		t.Fatalf("validation failure mutated catalog")
	}
	files, _ := os.ReadDir(app.cfg.UploadDir)
	if len(files) != 0 {
		t.Fatalf("validation failure wrote files")
	}
}

func TestGetBrandVisuals(t *testing.T) {
	r, app := setupTestServer(t, &scriptedEngine{})
	resp := performRequest(r, http.MethodGet, "/get_brand_visuals", nil, "")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if body := resp.Body.String(); body != "[]" {
		t.Fatalf("expected empty array got %s", body)
	}

	if err := app.catalog.Append(testEntry("Acme")); err != nil {
		t.Fatalf("seed catalog: %v", err)
	}
	resp = performRequest(r, http.MethodGet, "/get_brand_visuals", nil, "")
	var entries []map[string]any
	if err := json.Unmarshal(resp.Body.Bytes(), &entries); err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(entries) != 1 || entries[0]["brand_name"] != "Acme" {
		t.Fatalf("unexpected catalog response: %v", entries)
	}
}

func TestDownloadNotFound(t *testing.T) {
	r, _ := setupTestServer(t, &scriptedEngine{})
	resp := performRequest(r, http.MethodGet, "/download/nope.png", nil, "")
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", resp.Code)
	}
	resp = performRequest(r, http.MethodGet, "/download/..", nil, "")
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for traversal got %d", resp.Code)
	}
}

func TestHealthz(t *testing.T) {
	r, _ := setupTestServer(t, &scriptedEngine{})
	resp := performRequest(r, http.MethodGet, "/healthz", nil, "")
	if resp.Code != http.StatusOK || resp.Body.String() != "ok" {
		t.Fatalf("healthz failed: %d %s", resp.Code, resp.Body.String())
	}
}
