package models

import "time"

// SavedImage is one confirmed slide inside a brand visual. Filename is the
// collision-resolved name under the permanent upload directory; OCRText keeps
// the text the file was named from, untouched. Order is the slide's 1-based
// position in the save request, independent of processing order.
type SavedImage struct {
	Filename string `json:"filename"`
	OCRText  string `json:"ocr_text"`
	Path     string `json:"path"`
	Order    int    `json:"order"`
}

// BrandVisual is one confirmed save batch. Entries are append-only: once
// written to the catalog they are never mutated or deleted.
type BrandVisual struct {
	ID        string       `json:"id"`
	BrandName string       `json:"brand_name"`
	Sequence  int          `json:"sequence"`
	Images    []SavedImage `json:"images"`
	CreatedAt time.Time    `json:"created_at"`
}
