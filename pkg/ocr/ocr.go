package ocr

import (
	"fmt"
	"image"
	"strings"

	"github.com/otiai10/gosseract/v2"
)

// Detection is one recognized text region: the text itself plus the bounding
// box it was read from. The box height approximates visual prominence.
type Detection struct {
	Text       string
	Box        image.Rectangle
	Confidence float64
}

// Engine produces text detections for an image file.
type Engine interface {
	Detect(path string) ([]Detection, error)
}

// Tesseract runs line-level OCR through gosseract. A fresh client is created
// per call; the tesseract API is not safe for concurrent use on one client.
type Tesseract struct {
	lang string
}

// NewTesseract returns an engine for the given language (default "eng").
func NewTesseract(lang string) *Tesseract {
	if lang == "" {
		lang = "eng"
	}
	return &Tesseract{lang: lang}
}

// Detect preprocesses the image and returns one detection per text line.
// Whitespace-only lines are dropped.
func (t *Tesseract) Detect(path string) ([]Detection, error) {
	prepared, cleanup, err := prepareImage(path)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	client := gosseract.NewClient()
	defer client.Close()
	_ = client.SetLanguage(t.lang)
	client.SetImage(prepared)

	boxes, err := client.GetBoundingBoxes(gosseract.RIL_TEXTLINE)
	if err != nil {
		return nil, fmt.Errorf("ocr error: %w", err)
	}
	out := make([]Detection, 0, len(boxes))
	for _, b := range boxes {
		if strings.TrimSpace(b.Word) == "" {
			continue
		}
		out = append(out, Detection{Text: b.Word, Box: b.Box, Confidence: b.Confidence})
	}
	return out, nil
}
