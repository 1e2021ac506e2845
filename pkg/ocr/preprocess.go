package ocr

import (
	"fmt"
	"os"

	"github.com/disintegration/imaging"
)

// prepareImage grayscales the input and upscales small images before OCR,
// writing the result to a temp PNG for tesseract. Preprocessing is best
// effort: if the temp file cannot be produced the original path is used.
// cleanup must be called once OCR is done.
func prepareImage(path string) (string, func(), error) {
	img, err := imaging.Open(path)
	if err != nil {
		return "", nil, fmt.Errorf("open image: %w", err)
	}
	gray := imaging.Grayscale(img)
	if gray.Bounds().Dy() < 800 {
		gray = imaging.Resize(gray, 0, 1200, imaging.Lanczos)
	}
	tmpFile, err := os.CreateTemp("", "ocr-*.png")
	if err != nil {
		return path, func() {}, nil
	}
	tmp := tmpFile.Name()
	_ = tmpFile.Close()
	if err := imaging.Save(gray, tmp); err != nil {
		_ = os.Remove(tmp)
		return path, func() {}, nil
	}
	return tmp, func() { _ = os.Remove(tmp) }, nil
}
