package ocr

import (
	"log"
	"strings"
)

// Sentinel texts returned when no usable detection exists. They flow to the
// client as the suggested filename text, so they must stay stable.
const (
	NoTextDetected = "No text detected"
	OCRFailed      = "OCR failed"
)

// MainText returns the trimmed text of the detection with the greatest
// bounding-box height, approximating the most prominent line in the image.
// Ties keep the first detection in engine order. Engine failures degrade to
// OCRFailed instead of propagating so an upload is never blocked by OCR.
func MainText(eng Engine, path string) string {
	dets, err := eng.Detect(path)
	if err != nil {
		log.Printf("OCR error %s: %v", path, err)
		return OCRFailed
	}
	if len(dets) == 0 {
		return NoTextDetected
	}
	largest := dets[0]
	for _, d := range dets[1:] {
		if d.Box.Dy() > largest.Box.Dy() {
			largest = d
		}
	}
	return strings.TrimSpace(largest.Text)
}
