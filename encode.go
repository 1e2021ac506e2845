package main

import (
	"bytes"
	"image"
	"image/png"
	"os"

	"github.com/disintegration/imaging"
)

// Confirmed files are stored uncompressed so a reload decodes to
// pixel-identical content with no encoder cost.
var pngOpts = imaging.PNGCompressionLevel(png.NoCompression)

// writePNG stores img losslessly at path. A partial file is removed on error.
func writePNG(img image.Image, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := imaging.Encode(f, img, imaging.PNG, pngOpts); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return err
	}
	return nil
}

// encodePNG renders img to lossless PNG bytes for archive entries.
func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG, pngOpts); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
