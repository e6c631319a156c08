package util

import (
	"bytes"
	"image"

	"github.com/disintegration/imaging"
)

// EncodeImage serialises img for engines that take bytes rather than pixels.
func EncodeImage(img image.Image, format imaging.Format) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, format, imaging.JPEGQuality(90)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
