package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"time"

	"github.com/disintegration/imaging"
	"github.com/sirupsen/logrus"
	_ "golang.org/x/image/webp"

	"rx-reader/api/internal/llm"
	"rx-reader/api/internal/ocr"
	"rx-reader/api/internal/prescription"
	"rx-reader/api/internal/util"
)

// Pipeline is image bytes in, medicine records out: decode, OCR, then the
// LLM correction pass. It is safe for concurrent use as long as its engines
// are.
type Pipeline struct {
	OCR    ocr.Engine
	LLM    *llm.Corrector
	Stream bool
}

func New(o ocr.Engine, c *llm.Corrector, stream bool) *Pipeline {
	return &Pipeline{OCR: o, LLM: c, Stream: stream}
}

func (p *Pipeline) Process(ctx context.Context, data []byte) ([]prescription.Medicine, error) {
	log := logrus.WithFields(logrus.Fields{"ocr": p.OCR.Name(), "bytes": len(data)})
	if id, ok := RequestID(ctx); ok {
		log = log.WithField("request_id", id)
	}

	img, err := DecodeRGB(data)
	if err != nil {
		log.WithError(err).Warn("decode failed")
		return nil, err
	}

	started := time.Now()
	text, err := ocr.ExtractText(ctx, p.OCR, img)
	if err != nil {
		log.WithError(err).Error("ocr failed")
		return nil, fmt.Errorf("%w: ocr %s: %w", prescription.ErrModelInference, p.OCR.Name(), err)
	}
	log.WithFields(logrus.Fields{
		"chars":    len(text),
		"duration": time.Since(started).Round(time.Millisecond),
	}).Debugf("ocr text: %s", util.Truncate(text, 512))

	items, err := p.LLM.Correct(ctx, text, p.Stream)
	if err != nil {
		log.WithError(err).Error("llm correction failed")
		return nil, err
	}
	log.WithField("items", len(items)).Info("prescription processed")
	return items, nil
}

// DecodeRGB decodes JPEG, PNG, GIF, BMP, TIFF or WebP data, applies EXIF
// orientation and drops the alpha channel.
func DecodeRGB(data []byte) (*image.NRGBA, error) {
	src, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", prescription.ErrImageDecode, err)
	}
	img := imaging.Clone(src)
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 0xff
	}
	return img, nil
}
