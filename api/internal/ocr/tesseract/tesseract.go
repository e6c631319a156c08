package tesseract

import (
	"context"
	"fmt"
	"image"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/otiai10/gosseract/v2"

	"rx-reader/api/internal/ocr"
	"rx-reader/api/internal/util"
)

// Engine runs Tesseract through gosseract. A client is created per call:
// gosseract clients must not be shared between goroutines.
type Engine struct {
	Langs []string
}

func New(langs []string) *Engine {
	if len(langs) == 0 {
		langs = []string{"eng"}
	}
	return &Engine{Langs: langs}
}

func (e *Engine) Name() string { return "tesseract" }

func (e *Engine) Recognize(ctx context.Context, img image.Image) ([]ocr.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	png, err := util.EncodeImage(img, imaging.PNG)
	if err != nil {
		return nil, fmt.Errorf("tesseract: encode image: %w", err)
	}

	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(e.Langs...); err != nil {
		return nil, fmt.Errorf("tesseract: set language: %w", err)
	}
	if err := client.SetPageSegMode(gosseract.PSM_AUTO); err != nil {
		return nil, fmt.Errorf("tesseract: set page seg mode: %w", err)
	}
	if err := client.SetImageFromBytes(png); err != nil {
		return nil, fmt.Errorf("tesseract: set image: %w", err)
	}

	boxes, err := client.GetBoundingBoxes(gosseract.RIL_TEXTLINE)
	if err != nil {
		return nil, fmt.Errorf("tesseract: recognize: %w", err)
	}

	var page ocr.Page
	for _, b := range boxes {
		if s := strings.TrimSpace(b.Word); s != "" {
			page.Lines = append(page.Lines, ocr.Line{Text: s})
		}
	}
	return []ocr.Page{page}, nil
}
