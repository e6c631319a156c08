package ocr

import (
	"context"
	"image"
)

type Engine interface {
	Name() string
	Recognize(ctx context.Context, img image.Image) ([]Page, error)
}

// ExtractText runs the engine and joins its output. Engine errors are
// returned as is.
func ExtractText(ctx context.Context, e Engine, img image.Image) (string, error) {
	pages, err := e.Recognize(ctx, img)
	if err != nil {
		return "", err
	}
	return JoinPages(pages), nil
}
