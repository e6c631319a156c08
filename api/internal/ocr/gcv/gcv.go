package gcv

import (
	"bytes"
	"context"
	"fmt"
	"image"

	vision "cloud.google.com/go/vision/v2/apiv1"
	"github.com/disintegration/imaging"
	"google.golang.org/api/option"

	"rx-reader/api/internal/ocr"
	"rx-reader/api/internal/util"
)

// Engine calls Google Cloud Vision text detection. The annotator client is
// created once and reused; it is safe for concurrent use.
type Engine struct {
	client *vision.ImageAnnotatorClient
}

func New(ctx context.Context, credentialsFile string) (*Engine, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := vision.NewImageAnnotatorClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gcv: create client: %w", err)
	}
	return &Engine{client: client}, nil
}

func (e *Engine) Name() string { return "gcv" }

func (e *Engine) Close() error { return e.client.Close() }

func (e *Engine) Recognize(ctx context.Context, img image.Image) ([]ocr.Page, error) {
	png, err := util.EncodeImage(img, imaging.PNG)
	if err != nil {
		return nil, fmt.Errorf("gcv: encode image: %w", err)
	}
	vimg, err := vision.NewImageFromReader(bytes.NewReader(png))
	if err != nil {
		return nil, fmt.Errorf("gcv: %w", err)
	}
	annotations, err := e.client.DetectTexts(ctx, vimg, nil, 1)
	if err != nil {
		return nil, fmt.Errorf("gcv: detect text: %w", err)
	}
	if len(annotations) == 0 {
		return []ocr.Page{{}}, nil
	}
	// the first annotation carries the whole detected text
	return []ocr.Page{ocr.PageFromText(annotations[0].Description)}, nil
}
