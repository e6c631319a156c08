package yandex

import (
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"net/http"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/go-resty/resty/v2"

	"rx-reader/api/internal/ocr"
	"rx-reader/api/internal/util"
)

const (
	defaultOCRURL = "https://ocr.api.cloud.yandex.net/ocr/v1/recognizeText"
	// images are always re-encoded before upload
	uploadMIME = "JPEG"
)

// Engine calls Yandex Vision OCR.
type Engine struct {
	iamc     *IamClient
	folderID string
	langs    []string
	model    string
	url      string
	rc       *resty.Client
}

func New(oauth2Token, folderID string, langs []string) *Engine {
	if len(langs) == 0 {
		langs = []string{"*"}
	}
	return &Engine{
		iamc:     NewIamClient(oauth2Token),
		folderID: folderID,
		langs:    langs,
		model:    "handwritten",
		url:      defaultOCRURL,
		rc:       resty.New().SetTimeout(60 * time.Second),
	}
}

func (e *Engine) Name() string { return "yandex" }

type request struct {
	Content       string   `json:"content"`
	MimeType      string   `json:"mimeType,omitempty"`      // "JPEG" | "PNG" | "PDF"
	LanguageCodes []string `json:"languageCodes,omitempty"` // ["en","ru"]
	Model         string   `json:"model,omitempty"`         // "handwritten" | "page"
}

type textAnnotation struct {
	FullText string `json:"fullText,omitempty"`
	Blocks   []struct {
		Lines []struct {
			Text string `json:"text,omitempty"`
		} `json:"lines,omitempty"`
	} `json:"blocks,omitempty"`
}

type response struct {
	Result *struct {
		TextAnnotation *textAnnotation `json:"textAnnotation,omitempty"`
		Page           string          `json:"page,omitempty"`
	} `json:"result,omitempty"`
}

func (e *Engine) Recognize(ctx context.Context, img image.Image) ([]ocr.Page, error) {
	jpg, err := util.EncodeImage(img, imaging.JPEG)
	if err != nil {
		return nil, fmt.Errorf("yandex ocr: encode image: %w", err)
	}
	body := request{
		Content:       base64.StdEncoding.EncodeToString(jpg),
		MimeType:      uploadMIME,
		LanguageCodes: e.langs,
		Model:         e.model,
	}

	out, status, err := e.call(ctx, body)
	if err != nil {
		return nil, err
	}
	if status == http.StatusUnauthorized {
		// one retry with a fresh token
		e.iamc.Invalidate()
		if out, status, err = e.call(ctx, body); err != nil {
			return nil, err
		}
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("yandex ocr %d", status)
	}
	return []ocr.Page{out.page()}, nil
}

func (e *Engine) call(ctx context.Context, body request) (*response, int, error) {
	token, err := e.iamc.Token(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("yandex ocr: %w", err)
	}
	var out response
	resp, err := e.rc.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetHeader("x-folder-id", e.folderID).
		SetHeader("x-data-logging-enabled", "false").
		SetBody(body).
		SetResult(&out).
		Post(e.url)
	if err != nil {
		return nil, 0, fmt.Errorf("yandex ocr: %w", err)
	}
	if resp.IsError() && resp.StatusCode() != http.StatusUnauthorized {
		return nil, resp.StatusCode(), fmt.Errorf("yandex ocr %d: %s", resp.StatusCode(), util.Truncate(strings.TrimSpace(resp.String()), 512))
	}
	return &out, resp.StatusCode(), nil
}

// page prefers block lines and falls back to splitting fullText.
func (r *response) page() ocr.Page {
	if r == nil || r.Result == nil || r.Result.TextAnnotation == nil {
		return ocr.Page{}
	}
	ta := r.Result.TextAnnotation
	var p ocr.Page
	for _, b := range ta.Blocks {
		for _, l := range b.Lines {
			if s := strings.TrimSpace(l.Text); s != "" {
				p.Lines = append(p.Lines, ocr.Line{Text: s})
			}
		}
	}
	if len(p.Lines) > 0 {
		return p
	}
	return ocr.PageFromText(ta.FullText)
}
