package engines

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"rx-reader/api/internal/config"
	"rx-reader/api/internal/llm"
	"rx-reader/api/internal/llm/gemini"
	"rx-reader/api/internal/llm/langchain"
	"rx-reader/api/internal/ocr"
	"rx-reader/api/internal/ocr/gcv"
	"rx-reader/api/internal/ocr/tesseract"
	"rx-reader/api/internal/ocr/yandex"
	"rx-reader/api/internal/pipeline"
	"rx-reader/api/internal/prompt"
)

// NewOCR builds the OCR engine selected by OCR_ENGINE.
func NewOCR(ctx context.Context, cfg *config.Config) (ocr.Engine, error) {
	switch cfg.OCREngine {
	case "", "tesseract":
		return tesseract.New(cfg.TesseractLangs), nil
	case "yandex":
		if cfg.YCOAuthToken == "" || cfg.YCFolderID == "" {
			return nil, errors.New("yandex ocr: YC_OAUTH_TOKEN and YC_FOLDER_ID are required")
		}
		return yandex.New(cfg.YCOAuthToken, cfg.YCFolderID, nil), nil
	case "gcv":
		return gcv.New(ctx, cfg.GCVCredentialsFile)
	default:
		return nil, fmt.Errorf("unknown OCR_ENGINE %q", cfg.OCREngine)
	}
}

// NewLLM builds the chat engine selected by LLM_PROVIDER.
func NewLLM(cfg *config.Config) (llm.Engine, error) {
	switch cfg.LLMProvider {
	case "", "ollama":
		return langchain.NewOllama(cfg.OllamaHost, cfg.LLMModel, cfg.NumCtx)
	case "openai":
		return langchain.NewOpenAI(cfg.OpenAIAPIKey, cfg.LLMModel, cfg.OpenAIBaseURL)
	case "gemini":
		if cfg.GeminiAPIKey == "" {
			return nil, errors.New("GEMINI_API_KEY is empty")
		}
		return gemini.New(cfg.GeminiAPIKey, cfg.LLMModel), nil
	default:
		return nil, fmt.Errorf("unknown LLM_PROVIDER %q", cfg.LLMProvider)
	}
}

// NewPipeline wires the configured OCR and LLM engines into a pipeline.
// The returned func releases engine resources.
func NewPipeline(ctx context.Context, cfg *config.Config) (*pipeline.Pipeline, func(), error) {
	system, err := prompt.Load(cfg.SystemPromptFile)
	if err != nil {
		return nil, nil, err
	}
	o, err := NewOCR(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	closeOCR := func() {
		if c, ok := o.(io.Closer); ok {
			_ = c.Close()
		}
	}
	l, err := NewLLM(cfg)
	if err != nil {
		closeOCR()
		return nil, nil, err
	}

	logrus.WithFields(logrus.Fields{
		"ocr":    o.Name(),
		"llm":    l.Name(),
		"model":  l.GetModel(),
		"stream": cfg.Stream,
	}).Info("engines ready")

	c := llm.NewCorrector(l, system, llm.WithTemperature(cfg.Temperature))
	return pipeline.New(o, c, cfg.Stream), closeOCR, nil
}
