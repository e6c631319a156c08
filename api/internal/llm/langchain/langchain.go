package langchain

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"rx-reader/api/internal/llm"
)

const (
	DefaultOllamaModel = "phi3:mini"
	DefaultOpenAIModel = "gpt-4o-mini"
)

// Engine adapts any langchaingo model to llm.Engine.
type Engine struct {
	name  string
	model string
	lm    llms.Model
}

// NewOllama binds the context window to the client: numCtx applies to every
// call, 0 keeps the server default.
func NewOllama(host, model string, numCtx int) (*Engine, error) {
	if model == "" {
		model = DefaultOllamaModel
	}
	opts := []ollama.Option{
		ollama.WithModel(model),
	}
	if host != "" {
		opts = append(opts, ollama.WithServerURL(host))
	}
	if numCtx > 0 {
		opts = append(opts, ollama.WithRunnerNumCtx(numCtx))
	}
	lm, err := ollama.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("ollama client: %w", err)
	}
	return &Engine{name: "ollama", model: model, lm: lm}, nil
}

func NewOpenAI(apiKey, model, baseURL string) (*Engine, error) {
	if apiKey == "" {
		return nil, errors.New("OPENAI_API_KEY is empty")
	}
	if model == "" {
		model = DefaultOpenAIModel
	}
	opts := []openai.Option{
		openai.WithModel(model),
		openai.WithToken(apiKey),
	}
	if baseURL != "" {
		opts = append(opts, openai.WithBaseURL(baseURL))
	}
	lm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("openai client: %w", err)
	}
	return &Engine{name: "openai", model: model, lm: lm}, nil
}

// NewWithModel wraps an already constructed langchaingo model.
func NewWithModel(name, model string, lm llms.Model) *Engine {
	return &Engine{name: name, model: model, lm: lm}
}

func (e *Engine) Name() string     { return e.name }
func (e *Engine) GetModel() string { return e.model }

func (e *Engine) Chat(ctx context.Context, msgs []llm.Message, opt llm.Options) (string, error) {
	content := make([]llms.MessageContent, 0, len(msgs))
	for _, m := range msgs {
		content = append(content, llms.TextParts(chatRole(m.Role), m.Content))
	}

	callOpts := []llms.CallOption{llms.WithTemperature(opt.Temperature)}
	if opt.OnChunk != nil {
		callOpts = append(callOpts, llms.WithStreamingFunc(func(_ context.Context, chunk []byte) error {
			return opt.OnChunk(string(chunk))
		}))
	}

	resp, err := e.lm.GenerateContent(ctx, content, callOpts...)
	if err != nil {
		return "", err
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", errors.New("empty response")
	}
	return strings.TrimSpace(resp.Choices[0].Content), nil
}

func chatRole(role string) llms.ChatMessageType {
	switch role {
	case llm.RoleSystem:
		return llms.ChatMessageTypeSystem
	default:
		return llms.ChatMessageTypeHuman
	}
}
