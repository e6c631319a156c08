package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"rx-reader/api/internal/llm"
)

const DefaultModel = "gemini-1.5-flash"

type Engine struct {
	APIKey string
	Model  string
}

func New(apiKey, model string) *Engine {
	model = strings.TrimSpace(model)
	if model == "" {
		model = DefaultModel
	}
	return &Engine{
		APIKey: strings.TrimSpace(apiKey),
		Model:  model,
	}
}

func (e *Engine) Name() string     { return "gemini" }
func (e *Engine) GetModel() string { return e.Model }

func (e *Engine) Chat(ctx context.Context, msgs []llm.Message, opt llm.Options) (string, error) {
	if e.APIKey == "" {
		return "", errors.New("GEMINI_API_KEY is empty")
	}
	cl, err := genai.NewClient(ctx, option.WithAPIKey(e.APIKey))
	if err != nil {
		return "", err
	}
	defer cl.Close()

	m := cl.GenerativeModel(e.Model)
	if m == nil {
		return "", fmt.Errorf("gemini: model is nil")
	}
	m.GenerationConfig = generationConfig(opt.Temperature)

	system, parts := splitMessages(msgs)
	if len(system) > 0 {
		m.SystemInstruction = &genai.Content{Parts: system}
	}
	if len(parts) == 0 {
		return "", errors.New("gemini: no user content")
	}

	if opt.OnChunk == nil {
		resp, err := m.GenerateContent(ctx, parts...)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(firstText(resp)), nil
	}

	var sb strings.Builder
	it := m.GenerateContentStream(ctx, parts...)
	for {
		resp, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return "", err
		}
		piece := allText(resp)
		if piece == "" {
			continue
		}
		sb.WriteString(piece)
		if err := opt.OnChunk(piece); err != nil {
			return "", err
		}
	}
	return strings.TrimSpace(sb.String()), nil
}

// medicinesSchema constrains the reply to the record list. The reply is
// still run through prescription.ExtractJSON.
var medicinesSchema = &genai.Schema{
	Type:        genai.TypeArray,
	Description: "Medicines found in the prescription text.",
	Items: &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"medicine":      {Type: genai.TypeString, Description: "Medicine name, e.g. Paracetamol"},
			"dosage":        {Type: genai.TypeString, Description: "Dosage, e.g. 500mg"},
			"times_per_day": {Type: genai.TypeString, Description: "Frequency, e.g. 2x/day"},
		},
		Required: []string{"medicine", "dosage", "times_per_day"},
	},
}

func generationConfig(temperature float64) genai.GenerationConfig {
	return genai.GenerationConfig{
		Temperature:      ptrFloat32(float32(temperature)),
		ResponseMIMEType: "application/json",
		ResponseSchema:   medicinesSchema,
	}
}

// splitMessages moves system messages into the system instruction; the rest
// is sent as user text in order.
func splitMessages(msgs []llm.Message) (system, user []genai.Part) {
	for _, msg := range msgs {
		if msg.Role == llm.RoleSystem {
			system = append(system, genai.Text(msg.Content))
			continue
		}
		user = append(user, genai.Text(msg.Content))
	}
	return system, user
}

func firstText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	for _, c := range resp.Candidates {
		if c.Content == nil {
			continue
		}
		for _, p := range c.Content.Parts {
			if t, ok := p.(genai.Text); ok {
				return string(t)
			}
		}
	}
	return ""
}

// allText concatenates the text parts of the first candidate.
func allText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if t, ok := p.(genai.Text); ok {
			sb.WriteString(string(t))
		}
	}
	return sb.String()
}

func ptrFloat32(v float32) *float32 { return &v }
