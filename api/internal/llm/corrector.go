package llm

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"rx-reader/api/internal/prescription"
	"rx-reader/api/internal/prompt"
	"rx-reader/api/internal/util"
)

const DefaultTemperature = 0.1

// Corrector turns raw OCR text into medicine records with a chat model.
type Corrector struct {
	engine      Engine
	system      string
	temperature float64
	console     io.Writer
}

type CorrectorOption func(*Corrector)

func WithTemperature(temperature float64) CorrectorOption {
	return func(c *Corrector) { c.temperature = temperature }
}

// WithConsole sets where streamed fragments are echoed. Defaults to stdout.
func WithConsole(w io.Writer) CorrectorOption {
	return func(c *Corrector) { c.console = w }
}

func NewCorrector(engine Engine, systemPrompt string, opts ...CorrectorOption) *Corrector {
	c := &Corrector{
		engine:      engine,
		system:      systemPrompt,
		temperature: DefaultTemperature,
		console:     os.Stdout,
	}
	for _, o := range opts {
		o(c)
	}
	if c.console == nil {
		c.console = io.Discard
	}
	return c
}

func (c *Corrector) Engine() Engine { return c.engine }

// Messages builds the conversation sent for ocrText.
func (c *Corrector) Messages(ocrText string) []Message {
	return []Message{
		{Role: RoleSystem, Content: c.system},
		{Role: RoleUser, Content: prompt.MedicineUser(ocrText)},
	}
}

// Correct asks the model for the medicine list in ocrText. With stream set,
// fragments are echoed to the console as they arrive; the returned records
// are the same either way.
func (c *Corrector) Correct(ctx context.Context, ocrText string, stream bool) ([]prescription.Medicine, error) {
	opt := Options{Temperature: c.temperature}

	var sb strings.Builder
	if stream {
		opt.OnChunk = func(piece string) error {
			sb.WriteString(piece)
			_, err := io.WriteString(c.console, piece)
			return err
		}
	}

	started := time.Now()
	text, err := c.engine.Chat(ctx, c.Messages(ocrText), opt)
	if stream {
		_, _ = io.WriteString(c.console, "\n")
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", prescription.ErrModelInference, c.engine.Name(), err)
	}
	if stream {
		text = sb.String()
	}

	log := logrus.WithFields(logrus.Fields{
		"engine":   c.engine.Name(),
		"model":    c.engine.GetModel(),
		"stream":   stream,
		"duration": time.Since(started).Round(time.Millisecond),
	})
	log.Debugf("llm raw response: %s", util.Truncate(text, 2048))

	items, err := prescription.ExtractJSON(text)
	if err != nil {
		log.WithError(err).Warn("llm response is not a medicine list")
		return nil, fmt.Errorf("%s: %w", c.engine.Name(), err)
	}
	return items, nil
}
