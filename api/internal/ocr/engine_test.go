package ocr

import (
	"context"
	"errors"
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEngine struct {
	pages []Page
	err   error
}

func (f fakeEngine) Name() string { return "fake" }

func (f fakeEngine) Recognize(context.Context, image.Image) ([]Page, error) {
	return f.pages, f.err
}

func TestExtractTextOrder(t *testing.T) {
	e := fakeEngine{pages: []Page{
		{Lines: []Line{{Text: "Dr. Smith"}, {Text: "Paracetamol 500mg"}}},
		{Lines: []Line{{Text: "twice daily"}}},
	}}

	got, err := ExtractText(context.Background(), e, image.NewRGBA(image.Rect(0, 0, 1, 1)))
	require.NoError(t, err)
	assert.Equal(t, "Dr. Smith\nParacetamol 500mg\ntwice daily", got)
}

func TestExtractTextPropagatesError(t *testing.T) {
	boom := errors.New("model crashed")
	_, err := ExtractText(context.Background(), fakeEngine{err: boom}, image.NewRGBA(image.Rect(0, 0, 1, 1)))
	assert.Same(t, boom, err)
}

func TestJoinPagesEmpty(t *testing.T) {
	assert.Equal(t, "", JoinPages(nil))
	assert.Equal(t, "", JoinPages([]Page{{}}))
}

func TestPageFromText(t *testing.T) {
	p := PageFromText("  Amoxicillin 250mg \n\n 3x/day\n")
	assert.Equal(t, []Line{{Text: "Amoxicillin 250mg"}, {Text: "3x/day"}}, p.Lines)
}
