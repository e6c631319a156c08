package pipeline

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rx-reader/api/internal/llm"
	"rx-reader/api/internal/ocr"
	"rx-reader/api/internal/prescription"
)

type fakeOCR struct {
	text string
	err  error
	got  image.Image
}

func (f *fakeOCR) Name() string { return "fake-ocr" }

func (f *fakeOCR) Recognize(_ context.Context, img image.Image) ([]ocr.Page, error) {
	f.got = img
	if f.err != nil {
		return nil, f.err
	}
	return []ocr.Page{ocr.PageFromText(f.text)}, nil
}

type fakeLLM struct {
	reply string
	err   error
	calls int
	user  string
}

func (f *fakeLLM) Name() string     { return "fake-llm" }
func (f *fakeLLM) GetModel() string { return "fake" }

func (f *fakeLLM) Chat(_ context.Context, msgs []llm.Message, _ llm.Options) (string, error) {
	f.calls++
	if len(msgs) > 0 {
		f.user = msgs[len(msgs)-1].Content
	}
	return f.reply, f.err
}

func pngBytes(t *testing.T, c color.Color) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 4, 3))
	for y := 0; y < 3; y++ {
		for x := 0; x < 4; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func newPipeline(o *fakeOCR, l *fakeLLM) *Pipeline {
	return New(o, llm.NewCorrector(l, "rules", llm.WithConsole(nil)), false)
}

func TestProcess_EndToEnd(t *testing.T) {
	o := &fakeOCR{text: "Paracetamol 500mg twice daily"}
	l := &fakeLLM{reply: `[{"medicine":"Paracetamol","dosage":"500mg","times_per_day":"2x/day"}]`}

	items, err := newPipeline(o, l).Process(context.Background(), pngBytes(t, color.White))
	require.NoError(t, err)
	assert.Equal(t, []prescription.Medicine{{Medicine: "Paracetamol", Dosage: "500mg", TimesPerDay: "2x/day"}}, items)
	assert.Contains(t, l.user, "Paracetamol 500mg twice daily")

	require.NotNil(t, o.got)
	assert.Equal(t, image.Rect(0, 0, 4, 3), o.got.Bounds())
}

func TestProcess_DecodeError(t *testing.T) {
	o := &fakeOCR{}
	l := &fakeLLM{}

	_, err := newPipeline(o, l).Process(context.Background(), []byte("definitely not an image"))
	require.Error(t, err)
	assert.ErrorIs(t, err, prescription.ErrImageDecode)
	assert.Nil(t, o.got)
	assert.Zero(t, l.calls)
}

func TestProcess_OCRError(t *testing.T) {
	cause := errors.New("tesseract crashed")
	l := &fakeLLM{}

	_, err := newPipeline(&fakeOCR{err: cause}, l).Process(context.Background(), pngBytes(t, color.Black))
	require.Error(t, err)
	assert.ErrorIs(t, err, prescription.ErrModelInference)
	assert.ErrorIs(t, err, cause)
	assert.Zero(t, l.calls)
}

func TestProcess_LLMErrors(t *testing.T) {
	img := pngBytes(t, color.White)

	_, err := newPipeline(&fakeOCR{text: "x"}, &fakeLLM{err: errors.New("timeout")}).Process(context.Background(), img)
	assert.ErrorIs(t, err, prescription.ErrModelInference)

	_, err = newPipeline(&fakeOCR{text: "x"}, &fakeLLM{reply: "no list here"}).Process(context.Background(), img)
	var pe *prescription.ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "no list here", pe.Raw)
}

func TestProcess_EmptyOCRStillAsksModel(t *testing.T) {
	l := &fakeLLM{reply: "[]"}

	items, err := newPipeline(&fakeOCR{}, l).Process(context.Background(), pngBytes(t, color.White))
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.Equal(t, 1, l.calls)
}

func TestDecodeRGB_DropsAlpha(t *testing.T) {
	img, err := DecodeRGB(pngBytes(t, color.NRGBA{R: 10, G: 20, B: 30, A: 0x40}))
	require.NoError(t, err)
	for i := 0; i < len(img.Pix); i += 4 {
		assert.Equal(t, []uint8{10, 20, 30, 0xff}, img.Pix[i:i+4])
	}
}

func TestRequestID(t *testing.T) {
	_, ok := RequestID(context.Background())
	assert.False(t, ok)

	id, ok := RequestID(WithRequestID(context.Background(), "abc"))
	assert.True(t, ok)
	assert.Equal(t, "abc", id)
}
