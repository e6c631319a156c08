package handle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"testing"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rx-reader/api/internal/llm"
	"rx-reader/api/internal/ocr"
	"rx-reader/api/internal/pipeline"
	"rx-reader/api/internal/prescription"
)

type fakeProcessor struct {
	items []prescription.Medicine
	err   error

	got   []byte
	reqID string
}

func (f *fakeProcessor) Process(ctx context.Context, data []byte) ([]prescription.Medicine, error) {
	f.got = data
	f.reqID, _ = pipeline.RequestID(ctx)
	return f.items, f.err
}

func multipartBody(t *testing.T, field, filename string, content []byte) (string, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fw, err := w.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return "Content-Type: " + w.FormDataContentType(), &buf
}

func setup(t *testing.T, proc Processor) humatest.TestAPI {
	_, api := humatest.New(t)
	New(proc, 1<<20).Register(api, "/prescriptions")
	return api
}

func TestUpload_OK(t *testing.T) {
	proc := &fakeProcessor{items: []prescription.Medicine{{Medicine: "Paracetamol", Dosage: "500mg", TimesPerDay: "2x/day"}}}
	api := setup(t, proc)

	ct, body := multipartBody(t, "file", "rx.png", []byte("image-bytes"))
	resp := api.Post("/prescriptions/", ct, "X-Request-Id: req-1", body)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	assert.JSONEq(t, `{"items":[{"medicine":"Paracetamol","dosage":"500mg","times_per_day":"2x/day"}]}`, resp.Body.String())
	assert.Equal(t, "req-1", resp.Header().Get("X-Request-Id"))
	assert.Equal(t, []byte("image-bytes"), proc.got)
	assert.Equal(t, "req-1", proc.reqID)
}

func TestUpload_EmptyListIsNotNull(t *testing.T) {
	api := setup(t, &fakeProcessor{})

	ct, body := multipartBody(t, "file", "blank.png", []byte("x"))
	resp := api.Post("/prescriptions/", ct, body)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.JSONEq(t, `{"items":[]}`, resp.Body.String())
	assert.NotEmpty(t, resp.Header().Get("X-Request-Id"))
}

func TestUpload_PipelineErrors(t *testing.T) {
	for _, err := range []error{
		fmt.Errorf("%w: unknown format", prescription.ErrImageDecode),
		fmt.Errorf("%w: connection refused", prescription.ErrModelInference),
		&prescription.ParseError{Raw: "sorry", Err: fmt.Errorf("no JSON array found")},
	} {
		t.Run(err.Error(), func(t *testing.T) {
			api := setup(t, &fakeProcessor{err: err})

			ct, body := multipartBody(t, "file", "rx.txt", []byte("not an image"))
			resp := api.Post("/prescriptions/", ct, body)
			require.Equal(t, http.StatusInternalServerError, resp.Code)

			var out struct {
				Detail string `json:"detail"`
			}
			require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &out))
			assert.Equal(t, err.Error(), out.Detail)
		})
	}
}

func TestUpload_MissingFile(t *testing.T) {
	proc := &fakeProcessor{}
	api := setup(t, proc)

	ct, body := multipartBody(t, "image", "rx.png", []byte("x"))
	resp := api.Post("/prescriptions/", ct, body)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)
	assert.Nil(t, proc.got)
}

func TestReadFile(t *testing.T) {
	_, _, err := readFile(nil)
	require.Error(t, err)

	_, _, err = readFile(&multipart.Form{})
	require.Error(t, err)
}

func TestUpload_TimeoutHeaderBounded(t *testing.T) {
	proc := &fakeProcessor{}
	api := setup(t, proc)

	ct, body := multipartBody(t, "file", "rx.png", []byte("x"))
	resp := api.Post("/prescriptions/", ct, "X-Request-Timeout: 999999999999", body)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)
	assert.Nil(t, proc.got)

	ct, body = multipartBody(t, "file", "rx.png", []byte("x"))
	resp = api.Post("/prescriptions/", ct, "X-Request-Timeout: 30", body)
	assert.Equal(t, http.StatusOK, resp.Code)
}

type stubOCR struct{ text string }

func (s stubOCR) Name() string { return "stub" }

func (s stubOCR) Recognize(context.Context, image.Image) ([]ocr.Page, error) {
	return []ocr.Page{ocr.PageFromText(s.text)}, nil
}

type stubChat struct{ reply string }

func (s stubChat) Name() string     { return "stub" }
func (s stubChat) GetModel() string { return "stub" }

func (s stubChat) Chat(context.Context, []llm.Message, llm.Options) (string, error) {
	return s.reply, nil
}

func realPipeline() *pipeline.Pipeline {
	corrector := llm.NewCorrector(
		stubChat{reply: `[{"medicine":"Paracetamol","dosage":"500mg","times_per_day":"2x/day"}]`},
		"rules", llm.WithConsole(nil))
	return pipeline.New(stubOCR{text: "Paracetamol 500mg twice daily"}, corrector, false)
}

func TestUpload_Pipeline(t *testing.T) {
	var buf bytes.Buffer
	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.Black)
	require.NoError(t, png.Encode(&buf, img))

	for _, mount := range []string{"/prescriptions", ""} {
		t.Run("mount="+mount, func(t *testing.T) {
			_, api := humatest.New(t)
			New(realPipeline(), 1<<20).Register(api, mount)

			ct, body := multipartBody(t, "file", "notes.txt", []byte("these bytes are not an image"))
			resp := api.Post(mount+"/", ct, body)
			require.Equal(t, http.StatusInternalServerError, resp.Code)
			var out struct {
				Detail string `json:"detail"`
			}
			require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &out))
			assert.NotEmpty(t, out.Detail)
			assert.Contains(t, out.Detail, prescription.ErrImageDecode.Error())

			ct, body = multipartBody(t, "file", "rx.png", buf.Bytes())
			resp = api.Post(mount+"/", ct, body)
			require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
			assert.JSONEq(t, `{"items":[{"medicine":"Paracetamol","dosage":"500mg","times_per_day":"2x/day"}]}`, resp.Body.String())
		})
	}
}
