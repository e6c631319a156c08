package handle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"rx-reader/api/internal/pipeline"
	"rx-reader/api/internal/prescription"
	"rx-reader/api/internal/util"
)

const fileField = "file"

// Processor runs one uploaded image through the recognition pipeline.
type Processor interface {
	Process(ctx context.Context, data []byte) ([]prescription.Medicine, error)
}

type Handle struct {
	proc     Processor
	maxBytes int64
	timeout  time.Duration
}

func New(proc Processor, maxBytes int64) *Handle {
	return &Handle{
		proc:     proc,
		maxBytes: maxBytes,
		timeout:  180 * time.Second,
	}
}

type UploadInput struct {
	RequestID string `header:"X-Request-Id" doc:"Optional caller supplied request id"`
	Timeout   int    `header:"X-Request-Timeout" minimum:"0" maximum:"3600" doc:"Processing deadline in seconds, default 180"`
	RawBody   multipart.Form
}

type UploadOutput struct {
	RequestID string `header:"X-Request-Id"`
	Body      prescription.Result
}

// Register mounts the upload endpoint at mount + "/".
func (h *Handle) Register(api huma.API, mount string) {
	huma.Register(api, huma.Operation{
		OperationID:  "readPrescription",
		Method:       http.MethodPost,
		Path:         strings.TrimRight(mount, "/") + "/",
		Summary:      "Extract medicines from a prescription image",
		Description:  "Upload a prescription image as multipart field `file`. OCR text is cleaned by a language model into medicine, dosage and frequency records.",
		Tags:         []string{"prescriptions"},
		MaxBodyBytes: h.maxBytes,
		RequestBody: &huma.RequestBody{
			Required: true,
			Content: map[string]*huma.MediaType{
				"multipart/form-data": {
					Schema: &huma.Schema{
						Type:     huma.TypeObject,
						Required: []string{fileField},
						Properties: map[string]*huma.Schema{
							fileField: {Type: huma.TypeString, Format: "binary", Description: "Prescription image"},
						},
					},
				},
			},
		},
	}, h.Upload)
}

func (h *Handle) Upload(ctx context.Context, in *UploadInput) (*UploadOutput, error) {
	reqID := strings.TrimSpace(in.RequestID)
	if reqID == "" {
		reqID = uuid.NewString()
	}
	log := logrus.WithField("request_id", reqID)

	data, name, err := readFile(&in.RawBody)
	if err != nil {
		log.WithError(err).Info("rejecting upload")
		return nil, huma.Error422UnprocessableEntity(err.Error(), &huma.ErrorDetail{
			Location: "body." + fileField,
			Message:  err.Error(),
		})
	}
	log = log.WithFields(logrus.Fields{"file": name, "bytes": len(data), "image": util.IsImageMIME(data)})
	log.Info("upload received")

	deadline := h.timeout
	if in.Timeout > 0 {
		deadline = time.Duration(in.Timeout) * time.Second
	}
	ctx, cancel := context.WithTimeout(pipeline.WithRequestID(ctx, reqID), deadline)
	defer cancel()

	items, err := h.proc.Process(ctx, data)
	if err != nil {
		report(reqID, err)
		log.WithError(err).Error("prescription failed")
		return nil, huma.Error500InternalServerError(err.Error())
	}

	return &UploadOutput{RequestID: reqID, Body: prescription.NewResult(items)}, nil
}

func readFile(form *multipart.Form) ([]byte, string, error) {
	if form == nil || len(form.File[fileField]) == 0 {
		return nil, "", errors.New("multipart field \"file\" is required")
	}
	fh := form.File[fileField][0]
	f, err := fh.Open()
	if err != nil {
		return nil, fh.Filename, fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fh.Filename, fmt.Errorf("read upload: %w", err)
	}
	return data, fh.Filename, nil
}

func report(reqID string, err error) {
	hub := sentry.CurrentHub().Clone()
	hub.ConfigureScope(func(scope *sentry.Scope) {
		scope.SetTag("request_id", reqID)
		switch {
		case errors.Is(err, prescription.ErrImageDecode):
			scope.SetTag("stage", "decode")
		case errors.Is(err, prescription.ErrModelInference):
			scope.SetTag("stage", "inference")
		default:
			scope.SetTag("stage", "parse")
		}
	})
	hub.CaptureException(err)
}
