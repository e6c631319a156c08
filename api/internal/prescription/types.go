package prescription

import (
	"errors"
	"fmt"
)

// Medicine is one record extracted from a prescription.
// Fields missing in the model output stay empty.
type Medicine struct {
	Medicine    string `json:"medicine" doc:"Medicine name as written on the prescription"`
	Dosage      string `json:"dosage" doc:"Dosage, e.g. 500mg"`
	TimesPerDay string `json:"times_per_day" doc:"Frequency, e.g. 2x/day"`
}

// Result is the response shape of one processed image.
type Result struct {
	Items []Medicine `json:"items"`
}

func NewResult(items []Medicine) Result {
	if items == nil {
		items = []Medicine{}
	}
	return Result{Items: items}
}

var (
	ErrImageDecode    = errors.New("image decode")
	ErrModelInference = errors.New("model inference")
)

// ParseError is returned when a model response cannot be turned into
// a list of medicines. Raw holds the untouched model output.
type ParseError struct {
	Raw string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse model response: %v; raw response: %s", e.Err, e.Raw)
}

func (e *ParseError) Unwrap() error { return e.Err }
