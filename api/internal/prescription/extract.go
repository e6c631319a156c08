package prescription

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"rx-reader/api/internal/util"
)

const recordsSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "array",
  "items": {
    "type": "object",
    "properties": {
      "medicine":      {"type": ["string", "null"]},
      "dosage":        {"type": ["string", "null"]},
      "times_per_day": {"type": ["string", "null"]}
    }
  }
}`

var schemaLoader = gojsonschema.NewStringLoader(recordsSchema)

var errNoArray = errors.New("no JSON array found")

// ExtractJSON recovers the medicine list from a free-text model response.
//
// The array is taken from the first '[' to the last ']' in the response, so
// a reply with several bracketed fragments is captured as one span and
// usually fails to parse.
func ExtractJSON(raw string) ([]Medicine, error) {
	text := util.StripCodeFences(raw)

	start := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")
	if start < 0 || end < start {
		return nil, &ParseError{Raw: raw, Err: errNoArray}
	}
	candidate := text[start : end+1]

	res, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewStringLoader(candidate))
	if err != nil {
		return nil, &ParseError{Raw: raw, Err: fmt.Errorf("bad JSON: %w", err)}
	}
	if !res.Valid() {
		msgs := make([]string, 0, len(res.Errors()))
		for _, desc := range res.Errors() {
			msgs = append(msgs, desc.String())
		}
		return nil, &ParseError{Raw: raw, Err: fmt.Errorf("unexpected shape: %s", strings.Join(msgs, "; "))}
	}

	var out []Medicine
	if err := json.Unmarshal([]byte(candidate), &out); err != nil {
		return nil, &ParseError{Raw: raw, Err: fmt.Errorf("bad JSON: %w", err)}
	}
	if out == nil {
		out = []Medicine{}
	}
	return out, nil
}
