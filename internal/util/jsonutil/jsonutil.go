// Package jsonutil holds small JSON encoding helpers.
package jsonutil

import (
	"bytes"
	"encoding/json"
)

// MarshalNoEscape encodes v into JSON without HTML-escaping <, > and &.
// Prompt tokens like "<lora:x:1>" must round-trip through cache files
// unchanged.
func MarshalNoEscape(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	// Remove trailing newline from json.Encoder.Encode
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// MarshalNoEscapeIndent is MarshalNoEscape with two-space indentation.
func MarshalNoEscapeIndent(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
