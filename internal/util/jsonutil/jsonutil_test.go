package jsonutil

import (
	"strings"
	"testing"
)

func TestMarshalNoEscapeKeepsAngleBrackets(t *testing.T) {
	raw, err := MarshalNoEscape(map[string]string{"token": "<lora:x:1>"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if want := `{"token":"<lora:x:1>"}`; string(raw) != want {
		t.Fatalf("marshal = %s, want %s", raw, want)
	}
}

func TestMarshalNoEscapeIndent(t *testing.T) {
	raw, err := MarshalNoEscapeIndent(map[string]string{"a": "<b>"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(raw), "\n  ") {
		t.Fatalf("expected indentation: %s", raw)
	}
	if strings.HasSuffix(string(raw), "\n") {
		t.Fatalf("trailing newline not trimmed: %q", raw)
	}
}
