// Package metadata reads the embedded training metadata of safetensors
// model files.
package metadata

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
)

// A safetensors file starts with an 8-byte little-endian header length
// followed by a JSON header; training tools put string key-value pairs under
// "__metadata__".
const maxHeaderBytes = 64 << 20

// ReadEmbedded returns the __metadata__ mapping of a safetensors file, or
// nil when the file carries none.
func ReadEmbedded(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("metadata: open %s: %w", path, err)
	}
	defer f.Close()

	var lenBuf [8]byte
	if _, err := io.ReadFull(f, lenBuf[:]); err != nil {
		return nil, fmt.Errorf("metadata: read header length of %s: %w", path, err)
	}
	n := binary.LittleEndian.Uint64(lenBuf[:])
	if n == 0 || n > maxHeaderBytes {
		return nil, fmt.Errorf("metadata: header length %d out of range in %s", n, path)
	}

	raw := make([]byte, n)
	if _, err := io.ReadFull(f, raw); err != nil {
		return nil, fmt.Errorf("metadata: read header of %s: %w", path, err)
	}
	var header struct {
		Metadata map[string]string `json:"__metadata__"`
	}
	if err := json.Unmarshal(raw, &header); err != nil {
		return nil, fmt.Errorf("metadata: parse header of %s: %w", path, err)
	}
	return header.Metadata, nil
}

// TagFrequency decodes the ss_tag_frequency field: a JSON-encoded mapping
// from dataset name to per-tag counts. Absent or malformed values yield nil.
func TagFrequency(meta map[string]string) map[string]map[string]int64 {
	raw, ok := meta["ss_tag_frequency"]
	if !ok || strings.TrimSpace(raw) == "" {
		return nil
	}
	var freq map[string]map[string]int64
	if err := json.Unmarshal([]byte(raw), &freq); err != nil {
		return nil
	}
	return freq
}
