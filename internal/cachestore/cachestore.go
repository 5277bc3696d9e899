// Package cachestore persists the pipeline's durable state: the hash memo,
// the per-key aggregated results, and the trigger-word cache. Every store
// treats a malformed file as a miss and overwrites it on the next write.
package cachestore

import (
	"encoding/json"
	"os"

	"promptstats/internal/util/jsonutil"
)

// ensureDir creates the cache directory once per store construction.
func ensureDir(dir string) error {
	return os.MkdirAll(dir, 0o755)
}

// writeJSONAtomic marshals v (HTML escaping off, so prompt tokens survive)
// and replaces path via a temp file rename.
func writeJSONAtomic(path string, v any) error {
	raw, err := jsonutil.MarshalNoEscapeIndent(v)
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// readJSON loads path into v. Returns false when the file is absent or does
// not parse; corruption is a miss, never an error.
func readJSON(path string, v any) bool {
	raw, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	return json.Unmarshal(raw, v) == nil
}
