package cachestore

import (
	"fmt"
	"path/filepath"
	"sync"
)

const hashMemoFile = "hash_memo.json"

// HashMemo is the durable map from "path|mtime|size" keys to content
// digests. It is shared across every file ever processed and only grows;
// entries are never pruned.
type HashMemo struct {
	mu      sync.Mutex
	path    string
	entries map[string]string
}

// NewHashMemo opens (or creates) the memo file under dir.
func NewHashMemo(dir string) (*HashMemo, error) {
	if err := ensureDir(dir); err != nil {
		return nil, fmt.Errorf("cachestore: create cache dir: %w", err)
	}
	m := &HashMemo{
		path:    filepath.Join(dir, hashMemoFile),
		entries: map[string]string{},
	}
	// Absent or corrupt file: start empty, the next write replaces it.
	var entries map[string]string
	if readJSON(m.path, &entries) && entries != nil {
		m.entries = entries
	}
	return m, nil
}

// Lookup returns the memoized digest for key.
func (m *HashMemo) Lookup(key string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.entries[key]
	return d, ok
}

// Store records a freshly computed digest and persists the memo
// synchronously.
func (m *HashMemo) Store(key, digest string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = digest
	return writeJSONAtomic(m.path, m.entries)
}

// Len reports the number of memoized digests.
func (m *HashMemo) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
