package cachestore

import (
	"fmt"
	"path/filepath"
	"sync"
)

const triggerFile = "trigger_words.json"

// TriggerStore caches the remote trainedWords list per model filename. It is
// independent of the hash memo and the result store.
type TriggerStore struct {
	mu      sync.Mutex
	path    string
	entries map[string][]string
}

// NewTriggerStore opens (or creates) the trigger cache under dir.
func NewTriggerStore(dir string) (*TriggerStore, error) {
	if err := ensureDir(dir); err != nil {
		return nil, fmt.Errorf("cachestore: create cache dir: %w", err)
	}
	s := &TriggerStore{
		path:    filepath.Join(dir, triggerFile),
		entries: map[string][]string{},
	}
	var entries map[string][]string
	if readJSON(s.path, &entries) && entries != nil {
		s.entries = entries
	}
	return s, nil
}

// Lookup returns the cached trigger words for fileName.
func (s *TriggerStore) Lookup(fileName string) ([]string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	words, ok := s.entries[fileName]
	if !ok {
		return nil, false
	}
	return append([]string(nil), words...), true
}

// Store records trigger words for fileName and persists the cache.
func (s *TriggerStore) Store(fileName string, words []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[fileName] = append([]string(nil), words...)
	return writeJSONAtomic(s.path, s.entries)
}
