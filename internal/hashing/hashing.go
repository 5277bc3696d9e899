// Package hashing derives the stable content identity of local model files.
package hashing

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log"
	"os"

	lru "github.com/hashicorp/golang-lru/v2"
)

const chunkSize = 4096

// Memo is the durable digest cache consulted before any recomputation.
type Memo interface {
	Lookup(key string) (string, bool)
	Store(key, digest string) error
}

// Sum256File streams the file through SHA-256 in fixed-size chunks and
// returns the lowercase hex digest. The file is never loaded whole.
func Sum256File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("hashing: open %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	buf := make([]byte, chunkSize)
	if _, err := io.CopyBuffer(h, f, buf); err != nil {
		return "", fmt.Errorf("hashing: read %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Identifier memoizes digests keyed by (path, mtime, size) so unchanged
// files are hashed exactly once.
type Identifier struct {
	memo   Memo
	recent *lru.Cache[string, string]
}

// NewIdentifier wraps the durable memo with an in-memory LRU front.
func NewIdentifier(memo Memo) (*Identifier, error) {
	if memo == nil {
		return nil, fmt.Errorf("hashing: memo is required")
	}
	recent, err := lru.New[string, string](4096)
	if err != nil {
		return nil, err
	}
	return &Identifier{memo: memo, recent: recent}, nil
}

// CacheKey builds the composite memo key from the file's identity triple.
func CacheKey(path string, info os.FileInfo) string {
	return fmt.Sprintf("%s|%d|%d", path, info.ModTime().UnixNano(), info.Size())
}

// Identify returns the content digest for path, consulting the memo first.
// The digest is recomputed only when mtime or size changed since the last
// memoized computation.
func (id *Identifier) Identify(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("hashing: stat %s: %w", path, err)
	}
	key := CacheKey(path, info)

	if d, ok := id.recent.Get(key); ok {
		return d, nil
	}
	if d, ok := id.memo.Lookup(key); ok {
		id.recent.Add(key, d)
		return d, nil
	}

	d, err := Sum256File(path)
	if err != nil {
		return "", err
	}
	if err := id.memo.Store(key, d); err != nil {
		log.Printf("hashing: persist memo entry for %s: %v", path, err)
	}
	id.recent.Add(key, d)
	return d, nil
}
