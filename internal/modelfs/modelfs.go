// Package modelfs resolves model file names inside a fixed set of root
// directories, refusing anything that escapes them.
package modelfs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
)

// modelExts are the container formats offered in file listings.
var modelExts = map[string]bool{
	".safetensors": true,
	".ckpt":        true,
	".pt":          true,
	".bin":         true,
}

// Roots is a read-only resolver locked to one or more model directories.
type Roots struct {
	dirs []string // absolute, symlink-resolved
}

// New binds the resolver to the given directories. Directories that do not
// exist are skipped; at least one must remain.
func New(dirs ...string) (*Roots, error) {
	var resolved []string
	for _, dir := range dirs {
		dir = strings.TrimSpace(dir)
		if dir == "" {
			continue
		}
		abs, err := filepath.Abs(dir)
		if err != nil {
			continue
		}
		abs, err = filepath.EvalSymlinks(abs)
		if err != nil {
			continue
		}
		info, err := os.Stat(abs)
		if err != nil || !info.IsDir() {
			continue
		}
		resolved = append(resolved, abs)
	}
	if len(resolved) == 0 {
		return nil, errors.New("modelfs: no usable model directories")
	}
	return &Roots{dirs: resolved}, nil
}

// Dirs returns the bound directories.
func (r *Roots) Dirs() []string {
	return append([]string(nil), r.dirs...)
}

// Resolve locates name under one of the roots and returns its absolute
// path. Relative subpaths are allowed, traversal outside the roots is not.
func (r *Roots) Resolve(name string) (string, error) {
	if r == nil {
		return "", errors.New("modelfs: resolver not configured")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.New("modelfs: empty file name")
	}
	clean := filepath.Clean(name)
	if filepath.IsAbs(clean) || (runtime.GOOS == "windows" && filepath.VolumeName(clean) != "") {
		return "", fmt.Errorf("modelfs: absolute paths not allowed: %s", name)
	}
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("modelfs: path traversal not allowed: %s", name)
	}

	for _, dir := range r.dirs {
		candidate := filepath.Join(dir, clean)
		resolved, err := filepath.EvalSymlinks(candidate)
		if err != nil {
			continue
		}
		if !hasPathPrefix(resolved, dir) {
			continue
		}
		info, err := os.Stat(resolved)
		if err != nil || info.IsDir() {
			continue
		}
		return resolved, nil
	}
	return "", fmt.Errorf("modelfs: %s not found under model directories", name)
}

// List enumerates model files across all roots, sorted case-insensitively.
// Names are reported relative to their root.
func (r *Roots) List() ([]string, error) {
	if r == nil {
		return nil, errors.New("modelfs: resolver not configured")
	}
	seen := map[string]bool{}
	var names []string
	for _, dir := range r.dirs {
		err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return nil
			}
			if !modelExts[strings.ToLower(filepath.Ext(d.Name()))] {
				return nil
			}
			rel, relErr := filepath.Rel(dir, path)
			if relErr != nil {
				return nil
			}
			if !seen[rel] {
				seen[rel] = true
				names = append(names, rel)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	sort.Slice(names, func(i, j int) bool {
		return strings.ToLower(names[i]) < strings.ToLower(names[j])
	})
	return names, nil
}

func hasPathPrefix(path, root string) bool {
	path = filepath.Clean(path)
	root = filepath.Clean(root)
	if runtime.GOOS == "windows" {
		path = strings.ToLower(path)
		root = strings.ToLower(root)
	}
	if path == root {
		return true
	}
	sep := string(os.PathSeparator)
	if !strings.HasSuffix(root, sep) {
		root += sep
	}
	return strings.HasPrefix(path, root)
}
