// Package vault abstracts the host document store. The synchronizer only
// ever touches documents through this interface, so tests can run against
// the in-memory implementation.
package vault

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Store is the capability surface the document store exposes: plain
// path-string file operations, nothing more.
type Store interface {
	Exists(path string) bool
	Read(path string) (string, error)
	Write(path string, content string) error
	Rename(oldPath, newPath string) error
	Delete(path string) error
	// List returns the names (not paths) of regular files in dir.
	List(dir string) ([]string, error)
	MkdirAll(dir string) error
}

// FSStore is the filesystem-backed store used in production.
type FSStore struct {
	root string
}

// NewFSStore creates a store rooted at the given directory. All paths
// passed to the store are interpreted relative to the root.
func NewFSStore(root string) *FSStore {
	return &FSStore{root: root}
}

func (s *FSStore) abs(path string) string {
	return filepath.Join(s.root, filepath.FromSlash(path))
}

// Exists implements Store.
func (s *FSStore) Exists(path string) bool {
	_, err := os.Stat(s.abs(path))
	return err == nil
}

// Read implements Store.
func (s *FSStore) Read(path string) (string, error) {
	data, err := os.ReadFile(s.abs(path))
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(data), nil
}

// Write implements Store.
func (s *FSStore) Write(path string, content string) error {
	abs := s.abs(path)
	if err := os.MkdirAll(filepath.Dir(abs), 0755); err != nil {
		return fmt.Errorf("create parent dir for %s: %w", path, err)
	}
	if err := os.WriteFile(abs, []byte(content), 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// Rename implements Store.
func (s *FSStore) Rename(oldPath, newPath string) error {
	if err := os.Rename(s.abs(oldPath), s.abs(newPath)); err != nil {
		return fmt.Errorf("rename %s to %s: %w", oldPath, newPath, err)
	}
	return nil
}

// Delete implements Store.
func (s *FSStore) Delete(path string) error {
	if err := os.Remove(s.abs(path)); err != nil {
		return fmt.Errorf("delete %s: %w", path, err)
	}
	return nil
}

// List implements Store.
func (s *FSStore) List(dir string) ([]string, error) {
	entries, err := os.ReadDir(s.abs(dir))
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		names = append(names, entry.Name())
	}
	return names, nil
}

// MkdirAll implements Store.
func (s *FSStore) MkdirAll(dir string) error {
	if err := os.MkdirAll(s.abs(dir), 0755); err != nil {
		return fmt.Errorf("create dir %s: %w", dir, err)
	}
	return nil
}

// MemStore is an in-memory store for tests.
type MemStore struct {
	files map[string]string
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{files: make(map[string]string)}
}

// Exists implements Store.
func (s *MemStore) Exists(path string) bool {
	_, ok := s.files[clean(path)]
	return ok
}

// Read implements Store.
func (s *MemStore) Read(path string) (string, error) {
	content, ok := s.files[clean(path)]
	if !ok {
		return "", fmt.Errorf("read %s: %w", path, os.ErrNotExist)
	}
	return content, nil
}

// Write implements Store.
func (s *MemStore) Write(path string, content string) error {
	s.files[clean(path)] = content
	return nil
}

// Rename implements Store.
func (s *MemStore) Rename(oldPath, newPath string) error {
	content, ok := s.files[clean(oldPath)]
	if !ok {
		return fmt.Errorf("rename %s: %w", oldPath, os.ErrNotExist)
	}
	delete(s.files, clean(oldPath))
	s.files[clean(newPath)] = content
	return nil
}

// Delete implements Store.
func (s *MemStore) Delete(path string) error {
	if _, ok := s.files[clean(path)]; !ok {
		return fmt.Errorf("delete %s: %w", path, os.ErrNotExist)
	}
	delete(s.files, clean(path))
	return nil
}

// List implements Store.
func (s *MemStore) List(dir string) ([]string, error) {
	prefix := clean(dir)
	if prefix != "" {
		prefix += "/"
	}

	var names []string
	for path := range s.files {
		if !strings.HasPrefix(path, prefix) {
			continue
		}
		rest := strings.TrimPrefix(path, prefix)
		if strings.Contains(rest, "/") {
			continue
		}
		names = append(names, rest)
	}
	sort.Strings(names)
	return names, nil
}

// MkdirAll implements Store.
func (s *MemStore) MkdirAll(dir string) error {
	return nil
}

func clean(path string) string {
	p := strings.Trim(filepath.ToSlash(filepath.Clean(path)), "/")
	if p == "." {
		return ""
	}
	return p
}

var (
	_ Store = (*FSStore)(nil)
	_ Store = (*MemStore)(nil)
)
