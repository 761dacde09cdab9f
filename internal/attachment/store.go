// Package attachment provides access to user-attached documents referenced
// by workflows. The engine holds references only; this package owns the
// bytes, a read-through cache, and change invalidation.
package attachment

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrNotFound is returned when an attachment id has no stored content.
// Callers treat this as non-fatal: the prompt builder renders a placeholder
// instead of aborting the workflow.
var ErrNotFound = errors.New("attachment not found")

// Store retrieves attachment content by id.
type Store interface {
	// Get returns the raw bytes for the attachment, or ErrNotFound.
	Get(ctx context.Context, id string) ([]byte, error)
}

// DirStore serves attachments from a directory, one file per attachment id.
type DirStore struct {
	root string
}

// NewDirStore creates a Store backed by the given directory.
func NewDirStore(root string) (*DirStore, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("attachment directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("attachment path %s is not a directory", root)
	}
	return &DirStore{root: root}, nil
}

// Root returns the directory this store reads from.
func (s *DirStore) Root() string {
	return s.root
}

// Get returns the file contents for id. Ids are treated as file names
// relative to the store root; traversal outside the root is rejected.
func (s *DirStore) Get(_ context.Context, id string) ([]byte, error) {
	if id == "" || strings.Contains(id, "..") {
		return nil, ErrNotFound
	}

	path := filepath.Join(s.root, filepath.Clean(id))
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is rooted and cleaned above
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading attachment %s: %w", id, err)
	}
	return data, nil
}

var _ Store = (*DirStore)(nil)
