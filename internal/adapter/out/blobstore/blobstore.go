package blobstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// DiskStore keeps attachment payloads in a single directory under generated
// names. User-supplied file names never reach the filesystem.
type DiskStore struct {
	dir       string
	publicURL string
}

func NewDiskStore(dir, publicURL string) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &DiskStore{dir: dir, publicURL: strings.TrimRight(publicURL, "/")}, nil
}

// Store writes data under a fresh name with the given extension and returns
// the URL the file is served at.
func (s *DiskStore) Store(_ context.Context, ext string, data []byte) (string, error) {
	name := uuid.NewString() + ext
	if err := os.WriteFile(filepath.Join(s.dir, name), data, 0o644); err != nil {
		return "", fmt.Errorf("write attachment file: %w", err)
	}
	return s.publicURL + "/" + name, nil
}

// Remove deletes the file a previously returned URL points at. A missing
// file is not an error.
func (s *DiskStore) Remove(_ context.Context, fileURL string) error {
	name := filepath.Base(fileURL)
	if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove attachment file: %w", err)
	}
	return nil
}

// Dir is the directory files are written to, for mounting a file server.
func (s *DiskStore) Dir() string { return s.dir }
