package storage

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// LocalStore writes uploads to a directory on the local filesystem and
// serves them under a base URL.
type LocalStore struct {
	dir     string
	baseURL string
}

// NewLocalStore creates the upload directory if needed.
func NewLocalStore(dir, baseURL string) (*LocalStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("upload directory is required")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create upload directory: %w", err)
	}
	return &LocalStore{dir: dir, baseURL: strings.TrimSuffix(baseURL, "/")}, nil
}

// Save writes data under a generated name preserving the original
// extension, and returns the serving URL.
func (s *LocalStore) Save(_ context.Context, filename, _ string, data []byte) (string, error) {
	name := uuid.NewString() + filepath.Ext(filename)
	dst := filepath.Join(s.dir, name)
	if err := os.WriteFile(dst, data, 0o640); err != nil {
		return "", fmt.Errorf("write upload: %w", err)
	}
	return s.baseURL + "/" + name, nil
}

// Delete removes the file behind a URL previously returned by Save.
func (s *LocalStore) Delete(_ context.Context, url string) error {
	if !strings.HasPrefix(url, s.baseURL+"/") {
		return fmt.Errorf("url %q is not served by this store", url)
	}
	name := path.Base(url)
	if err := os.Remove(filepath.Join(s.dir, name)); err != nil {
		return fmt.Errorf("remove upload: %w", err)
	}
	return nil
}
