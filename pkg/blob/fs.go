package blob

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// FSStore keeps objects on the local filesystem under
// <baseDir>/<container>/<path> and addresses them with the same
// https://<host>/<container>/<path> scheme the hosted backends use. It is the
// default backend for development and tests.
type FSStore struct {
	baseDir string
	host    string
}

var _ Store = (*FSStore)(nil)

func NewFSStore(baseDir, host string) (*FSStore, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create blob base dir: %w", err)
	}
	return &FSStore{baseDir: baseDir, host: host}, nil
}

func (s *FSStore) Put(ctx context.Context, container string, data []byte, objectPath string, contentType string) (string, error) {
	rel, err := cleanRel(objectPath)
	if err != nil {
		return "", err
	}
	full := filepath.Join(s.baseDir, container, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("create object dir: %w", err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return "", fmt.Errorf("write object: %w", err)
	}
	return s.URL(container, rel), nil
}

func (s *FSStore) Delete(ctx context.Context, objectURL string) error {
	container, rel, err := SplitURL(objectURL)
	if err != nil {
		return err
	}
	rel, err = cleanRel(rel)
	if err != nil {
		return err
	}
	full := filepath.Join(s.baseDir, container, filepath.FromSlash(rel))
	if err := os.Remove(full); err != nil {
		return fmt.Errorf("delete object %s: %w", objectURL, err)
	}
	return nil
}

func (s *FSStore) URL(container, objectPath string) string {
	return fmt.Sprintf("https://%s/%s/%s", s.host, container, objectPath)
}

// Get reads an object back by URL. Round-trip helper for callers that own the
// filesystem backend (tests, the inbox watcher's dry-run mode).
func (s *FSStore) Get(ctx context.Context, objectURL string) ([]byte, error) {
	container, rel, err := SplitURL(objectURL)
	if err != nil {
		return nil, err
	}
	rel, err = cleanRel(rel)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(s.baseDir, container, filepath.FromSlash(rel)))
	if err != nil {
		return nil, fmt.Errorf("read object %s: %w", objectURL, err)
	}
	return data, nil
}
