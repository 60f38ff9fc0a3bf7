package blob

import (
	"context"
	"fmt"

	"cloud.google.com/go/storage"
)

const gcsHost = "storage.googleapis.com"

// GCSStore stores objects in Google Cloud Storage. The container maps to a
// bucket and URLs use the public storage host, so SplitURL recovers
// bucket+object from any URL this store produced.
type GCSStore struct {
	client *storage.Client
}

var _ Store = (*GCSStore)(nil)

func NewGCSStore(ctx context.Context) (*GCSStore, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	return &GCSStore{client: client}, nil
}

func (s *GCSStore) Put(ctx context.Context, container string, data []byte, objectPath string, contentType string) (string, error) {
	rel, err := cleanRel(objectPath)
	if err != nil {
		return "", err
	}
	w := s.client.Bucket(container).Object(rel).NewWriter(ctx)
	w.ContentType = contentType
	w.ContentDisposition = "inline"
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("write object %s: %w", rel, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("finalize object %s: %w", rel, err)
	}
	return s.URL(container, rel), nil
}

func (s *GCSStore) Delete(ctx context.Context, objectURL string) error {
	container, rel, err := SplitURL(objectURL)
	if err != nil {
		return err
	}
	if err := s.client.Bucket(container).Object(rel).Delete(ctx); err != nil {
		return fmt.Errorf("delete object %s: %w", objectURL, err)
	}
	return nil
}

func (s *GCSStore) URL(container, objectPath string) string {
	return fmt.Sprintf("https://%s/%s/%s", gcsHost, container, objectPath)
}

func (s *GCSStore) Close() error {
	return s.client.Close()
}
