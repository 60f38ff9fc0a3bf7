package blob

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"
)

// Store is durable object storage. The returned URL is the artifact's
// identity everywhere else in the system; records never hold raw bytes.
//
// Delete must propagate failures so callers can decide whether a failed
// cleanup blocks them.
type Store interface {
	Put(ctx context.Context, container string, data []byte, objectPath string, contentType string) (string, error)
	Delete(ctx context.Context, objectURL string) error
	// URL returns the address an object would have at the given path without
	// writing anything. Used to hand an external service its write destination.
	URL(container, objectPath string) string
}

var ErrInvalidURL = errors.New("blob: invalid object URL")

// SplitURL recovers (container, path) from an object URL of the form
// https://<account>/<container>/<path>.
func SplitURL(objectURL string) (container, objectPath string, err error) {
	u, err := url.Parse(objectURL)
	if err != nil {
		return "", "", ErrInvalidURL
	}
	parts := strings.SplitN(strings.TrimPrefix(u.Path, "/"), "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", ErrInvalidURL
	}
	return parts[0], parts[1], nil
}

// ObjectPath builds the deterministic artifact path
// <kind>/<role>/<sanitizedName><ext>. Role is one of original, modified,
// compared, translated.
func ObjectPath(kind, role, name, ext string) string {
	safe := strings.ReplaceAll(strings.TrimSpace(name), " ", "_")
	return fmt.Sprintf("%s/%s/%s%s", kind, role, safe, strings.ToLower(ext))
}

// cleanRel rejects paths that would escape the container root.
func cleanRel(objectPath string) (string, error) {
	p := path.Clean("/" + objectPath)
	if p == "/" {
		return "", fmt.Errorf("blob: empty object path")
	}
	return strings.TrimPrefix(p, "/"), nil
}
