package transform

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"
)

// Input is one transformation request. Reference-style clients read the
// staged URLs; the inline client reads the raw payloads. A caller fills only
// the fields its chosen client uses.
type Input struct {
	OriginalURL    string
	ModifiedURL    string
	TargetLanguage string
	// OutputURL is the destination the translation service writes to.
	OutputURL string

	Original *Payload
	Modified *Payload
}

// Payload is raw document content shipped inline to the transformer.
type Payload struct {
	ContentType string
	Content     []byte
}

// Artifact is one derived document returned inline by the transformer.
type Artifact struct {
	ContentType string
	Content     []byte
}

// Result is the transformer outcome. Reference-style clients return
// OutputURL (plus variant metadata); the inline client returns Artifacts.
type Result struct {
	OutputURL      string
	Pages          json.RawMessage
	SourceLanguage string
	Artifacts      []Artifact
}

// Transformer is the strategy interface the pipeline dispatches on. Timeout,
// HTTP status and parse failures all surface as a plain error; the pipeline
// treats them identically.
type Transformer interface {
	Transform(ctx context.Context, in Input) (*Result, error)
}

// Transformation services chew through whole documents; give them plenty of
// time before giving up.
const DefaultTimeout = 10 * time.Minute

const errorSnippetLimit = 400

func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{Timeout: timeout}
}

// errorSnippet reads a bounded chunk of an error response body for the error
// message.
func errorSnippet(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, errorSnippetLimit))
	return string(b)
}
