package transform

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

var _ Transformer = (*CompareClient)(nil)
var _ Transformer = (*TranslateClient)(nil)

// CompareClient calls the reference-based comparison service: both staged
// document URLs go out, a result URL and per-page diff data come back.
type CompareClient struct {
	httpClient *http.Client
	url        string
}

func NewCompareClient(url string, timeout time.Duration) *CompareClient {
	return &CompareClient{httpClient: newHTTPClient(timeout), url: url}
}

func (c *CompareClient) Transform(ctx context.Context, in Input) (*Result, error) {
	payload := map[string]string{
		"original_document": in.OriginalURL,
		"modified_document": in.ModifiedURL,
	}
	var out struct {
		OutputFile string          `json:"output_file"`
		Pages      json.RawMessage `json:"pages"`
	}
	if err := postJSON(ctx, c.httpClient, c.url, payload, &out); err != nil {
		return nil, fmt.Errorf("compare service: %w", err)
	}
	if out.OutputFile == "" {
		return nil, errors.New("compare service: response missing output_file")
	}
	return &Result{OutputURL: out.OutputFile, Pages: out.Pages}, nil
}

// TranslateClient calls the translation service. The caller precomputes the
// destination URL; the service writes the translated document there and
// echoes the URL back along with the detected source language.
type TranslateClient struct {
	httpClient *http.Client
	url        string
}

func NewTranslateClient(url string, timeout time.Duration) *TranslateClient {
	return &TranslateClient{httpClient: newHTTPClient(timeout), url: url}
}

func (c *TranslateClient) Transform(ctx context.Context, in Input) (*Result, error) {
	payload := map[string]string{
		"input_file":  in.OriginalURL,
		"tgt_lang":    in.TargetLanguage,
		"output_file": in.OutputURL,
	}
	var out struct {
		OutputFile string `json:"output_file"`
		SrcLang    string `json:"src_lang"`
	}
	if err := postJSON(ctx, c.httpClient, c.url, payload, &out); err != nil {
		return nil, fmt.Errorf("translation service: %w", err)
	}
	if out.OutputFile == "" {
		return nil, errors.New("translation service: response missing output_file")
	}
	return &Result{OutputURL: out.OutputFile, SourceLanguage: out.SrcLang}, nil
}

// postJSON posts a JSON body and decodes a JSON response, folding transport,
// status and decode failures into one error.
func postJSON(ctx context.Context, client *http.Client, url string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d: %s", resp.StatusCode, errorSnippet(resp.Body))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
