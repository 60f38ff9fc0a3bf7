package transform

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"time"
)

var _ Transformer = (*InlineCompareClient)(nil)

// contentItem is the wire shape for inline document content: a content type
// and base64 payload per item, both ways.
type contentItem struct {
	ContentType string `json:"$content-type"`
	Content     string `json:"$content"`
}

// InlineCompareClient ships both documents to the comparison service as
// base64 content and gets every derived artifact back the same way: the
// original echo, the modified echo and the compared result, in that order.
type InlineCompareClient struct {
	httpClient *http.Client
	url        string
}

func NewInlineCompareClient(url string, timeout time.Duration) *InlineCompareClient {
	return &InlineCompareClient{httpClient: newHTTPClient(timeout), url: url}
}

func (c *InlineCompareClient) Transform(ctx context.Context, in Input) (*Result, error) {
	if in.Original == nil || in.Modified == nil {
		return nil, fmt.Errorf("inline compare: both payloads are required")
	}
	payload := []contentItem{
		{ContentType: in.Original.ContentType, Content: base64.StdEncoding.EncodeToString(in.Original.Content)},
		{ContentType: in.Modified.ContentType, Content: base64.StdEncoding.EncodeToString(in.Modified.Content)},
	}
	var out struct {
		Data []contentItem `json:"data"`
	}
	if err := postJSON(ctx, c.httpClient, c.url, payload, &out); err != nil {
		return nil, fmt.Errorf("inline compare service: %w", err)
	}
	if len(out.Data) < 3 {
		return nil, fmt.Errorf("inline compare service: expected 3 artifacts, got %d", len(out.Data))
	}
	artifacts := make([]Artifact, 0, 3)
	for i, item := range out.Data[:3] {
		content, err := base64.StdEncoding.DecodeString(item.Content)
		if err != nil {
			return nil, fmt.Errorf("inline compare service: decode artifact %d: %w", i, err)
		}
		artifacts = append(artifacts, Artifact{ContentType: item.ContentType, Content: content})
	}
	return &Result{Artifacts: artifacts}, nil
}
