// Package llm calls an OpenAI-compatible embeddings endpoint,
// implementing embedding.Provider.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/cognicore/companymatch/pkg/companymatch/internalerr"
)

// Client calls an OpenAI-compatible /embeddings endpoint in batches,
// implementing embedding.Provider.
type Client struct {
	BaseURL string
	APIKey  string
	Model   string

	HTTPClient *http.Client
}

type embeddingsRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingsResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// EmbedBatch implements embedding.Provider.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	if c.BaseURL == "" || c.Model == "" {
		return nil, fmt.Errorf("llm: base URL and model required")
	}
	if len(texts) == 0 {
		return nil, nil
	}

	payload, err := c.send(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(payload.Data) != len(texts) {
		return nil, fmt.Errorf("llm: %w: got %d vectors for %d inputs", internalerr.ErrProviderBatchMismatch, len(payload.Data), len(texts))
	}

	out := make([][]float64, len(texts))
	for _, d := range payload.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, fmt.Errorf("llm: embeddings endpoint returned out-of-range index %d", d.Index)
		}
		out[d.Index] = d.Embedding
	}
	return out, nil
}

func (c *Client) send(ctx context.Context, texts []string) (*embeddingsResponse, error) {
	reqBody, err := json.Marshal(embeddingsRequest{Model: c.Model, Input: texts})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL, bytes.NewReader(reqBody))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}
	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	var payload embeddingsResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}
	if payload.Error != nil {
		return nil, fmt.Errorf("llm error: %s", payload.Error.Message)
	}
	return &payload, nil
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: 15 * time.Second}
}
