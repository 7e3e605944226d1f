package arbiter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// HTTPProvider is a Provider backed by a JSON HTTP endpoint: it posts the
// arbiter's prompt and returns whatever text the endpoint replies with,
// unparsed, for Arbitrate's parseResponse to interpret. Grounded on the
// teacher's autotune/review/llm.Client (Approve/ApproveTaxonomy), which
// posts a {"prompt": ...} body and expects a JSON reply back; generalized
// here from a fixed approve/reject shape to an opaque prompt-in,
// response-text-out contract since the arbiter's prompt already embeds
// its own expected JSON schema.
type HTTPProvider struct {
	Endpoint string
	APIKey   string

	HTTPClient *http.Client
}

type llmRequest struct {
	Prompt string `json:"prompt"`
}

type llmResponse struct {
	Response string `json:"response"`
	Error    string `json:"error,omitempty"`
}

// Query implements Provider.
func (c *HTTPProvider) Query(ctx context.Context, prompt string) (string, error) {
	if c.Endpoint == "" {
		return "", fmt.Errorf("arbiter: llm provider endpoint required")
	}

	body, err := json.Marshal(llmRequest{Prompt: prompt})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("arbiter: llm provider http %d", resp.StatusCode)
	}

	var payload llmResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", err
	}
	if payload.Error != "" {
		return "", fmt.Errorf("arbiter: llm provider error: %s", payload.Error)
	}
	return payload.Response, nil
}

func (c *HTTPProvider) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: 10 * time.Second}
}
