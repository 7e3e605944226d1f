package llm

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
)

type roundTrip func(*http.Request) *http.Response

func (rt roundTrip) RoundTrip(req *http.Request) (*http.Response, error) {
	return rt(req), nil
}

func TestEmbedBatchSuccess(t *testing.T) {
	client := &Client{
		BaseURL: "https://api.test/v1/embeddings",
		Model:   "embed-test",
		HTTPClient: &http.Client{
			Transport: roundTrip(func(req *http.Request) *http.Response {
				body, _ := io.ReadAll(req.Body)
				if !strings.Contains(string(body), "acme") {
					t.Fatalf("expected input text in payload, got: %s", body)
				}
				return &http.Response{
					StatusCode: 200,
					Body: io.NopCloser(strings.NewReader(`{
						"data":[
							{"index":1,"embedding":[0.2,0.3]},
							{"index":0,"embedding":[0.1,0.0]}
						]
					}`)),
					Header: make(http.Header),
				}
			}),
		},
	}

	out, err := client.EmbedBatch(context.Background(), []string{"acme", "acme holdings"})
	if err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 vectors, got %d", len(out))
	}
	if out[0][0] != 0.1 || out[1][0] != 0.2 {
		t.Fatalf("embeddings not placed at their reported index: %v", out)
	}
}

func TestEmbedBatchEmptyInput(t *testing.T) {
	client := &Client{BaseURL: "https://api.test/v1/embeddings", Model: "embed-test"}
	out, err := client.EmbedBatch(context.Background(), nil)
	if err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}
	if out != nil {
		t.Fatalf("expected nil result for empty input, got %v", out)
	}
}

func TestEmbedBatchRequiresConfig(t *testing.T) {
	client := &Client{}
	if _, err := client.EmbedBatch(context.Background(), []string{"x"}); err == nil {
		t.Fatal("expected error when BaseURL/Model unset")
	}
}

func TestEmbedBatchError(t *testing.T) {
	client := &Client{
		BaseURL: "https://api.test/v1/embeddings",
		Model:   "embed-test",
		HTTPClient: &http.Client{
			Transport: roundTrip(func(req *http.Request) *http.Response {
				return &http.Response{
					StatusCode: 200,
					Body:       io.NopCloser(strings.NewReader(`{"error":{"message":"bad"}}`)),
					Header:     make(http.Header),
				}
			}),
		},
	}
	if _, err := client.EmbedBatch(context.Background(), []string{"x"}); err == nil {
		t.Fatal("expected error")
	}
}
