// Package reranker provides a cross-encoder adapter speaking the
// text-embeddings-inference /rerank protocol.
package reranker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Anonymous1223334444/mediServe/internal/core/ports/driven"
)

var _ driven.Reranker = (*Client)(nil)

// Default configuration values.
const (
	DefaultBaseURL   = "http://localhost:8080"
	DefaultTimeout   = 30 * time.Second
	DefaultBatchSize = 32
)

// Config holds configuration for the rerank client.
type Config struct {
	// BaseURL is the rerank server base URL.
	BaseURL string

	// Timeout is the request timeout.
	Timeout time.Duration

	// BatchSize caps how many passages go into one request. Larger
	// candidate sets are split and scored in order.
	BatchSize int
}

// Client scores (query, passage) pairs against a hosted cross-encoder.
type Client struct {
	client    *http.Client
	baseURL   string
	batchSize int
}

type rerankRequest struct {
	Query string   `json:"query"`
	Texts []string `json:"texts"`
}

type rerankResult struct {
	Index int     `json:"index"`
	Score float64 `json:"score"`
}

// NewClient creates a new rerank client.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}

	return &Client{
		client:    &http.Client{Timeout: cfg.Timeout},
		baseURL:   cfg.BaseURL,
		batchSize: cfg.BatchSize,
	}
}

// Score returns one relevance score per passage, index-aligned with the
// input.
func (c *Client) Score(ctx context.Context, query string, passages []string) ([]float64, error) {
	if len(passages) == 0 {
		return nil, nil
	}

	scores := make([]float64, len(passages))
	for start := 0; start < len(passages); start += c.batchSize {
		end := start + c.batchSize
		if end > len(passages) {
			end = len(passages)
		}

		batch, err := c.scoreBatch(ctx, query, passages[start:end])
		if err != nil {
			return nil, err
		}
		copy(scores[start:end], batch)
	}

	return scores, nil
}

func (c *Client) scoreBatch(ctx context.Context, query string, texts []string) ([]float64, error) {
	jsonBody, err := json.Marshal(rerankRequest{Query: query, Texts: texts})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/rerank", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("rerank error (status %d): %s", resp.StatusCode, string(body))
	}

	var results []rerankResult
	if err := json.Unmarshal(body, &results); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	scores := make([]float64, len(texts))
	for _, r := range results {
		if r.Index < 0 || r.Index >= len(scores) {
			return nil, fmt.Errorf("rerank returned out-of-range index %d for %d texts", r.Index, len(texts))
		}
		scores[r.Index] = r.Score
	}
	return scores, nil
}

// Close releases resources.
func (c *Client) Close() error {
	return nil
}
