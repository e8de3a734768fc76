package reranker

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rerankServer(t *testing.T, batches *[][]string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/rerank", r.URL.Path)

		var req rerankRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		*batches = append(*batches, req.Texts)

		// Score by text length, returned out of order on purpose.
		results := make([]rerankResult, 0, len(req.Texts))
		for i := len(req.Texts) - 1; i >= 0; i-- {
			results = append(results, rerankResult{Index: i, Score: float64(len(req.Texts[i]))})
		}
		require.NoError(t, json.NewEncoder(w).Encode(results))
	}))
}

func TestClient_Score(t *testing.T) {
	var batches [][]string
	srv := rerankServer(t, &batches)
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL})
	scores, err := c.Score(context.Background(), "q", []string{"a", "bbb", "cc"})
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 3, 2}, scores)
	assert.Len(t, batches, 1)
}

func TestClient_ScoreSplitsBatches(t *testing.T) {
	var batches [][]string
	srv := rerankServer(t, &batches)
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, BatchSize: 2})
	scores, err := c.Score(context.Background(), "q", []string{"a", "bb", "ccc", "dddd", "eeeee"})
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3, 4, 5}, scores)
	assert.Len(t, batches, 3)
}

func TestClient_ScoreEmpty(t *testing.T) {
	c := NewClient(Config{BaseURL: "http://unreachable.invalid"})
	scores, err := c.Score(context.Background(), "q", nil)
	require.NoError(t, err)
	assert.Nil(t, scores)
}

func TestClient_ScoreServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL})
	_, err := c.Score(context.Background(), "q", []string{"a"})
	assert.ErrorContains(t, err, "status 503")
}
