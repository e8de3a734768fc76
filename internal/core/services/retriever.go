package services

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Anonymous1223334444/mediServe/internal/core/domain"
	"github.com/Anonymous1223334444/mediServe/internal/core/ports/driven"
	"github.com/Anonymous1223334444/mediServe/internal/core/ports/driving"
	"github.com/Anonymous1223334444/mediServe/internal/logger"
	"github.com/Anonymous1223334444/mediServe/internal/metrics"
)

// Ensure HybridRetriever implements the interface.
var _ driving.RetrievalService = (*HybridRetriever)(nil)

// HybridRetriever fuses dense and sparse rankings over one entity's
// corpus, with an optional cross-encoder second pass.
type HybridRetriever struct {
	corpora  *CorpusManager
	embedder driven.EmbeddingService
	reranker driven.Reranker

	collector *metrics.Collector
}

// NewHybridRetriever creates a retriever. reranker may be nil, which
// turns rerank requests into a documented degradation.
func NewHybridRetriever(corpora *CorpusManager, embedder driven.EmbeddingService, reranker driven.Reranker) *HybridRetriever {
	return &HybridRetriever{
		corpora:  corpora,
		embedder: embedder,
		reranker: reranker,
	}
}

// SetMetrics attaches the Prometheus collector. Optional.
func (r *HybridRetriever) SetMetrics(c *metrics.Collector) {
	r.collector = c
}

// merged accumulates per-chunk raw scores before fusion. A chunk seen
// by only one signal keeps 0 in the other column.
type merged struct {
	dense  float64
	sparse float64
}

// Retrieve embeds the query and returns the fused top-k passages.
func (r *HybridRetriever) Retrieve(ctx context.Context, entityID, query string, opts domain.RetrievalOptions) (*driving.RetrievalResponse, error) {
	start := time.Now()
	opts = opts.Normalize()

	query = strings.TrimSpace(query)
	if query == "" {
		return &driving.RetrievalResponse{}, nil
	}

	if !r.corpora.Ready(ctx, entityID) {
		return nil, domain.ErrCorpusNotReady
	}

	store, err := r.corpora.Store(ctx, entityID)
	if err != nil {
		return nil, err
	}

	// One snapshot per call: a concurrent re-index never mixes corpus
	// generations into this response.
	snapshot := store.Snapshot()

	queryVec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, &domain.EmbeddingError{Err: err}
	}

	var (
		denseHits  []driven.VectorHit
		sparseHits []driven.SparseHit

		degradations []domain.Degradation
		degradeMu    sync.Mutex
	)
	degrade := func(d domain.Degradation) {
		degradeMu.Lock()
		degradations = append(degradations, d)
		degradeMu.Unlock()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		denseHits, err = store.Search(gctx, queryVec, opts.DenseK)
		return err
	})
	g.Go(func() error {
		x, err := r.corpora.Sparse(gctx, entityID)
		if err != nil {
			logger.Warn("sparse index unavailable for %s: %v", entityID, err)
			degrade(domain.DegradedSparseUnavailable)
			return nil
		}
		sparseHits, err = x.Search(gctx, query, opts.SparseK)
		if err != nil {
			logger.Warn("sparse search failed for %s: %v", entityID, err)
			degrade(domain.DegradedSparseUnavailable)
			sparseHits = nil
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	scores := make(map[string]*merged)
	for _, h := range denseHits {
		if _, ok := snapshot[h.ChunkID]; !ok {
			continue
		}
		scores[h.ChunkID] = &merged{dense: h.Score}
	}
	for _, h := range sparseHits {
		if _, ok := snapshot[h.ChunkID]; !ok {
			continue
		}
		if m, ok := scores[h.ChunkID]; ok {
			m.sparse = h.Score
		} else {
			scores[h.ChunkID] = &merged{sparse: h.Score}
		}
	}

	results := fuse(scores, snapshot, opts.Alpha, &degradations)

	reranked := false
	if opts.Rerank {
		reranked = r.rerank(ctx, query, results, opts.TopK, &degradations)
	}

	if len(results) > opts.TopK {
		results = results[:opts.TopK]
	}

	if r.collector != nil {
		r.collector.RetrievalDuration.WithLabelValues(boolLabel(reranked)).Observe(time.Since(start).Seconds())
		r.collector.RetrievalResults.Observe(float64(len(results)))
		for _, d := range degradations {
			r.collector.Degradations.WithLabelValues(string(d)).Inc()
		}
	}

	logger.Debug("retrieved %d results for entity %s in %s (degradations: %v)",
		len(results), entityID, time.Since(start), degradations)

	return &driving.RetrievalResponse{Results: results, Degradations: degradations}, nil
}

// fuse normalizes each score column by its max and combines them with
// the alpha weight. An all-zero column stays at zero and is reported as
// a degradation instead of dividing by zero.
func fuse(scores map[string]*merged, snapshot map[string]domain.ChunkMeta, alpha float64, degradations *[]domain.Degradation) []domain.RetrievalResult {
	var maxDense, maxSparse float64
	for _, m := range scores {
		if m.dense > maxDense {
			maxDense = m.dense
		}
		if m.sparse > maxSparse {
			maxSparse = m.sparse
		}
	}

	if len(scores) > 0 {
		if maxDense == 0 {
			*degradations = append(*degradations, domain.DegradedDenseZero)
		}
		if maxSparse == 0 {
			*degradations = append(*degradations, domain.DegradedSparseZero)
		}
	}

	results := make([]domain.RetrievalResult, 0, len(scores))
	for id, m := range scores {
		meta := snapshot[id]
		if meta.SourceType == "" {
			meta.SourceType = domain.SourceTypeText
		}

		var dn, sn float64
		if maxDense > 0 {
			dn = m.dense / maxDense
		}
		if maxSparse > 0 {
			sn = m.sparse / maxSparse
		}

		results = append(results, domain.RetrievalResult{
			Chunk:       meta,
			DenseScore:  m.dense,
			SparseScore: m.sparse,
			FusedScore:  alpha*dn + (1-alpha)*sn,
		})
	}

	sort.SliceStable(results, func(a, b int) bool {
		if results[a].FusedScore != results[b].FusedScore {
			return results[a].FusedScore > results[b].FusedScore
		}
		return results[a].Chunk.ID < results[b].Chunk.ID
	})

	return results
}

// rerank scores the top 2k fused candidates with the cross-encoder,
// then re-sorts the whole candidate list, so a candidate below the 2k
// cutoff can outrank a poorly scored reranked one. Any failure keeps
// fused order and reports a degradation. Returns whether reranking ran.
func (r *HybridRetriever) rerank(ctx context.Context, query string, results []domain.RetrievalResult, topK int, degradations *[]domain.Degradation) bool {
	if r.reranker == nil {
		*degradations = append(*degradations, domain.DegradedRerankUnavailable)
		return false
	}

	n := 2 * topK
	if n > len(results) {
		n = len(results)
	}
	if n == 0 {
		return false
	}

	passages := make([]string, n)
	for i := 0; i < n; i++ {
		passages[i] = results[i].Chunk.Text
	}

	scores, err := r.reranker.Score(ctx, query, passages)
	if err != nil || len(scores) != n {
		logger.Warn("rerank unavailable, keeping fused order: %v", err)
		*degradations = append(*degradations, domain.DegradedRerankUnavailable)
		return false
	}

	for i := 0; i < n; i++ {
		s := scores[i]
		results[i].RerankScore = &s
		results[i].FusedScore = s
	}

	sort.SliceStable(results, func(a, b int) bool {
		return results[a].FusedScore > results[b].FusedScore
	})
	return true
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
