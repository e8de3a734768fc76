package services

import (
	"context"
	"fmt"
	"time"

	"github.com/Anonymous1223334444/mediServe/internal/core/domain"
	"github.com/Anonymous1223334444/mediServe/internal/core/ports/driven"
	"github.com/Anonymous1223334444/mediServe/internal/core/ports/driving"
	"github.com/Anonymous1223334444/mediServe/internal/logger"
	"github.com/Anonymous1223334444/mediServe/internal/metrics"
)

// Ensure IndexingPipeline implements the interface.
var _ driving.IndexingService = (*IndexingPipeline)(nil)

// IndexingPipeline turns uploaded documents into indexed corpus
// chunks: extract, chunk, embed, merge-persist, then mirror the texts
// into the sparse index. Vectors and metadata for a document land
// atomically or not at all; the sparse index is best-effort.
type IndexingPipeline struct {
	corpora  *CorpusManager
	registry driven.ExtractorRegistry
	chunker  driven.Chunker
	embedder driven.EmbeddingService
	docs     driven.DocumentStore

	collector *metrics.Collector
}

// NewIndexingPipeline creates an indexing pipeline.
func NewIndexingPipeline(
	corpora *CorpusManager,
	registry driven.ExtractorRegistry,
	chunker driven.Chunker,
	embedder driven.EmbeddingService,
	docs driven.DocumentStore,
) *IndexingPipeline {
	return &IndexingPipeline{
		corpora:  corpora,
		registry: registry,
		chunker:  chunker,
		embedder: embedder,
		docs:     docs,
	}
}

// SetMetrics attaches the Prometheus collector. Optional.
func (p *IndexingPipeline) SetMetrics(c *metrics.Collector) {
	p.collector = c
}

// Ingest processes one document end to end. Processing failures land
// in the result and on the document record; the error return is
// reserved for context cancellation.
func (p *IndexingPipeline) Ingest(ctx context.Context, req driving.IngestRequest) (driving.IngestResult, error) {
	start := time.Now()
	result := driving.IngestResult{DocumentID: req.DocumentID}

	fail := func(msg string) (driving.IngestResult, error) {
		logger.Warn("ingest of document %s failed: %s", req.DocumentID, msg)
		p.setStatus(ctx, req.DocumentID, domain.IngestFailed, msg, 0)
		if p.collector != nil {
			p.collector.IngestedDocuments.WithLabelValues("failure").Inc()
		}
		result.ErrorMessage = msg
		return result, nil
	}

	if req.DocumentID == "" || req.EntityID == "" || req.FilePath == "" {
		return fail("document id, entity id and file path are required")
	}

	// One writer per entity: concurrent ingests for the same patient
	// queue up instead of interleaving corpus writes.
	unlock := p.corpora.LockEntity(req.EntityID)
	defer unlock()

	if err := ctx.Err(); err != nil {
		return result, err
	}

	p.ensureDocumentRecord(ctx, req)
	p.setStatus(ctx, req.DocumentID, domain.IngestProcessing, "", 0)

	extractor, err := p.registry.ForType(req.FileType)
	if err != nil {
		return fail(err.Error())
	}

	passages, err := extractor.Extract(ctx, req.FilePath)
	if err != nil {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		return fail(fmt.Sprintf("extraction failed: %v", err))
	}
	if len(passages) == 0 {
		return fail("no text could be extracted from the document")
	}

	chunks, err := p.buildChunks(ctx, req, passages)
	if err != nil {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		return fail(err.Error())
	}
	if len(chunks) == 0 {
		return fail("chunking produced no indexable text")
	}

	store, err := p.corpora.Store(ctx, req.EntityID)
	if err != nil {
		return fail(fmt.Sprintf("opening corpus: %v", err))
	}
	if err := store.Append(ctx, chunks); err != nil {
		return fail(fmt.Sprintf("persisting corpus: %v", err))
	}

	p.mirrorToSparse(ctx, req.EntityID, chunks)

	p.setStatus(ctx, req.DocumentID, domain.IngestIndexed, "", len(chunks))
	if p.collector != nil {
		p.collector.IngestedDocuments.WithLabelValues("success").Inc()
		p.collector.IngestedChunks.Add(float64(len(chunks)))
		p.collector.IngestDuration.Observe(time.Since(start).Seconds())
	}

	logger.Info("indexed document %s for entity %s: %d chunks in %s",
		req.DocumentID, req.EntityID, len(chunks), time.Since(start))

	result.Success = true
	result.ChunkCount = len(chunks)
	return result, nil
}

// IngestBatch processes several documents, isolating failures per
// document.
func (p *IndexingPipeline) IngestBatch(ctx context.Context, reqs []driving.IngestRequest) ([]driving.IngestResult, error) {
	results := make([]driving.IngestResult, 0, len(reqs))
	for _, req := range reqs {
		res, err := p.Ingest(ctx, req)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}

// buildChunks runs the chunker over every passage and attaches
// deterministic ids, so re-ingesting a document replaces its chunks
// instead of duplicating them.
func (p *IndexingPipeline) buildChunks(ctx context.Context, req driving.IngestRequest, passages []domain.Passage) ([]domain.Chunk, error) {
	var pieces []domain.Passage
	for _, passage := range passages {
		split, err := p.chunker.Chunk(ctx, passage)
		if err != nil {
			return nil, fmt.Errorf("chunking (%s): %v", p.chunker.Name(), err)
		}
		pieces = append(pieces, split...)
	}
	if len(pieces) == 0 {
		return nil, nil
	}

	texts := make([]string, len(pieces))
	for i, piece := range pieces {
		texts[i] = piece.Text
	}

	vectors, err := p.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embedding %d chunks: %v", len(texts), err)
	}
	if len(vectors) != len(pieces) {
		return nil, fmt.Errorf("embedding returned %d vectors for %d chunks", len(vectors), len(pieces))
	}

	// Ordinals are per (source type, page) so ids survive unrelated
	// edits elsewhere in the document.
	ordinals := make(map[string]int)
	chunks := make([]domain.Chunk, len(pieces))
	for i, piece := range pieces {
		sourceType := piece.SourceType
		if !sourceType.Valid() {
			sourceType = domain.SourceTypeText
		}

		key := fmt.Sprintf("%s_p%d", sourceType, piece.Page)
		ordinal := ordinals[key]
		ordinals[key] = ordinal + 1

		chunks[i] = domain.Chunk{
			Meta: domain.ChunkMeta{
				ID:             ChunkID(req.DocumentID, req.EntityID, sourceType, piece.Page, ordinal),
				DocumentID:     req.DocumentID,
				EntityID:       req.EntityID,
				SourceType:     sourceType,
				Page:           piece.Page,
				Text:           piece.Text,
				FileName:       req.FileName,
				EmbeddingModel: p.embedder.ModelName(),
			},
			Embedding: vectors[i],
		}
	}

	return chunks, nil
}

// ChunkID builds the deterministic chunk identifier.
func ChunkID(documentID, entityID string, sourceType domain.SourceType, page, ordinal int) string {
	return fmt.Sprintf("doc%s_patient%s_%s_p%d_c%d", documentID, entityID, sourceType, page, ordinal)
}

// mirrorToSparse upserts chunk texts into the entity's sparse index.
// Failures degrade future retrievals to dense-only, they never undo a
// persisted corpus write.
func (p *IndexingPipeline) mirrorToSparse(ctx context.Context, entityID string, chunks []domain.Chunk) {
	x, err := p.corpora.Sparse(ctx, entityID)
	if err != nil {
		logger.Warn("sparse index unavailable for %s, skipping lexical mirror: %v", entityID, err)
		return
	}

	for _, c := range chunks {
		if err := x.Upsert(ctx, c.Meta.ID, c.Meta.Text); err != nil {
			logger.Warn("sparse upsert of %s failed: %v", c.Meta.ID, err)
		}
	}
}

// ensureDocumentRecord creates the document row when the upload layer
// has not, so status tracking always has somewhere to land.
func (p *IndexingPipeline) ensureDocumentRecord(ctx context.Context, req driving.IngestRequest) {
	if _, err := p.docs.GetDocument(ctx, req.DocumentID); err == nil {
		return
	}

	doc := &domain.Document{
		ID:       req.DocumentID,
		EntityID: req.EntityID,
		FileName: req.FileName,
		FilePath: req.FilePath,
		FileType: req.FileType,
		Status:   domain.IngestPending,
	}
	if err := p.docs.SaveDocument(ctx, doc); err != nil {
		logger.Warn("creating document record %s: %v", req.DocumentID, err)
	}
}

func (p *IndexingPipeline) setStatus(ctx context.Context, id string, status domain.IngestStatus, msg string, chunkCount int) {
	if err := p.docs.SetStatus(ctx, id, status, msg, chunkCount); err != nil {
		logger.Warn("updating status of document %s to %s: %v", id, status, err)
	}
}
