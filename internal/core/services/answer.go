package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/Anonymous1223334444/mediServe/internal/core/domain"
	"github.com/Anonymous1223334444/mediServe/internal/core/ports/driven"
	"github.com/Anonymous1223334444/mediServe/internal/core/ports/driving"
	"github.com/Anonymous1223334444/mediServe/internal/logger"
	"github.com/Anonymous1223334444/mediServe/internal/metrics"
)

// Ensure AnswerOrchestrator implements the interface.
var _ driving.AnswerService = (*AnswerOrchestrator)(nil)

// maxQuoteLen caps how much of a chunk is quoted verbatim into the
// grounding prompt.
const maxQuoteLen = 500

// noContextAnswer is returned without calling the model when retrieval
// finds nothing to ground on.
const noContextAnswer = "Je ne trouve pas cette information dans vos documents médicaux. " +
	"N'hésitez pas à contacter votre médecin pour toute question."

// sourceLabels render passage origins for citations.
var sourceLabels = map[domain.SourceType]string{
	domain.SourceTypeText:     "texte",
	domain.SourceTypeTable:    "tableau",
	domain.SourceTypeImageOCR: "image",
}

// AnswerOrchestrator grounds patient questions in retrieved passages
// and delegates to the generation backend, spacing calls to respect
// provider rate limits.
type AnswerOrchestrator struct {
	retriever driving.RetrievalService
	generator driven.GenerationService
	sessions  driven.SessionStore
	limiter   *rate.Limiter
	opts      domain.RetrievalOptions

	collector *metrics.Collector
}

// NewAnswerOrchestrator creates an orchestrator. generator may be nil,
// which makes Answer return domain.ErrGenerationUnavailable; sessions
// may be nil to skip conversation persistence. minDelay spaces
// generation calls, zero disables the limit.
func NewAnswerOrchestrator(
	retriever driving.RetrievalService,
	generator driven.GenerationService,
	sessions driven.SessionStore,
	opts domain.RetrievalOptions,
	minDelay time.Duration,
) *AnswerOrchestrator {
	limit := rate.Inf
	if minDelay > 0 {
		limit = rate.Every(minDelay)
	}

	return &AnswerOrchestrator{
		retriever: retriever,
		generator: generator,
		sessions:  sessions,
		limiter:   rate.NewLimiter(limit, 1),
		opts:      opts.Normalize(),
	}
}

// SetMetrics attaches the Prometheus collector. Optional.
func (o *AnswerOrchestrator) SetMetrics(c *metrics.Collector) {
	o.collector = c
}

// Answer runs retrieval, builds the grounding prompt and calls the
// generation backend.
func (o *AnswerOrchestrator) Answer(ctx context.Context, req driving.AnswerRequest) (*driving.AnswerResponse, error) {
	start := time.Now()

	if req.EntityID == "" || strings.TrimSpace(req.Query) == "" {
		return nil, domain.ErrInvalidInput
	}
	if o.generator == nil {
		return nil, domain.ErrGenerationUnavailable
	}

	retrieval, err := o.retriever.Retrieve(ctx, req.EntityID, req.Query, o.opts)
	if err != nil {
		o.countError()
		return nil, err
	}

	var answer string
	if len(retrieval.Results) == 0 {
		answer = noContextAnswer
	} else {
		if err := o.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		answer, err = o.generator.Generate(ctx, buildPrompt(req.Query, retrieval.Results))
		if err != nil {
			o.countError()
			return nil, fmt.Errorf("generating answer: %w", err)
		}
	}

	resp := &driving.AnswerResponse{
		Answer:    answer,
		EntityID:  req.EntityID,
		SessionID: req.SessionID,
		LatencyMS: time.Since(start).Milliseconds(),
	}

	o.recordExchange(ctx, req, resp)

	if o.collector != nil {
		o.collector.AnswerDuration.Observe(time.Since(start).Seconds())
	}
	return resp, nil
}

// buildPrompt renders the bounded French grounding prompt: every
// passage is quoted verbatim, truncated, and cited with its source
// kind and page.
func buildPrompt(query string, results []domain.RetrievalResult) string {
	var sb strings.Builder

	sb.WriteString("Tu es un assistant médical qui répond aux questions d'un patient ")
	sb.WriteString("à partir de ses propres documents médicaux.\n\n")
	sb.WriteString("Règles:\n")
	sb.WriteString("- Réponds uniquement à partir des extraits ci-dessous.\n")
	sb.WriteString("- Si l'information n'y figure pas, dis-le clairement et recommande de consulter un médecin.\n")
	sb.WriteString("- Réponds en français, simplement et sans jargon.\n")
	sb.WriteString("- Cite la source entre parenthèses, par exemple (ordonnance.pdf, page 2).\n\n")
	sb.WriteString("Extraits des documents du patient:\n\n")

	for i, r := range results {
		label := sourceLabels[r.Chunk.SourceType]
		if label == "" {
			label = string(r.Chunk.SourceType)
		}

		sb.WriteString(fmt.Sprintf("[Extrait %d - %s", i+1, label))
		if r.Chunk.FileName != "" {
			sb.WriteString(" - " + r.Chunk.FileName)
		}
		if r.Chunk.Page > 0 {
			sb.WriteString(fmt.Sprintf(" - page %d", r.Chunk.Page))
		}
		sb.WriteString("]\n")
		sb.WriteString(truncate(r.Chunk.Text, maxQuoteLen))
		sb.WriteString("\n\n")
	}

	sb.WriteString("Question du patient: ")
	sb.WriteString(strings.TrimSpace(query))
	sb.WriteString("\n\nRéponse:")

	return sb.String()
}

// truncate cuts s at max runes without splitting one.
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}

// recordExchange persists the question/answer pair when session
// tracking is configured. Best-effort: a storage hiccup never loses
// the answer.
func (o *AnswerOrchestrator) recordExchange(ctx context.Context, req driving.AnswerRequest, resp *driving.AnswerResponse) {
	if o.sessions == nil || req.SessionID == "" {
		return
	}

	if _, err := o.sessions.GetOrCreateSession(ctx, req.SessionID, req.EntityID); err != nil {
		logger.Warn("opening session %s: %v", req.SessionID, err)
		return
	}

	msg := &domain.Message{
		SessionID:   req.SessionID,
		UserMessage: req.Query,
		Answer:      resp.Answer,
		LatencyMS:   resp.LatencyMS,
	}
	if err := o.sessions.SaveMessage(ctx, msg); err != nil {
		logger.Warn("saving message for session %s: %v", req.SessionID, err)
	}
}

func (o *AnswerOrchestrator) countError() {
	if o.collector != nil {
		o.collector.AnswerErrors.Inc()
	}
}
