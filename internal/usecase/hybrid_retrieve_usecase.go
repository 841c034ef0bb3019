package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"chat-orchestrator/internal/domain"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// HybridRetriever composes the retrieval pipeline: embed the standalone
// query, fetch coarse candidates from the vector index, rescore locally with
// cosine similarity, then rerank the survivors with a cross-encoder.
type HybridRetriever interface {
	Retrieve(ctx context.Context, query string, retrievalID string) (*domain.RetrievalOutcome, error)
}

type hybridRetriever struct {
	embedder domain.EmbeddingProvider
	index    domain.VectorIndex
	scorer   domain.CrossEncoderScorer
	cfg      PipelineConfig
	cache    *expirable.LRU[string, []float32]
	logger   *slog.Logger
}

// NewHybridRetriever wires the pipeline stages. scorer may be nil, in which
// case the ordering stays cosine-based.
func NewHybridRetriever(
	embedder domain.EmbeddingProvider,
	index domain.VectorIndex,
	scorer domain.CrossEncoderScorer,
	cfg PipelineConfig,
	logger *slog.Logger,
) HybridRetriever {
	var cache *expirable.LRU[string, []float32]
	if cfg.EmbeddingCacheSize > 0 {
		cache = expirable.NewLRU[string, []float32](cfg.EmbeddingCacheSize, nil, cfg.EmbeddingCacheTTL)
	}
	return &hybridRetriever{
		embedder: embedder,
		index:    index,
		scorer:   scorer,
		cfg:      cfg,
		cache:    cache,
		logger:   logger,
	}
}

func (r *hybridRetriever) Retrieve(ctx context.Context, query string, retrievalID string) (*domain.RetrievalOutcome, error) {
	start := time.Now()

	// Stage 1: embed. A provider failure is fatal for the request.
	queryVector, err := r.embedQuery(ctx, query)
	if err != nil {
		r.logger.Error("retrieve_embed_failed",
			slog.String("retrieval_id", retrievalID),
			slog.String("error", err.Error()),
			slog.Int64("elapsed_ms", time.Since(start).Milliseconds()))
		return nil, &domain.EmbeddingError{Err: err}
	}

	// Stage 2: coarse retrieval. Zero matches is a first-class outcome and
	// ends the pipeline before any cross-encoder work.
	indexCtx, cancel := context.WithTimeout(ctx, r.cfg.IndexTimeout)
	matches, err := r.index.Query(indexCtx, queryVector, r.cfg.TopK)
	cancel()
	if err != nil {
		r.logger.Error("retrieve_index_failed",
			slog.String("retrieval_id", retrievalID),
			slog.String("error", err.Error()))
		return nil, err
	}
	if len(matches) == 0 {
		r.logger.Info("retrieve_empty",
			slog.String("retrieval_id", retrievalID),
			slog.Int64("elapsed_ms", time.Since(start).Milliseconds()))
		return domain.EmptyOutcome(), nil
	}

	// Stage 3: local cosine rescoring. Matches without a stored vector of
	// the right dimension are dropped, not scored as zero, so the ordering
	// never mixes incomparable score scales. Duplicate ids keep the best
	// cosine.
	candidates := r.rescore(queryVector, matches)
	if len(candidates) == 0 {
		r.logger.Warn("retrieve_no_rescorable_candidates",
			slog.String("retrieval_id", retrievalID),
			slog.Int("index_matches", len(matches)))
		return domain.EmptyOutcome(), nil
	}
	domain.SortCandidates(candidates)
	rerankK := r.cfg.RerankK
	if rerankK > len(candidates) {
		rerankK = len(candidates)
	}
	candidates = candidates[:rerankK]

	// Stage 4: cross-encoder reranking. Failure degrades to the cosine
	// ordering and is reported, not absorbed.
	outcome := &domain.RetrievalOutcome{Status: domain.OutcomeOK}
	reranked, err := r.rerank(ctx, query, candidates)
	if err != nil {
		r.logger.Warn("reranking_failed_using_cosine_order",
			slog.String("retrieval_id", retrievalID),
			slog.String("error", err.Error()))
		outcome.Degraded = true
		outcome.Candidates = truncate(candidates, r.cfg.FinalK)
	} else {
		domain.SortCandidates(reranked)
		outcome.Candidates = truncate(reranked, r.cfg.FinalK)
	}

	r.logger.Info("retrieve_completed",
		slog.String("retrieval_id", retrievalID),
		slog.Int("index_matches", len(matches)),
		slog.Int("ranked", len(outcome.Candidates)),
		slog.Bool("degraded", outcome.Degraded),
		slog.Int64("elapsed_ms", time.Since(start).Milliseconds()))
	return outcome, nil
}

func (r *hybridRetriever) embedQuery(ctx context.Context, query string) ([]float32, error) {
	if r.cache != nil {
		if vec, ok := r.cache.Get(query); ok {
			return vec, nil
		}
	}
	embedCtx, cancel := context.WithTimeout(ctx, r.cfg.EmbedTimeout)
	defer cancel()
	vec, err := r.embedder.EmbedQuery(embedCtx, query)
	if err != nil {
		return nil, err
	}
	if r.cache != nil {
		r.cache.Add(query, vec)
	}
	return vec, nil
}

func (r *hybridRetriever) rescore(queryVector []float32, matches []domain.IndexMatch) []domain.RetrievalCandidate {
	best := make(map[string]domain.RetrievalCandidate, len(matches))
	for _, m := range matches {
		if len(m.Passage.Embedding) != len(queryVector) {
			continue
		}
		cand := domain.RetrievalCandidate{
			Passage:    m.Passage,
			IndexScore: m.Score,
		}.WithCosineScore(domain.Cosine(queryVector, m.Passage.Embedding))

		if prev, ok := best[m.Passage.ID]; !ok || cand.CosineScore > prev.CosineScore {
			best[m.Passage.ID] = cand
		}
	}
	candidates := make([]domain.RetrievalCandidate, 0, len(best))
	for _, cand := range best {
		candidates = append(candidates, cand)
	}
	return candidates
}

func (r *hybridRetriever) rerank(ctx context.Context, query string, candidates []domain.RetrievalCandidate) ([]domain.RetrievalCandidate, error) {
	if r.scorer == nil {
		return candidates, nil
	}
	texts := make([]string, len(candidates))
	for i, c := range candidates {
		texts[i] = c.Passage.Text
	}

	rerankCtx, cancel := context.WithTimeout(ctx, r.cfg.RerankTimeout)
	defer cancel()
	scores, err := r.scorer.Score(rerankCtx, query, texts)
	if err != nil {
		return nil, err
	}
	if len(scores) != len(candidates) {
		return nil, errScoreCountMismatch(len(candidates), len(scores))
	}

	reranked := make([]domain.RetrievalCandidate, len(candidates))
	for i, c := range candidates {
		reranked[i] = c.WithRerankScore(scores[i])
	}
	return reranked, nil
}

func errScoreCountMismatch(want, got int) error {
	return fmt.Errorf("cross-encoder returned %d scores for %d candidates", got, want)
}

func truncate(candidates []domain.RetrievalCandidate, limit int) domain.RankedResult {
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return domain.RankedResult(candidates)
}
