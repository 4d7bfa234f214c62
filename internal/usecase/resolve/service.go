package resolve

import (
	"context"

	"go.uber.org/zap"

	"github.com/civica-cloud/secoql/internal/domain"
	"github.com/civica-cloud/secoql/internal/metrics"
)

// Service maps a free-text entity mention to a ranked canonical entity.
// Both capabilities are optional enrichments: a missing or failing searcher
// degrades to the mention itself, a failing reranker keeps the
// similarity-ranked order. Resolve never propagates an upstream failure.
type Service struct {
	searcher Searcher
	reranker Reranker
	logger   *zap.Logger
}

// New creates an entity resolver. searcher and reranker may each be nil.
func New(searcher Searcher, reranker Reranker, logger *zap.Logger) *Service {
	return &Service{searcher: searcher, reranker: reranker, logger: logger}
}

// Resolve returns the highest ranked entity for mention. The synthesis
// rules in search guarantee at least one candidate, so a nil return only
// happens if those rules change.
func (s *Service) Resolve(ctx context.Context, mention string, topK int) *domain.ResolvedEntity {
	candidates := s.search(ctx, mention, topK)
	if len(candidates) == 0 {
		return nil
	}

	if s.reranker != nil && len(candidates) > 1 {
		candidates = s.rerank(ctx, mention, candidates)
	}

	top := candidates[0]
	s.logger.Debug("Resolved entity",
		zap.String("mention", mention),
		zap.String("name", top.Name),
		zap.Float64("score", top.Score),
	)
	return &top
}

func (s *Service) search(ctx context.Context, mention string, topK int) []domain.ResolvedEntity {
	if s.searcher == nil {
		metrics.ResolverDegradesTotal.WithLabelValues("unavailable").Inc()
		return []domain.ResolvedEntity{{Name: mention, Score: 1.0, Metadata: map[string]any{}}}
	}

	hits, err := s.searcher.Search(ctx, mention, topK)
	if err != nil {
		metrics.ResolverDegradesTotal.WithLabelValues("search_error").Inc()
		s.logger.Warn("Similarity search failed, falling back to mention",
			zap.String("mention", mention), zap.Error(err))
		return []domain.ResolvedEntity{{Name: mention, Score: 1.0, Metadata: map[string]any{}}}
	}

	candidates := make([]domain.ResolvedEntity, 0, len(hits))
	for _, h := range hits {
		meta := h.Metadata
		if meta == nil {
			meta = map[string]any{}
		}
		candidates = append(candidates, domain.ResolvedEntity{
			Name:     h.Name,
			Score:    1.0 - h.Distance,
			Metadata: meta,
		})
	}

	// Score 0 marks "the index ran but matched nothing", as opposed to the
	// score-1 synthesis above for "no index configured".
	if len(candidates) == 0 {
		candidates = append(candidates, domain.ResolvedEntity{
			Name: mention, Score: 0.0, Metadata: map[string]any{},
		})
	}
	return candidates
}

func (s *Service) rerank(
	ctx context.Context, mention string, candidates []domain.ResolvedEntity,
) []domain.ResolvedEntity {
	docs := make([]Document, len(candidates))
	for i, c := range candidates {
		docs[i] = Document{Text: c.Name, Metadata: c.Metadata}
	}

	rankings, err := s.reranker.Rerank(ctx, mention, docs)
	if err != nil {
		metrics.ResolverDegradesTotal.WithLabelValues("rerank_error").Inc()
		s.logger.Warn("Reranking failed, keeping similarity order",
			zap.String("mention", mention), zap.Error(err))
		return candidates
	}

	reranked := make([]domain.ResolvedEntity, 0, len(rankings))
	for _, r := range rankings {
		if r.Index < 0 || r.Index >= len(candidates) {
			continue
		}
		c := candidates[r.Index]
		c.Score = r.Relevance
		reranked = append(reranked, c)
	}

	if len(reranked) == 0 {
		return candidates
	}
	return reranked
}
