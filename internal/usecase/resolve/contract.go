package resolve

import (
	"context"

	"github.com/civica-cloud/secoql/internal/domain"
)

// Searcher is the similarity-search capability. Absence is a valid
// configuration; the resolver then degrades to identity passthrough.
type Searcher interface {
	Search(ctx context.Context, mention string, topK int) ([]domain.EntityHit, error)
}

// Document is one candidate handed to the reranker.
type Document struct {
	Text     string
	Metadata map[string]any
}

// Ranking is one reranker verdict: the candidate's index in the submitted
// list and its relevance score.
type Ranking struct {
	Index     int
	Relevance float64
}

// Reranker is the optional reranking capability.
type Reranker interface {
	Rerank(ctx context.Context, query string, docs []Document) ([]Ranking, error)
}
