package resolve

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/civica-cloud/secoql/internal/domain"
)

// --- Mocks ---

type mockSearcher struct {
	hits   []domain.EntityHit
	err    error
	called bool
	topK   int
}

func (m *mockSearcher) Search(_ context.Context, _ string, topK int) ([]domain.EntityHit, error) {
	m.called = true
	m.topK = topK
	return m.hits, m.err
}

type mockReranker struct {
	rankings []Ranking
	err      error
	called   bool
	docs     []Document
}

func (m *mockReranker) Rerank(_ context.Context, _ string, docs []Document) ([]Ranking, error) {
	m.called = true
	m.docs = docs
	return m.rankings, m.err
}

// --- Tests ---

func TestResolve_NoSearcherIdentityPassthrough(t *testing.T) {
	svc := New(nil, nil, zap.NewNop())

	for _, mention := range []string{"Ministerio de Salud", "ACME", "x"} {
		got := svc.Resolve(context.Background(), mention, 5)
		if got == nil {
			t.Fatalf("Resolve(%q) = nil", mention)
		}
		if got.Name != mention || got.Score != 1.0 || len(got.Metadata) != 0 {
			t.Errorf("Resolve(%q) = %+v, want identity with score 1.0", mention, got)
		}
	}
}

func TestResolve_SearchErrorDegrades(t *testing.T) {
	searcher := &mockSearcher{err: errors.New("index offline")}
	svc := New(searcher, nil, zap.NewNop())

	got := svc.Resolve(context.Background(), "ACME", 5)
	if got == nil || got.Name != "ACME" || got.Score != 1.0 {
		t.Errorf("expected mention passthrough, got %+v", got)
	}
}

func TestResolve_ScoreFromDistance(t *testing.T) {
	searcher := &mockSearcher{hits: []domain.EntityHit{
		{Name: "Ministerio de Salud y Protección Social", Distance: 0.12,
			Metadata: map[string]any{"dataset_id": "jbjy-vk9h"}},
		{Name: "Ministerio de Educación", Distance: 0.34},
	}}
	svc := New(searcher, nil, zap.NewNop())

	got := svc.Resolve(context.Background(), "ministerio salud", 5)
	if got == nil {
		t.Fatal("Resolve returned nil")
	}
	if got.Name != "Ministerio de Salud y Protección Social" {
		t.Errorf("name = %q", got.Name)
	}
	if diff := got.Score - 0.88; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("score = %v, want 0.88", got.Score)
	}
	if got.DatasetID() != "jbjy-vk9h" {
		t.Errorf("dataset id = %q", got.DatasetID())
	}
	if searcher.topK != 5 {
		t.Errorf("topK = %d, want 5", searcher.topK)
	}
}

func TestResolve_EmptyHitsSynthesizeZeroScore(t *testing.T) {
	searcher := &mockSearcher{hits: nil}
	svc := New(searcher, nil, zap.NewNop())

	got := svc.Resolve(context.Background(), "Empresa Fantasma", 5)
	if got == nil {
		t.Fatal("Resolve returned nil")
	}
	if got.Name != "Empresa Fantasma" || got.Score != 0.0 {
		t.Errorf("got %+v, want mention with score 0.0", got)
	}
}

func TestResolve_RerankReordersAndRescores(t *testing.T) {
	searcher := &mockSearcher{hits: []domain.EntityHit{
		{Name: "first", Distance: 0.1},
		{Name: "second", Distance: 0.2},
	}}
	reranker := &mockReranker{rankings: []Ranking{
		{Index: 1, Relevance: 0.95},
		{Index: 0, Relevance: 0.40},
	}}
	svc := New(searcher, reranker, zap.NewNop())

	got := svc.Resolve(context.Background(), "acme", 5)
	if got == nil {
		t.Fatal("Resolve returned nil")
	}
	if got.Name != "second" || got.Score != 0.95 {
		t.Errorf("got %+v, want reranked candidate 'second' at 0.95", got)
	}
	if !reranker.called {
		t.Error("expected reranker to be called")
	}
	if len(reranker.docs) != 2 {
		t.Errorf("reranker received %d docs, want 2", len(reranker.docs))
	}
}

func TestResolve_SingleCandidateSkipsRerank(t *testing.T) {
	searcher := &mockSearcher{hits: []domain.EntityHit{{Name: "only", Distance: 0.3}}}
	reranker := &mockReranker{}
	svc := New(searcher, reranker, zap.NewNop())

	got := svc.Resolve(context.Background(), "only", 5)
	if got == nil || got.Name != "only" {
		t.Fatalf("got %+v", got)
	}
	if reranker.called {
		t.Error("reranker should not run for a single candidate")
	}
}

func TestResolve_RerankFailureKeepsOriginalOrder(t *testing.T) {
	searcher := &mockSearcher{hits: []domain.EntityHit{
		{Name: "first", Distance: 0.1},
		{Name: "second", Distance: 0.2},
	}}
	reranker := &mockReranker{err: errors.New("rerank quota exceeded")}
	svc := New(searcher, reranker, zap.NewNop())

	got := svc.Resolve(context.Background(), "acme", 5)
	if got == nil || got.Name != "first" {
		t.Errorf("got %+v, want original top candidate 'first'", got)
	}
}

func TestResolve_RerankEmptyResultKeepsOriginalList(t *testing.T) {
	searcher := &mockSearcher{hits: []domain.EntityHit{
		{Name: "first", Distance: 0.1},
		{Name: "second", Distance: 0.2},
	}}
	reranker := &mockReranker{rankings: []Ranking{{Index: 9, Relevance: 0.5}}}
	svc := New(searcher, reranker, zap.NewNop())

	got := svc.Resolve(context.Background(), "acme", 5)
	if got == nil || got.Name != "first" {
		t.Errorf("got %+v, want original top candidate 'first'", got)
	}
}
