package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/civica-cloud/secoql/internal/domain"
	"github.com/civica-cloud/secoql/internal/metrics"
	"github.com/civica-cloud/secoql/internal/usecase/resolve"
)

// Reranker scores candidate documents against a query with a chat model
// instructed to emit a JSON ranking.
type Reranker struct {
	client *openai.Client
	model  string
	logger *zap.Logger
}

// NewReranker creates an OpenAI-compatible chat reranker.
func NewReranker(cfg *Config) *Reranker {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &Reranker{
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
		logger: cfg.Logger,
	}
}

// Rerank implements resolve.Reranker. The returned rankings are in the
// model's relevance order.
func (r *Reranker) Rerank(
	ctx context.Context, query string, docs []resolve.Document,
) ([]resolve.Ranking, error) {
	resp, err := r.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       r.model,
		Temperature: 0,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: buildRerankPrompt(query, docs)},
		},
	})
	if err != nil {
		metrics.LLMRequestsTotal.WithLabelValues(r.model, "error").Inc()
		return nil, parseAPIError("rerank", err)
	}

	if len(resp.Choices) == 0 {
		metrics.LLMRequestsTotal.WithLabelValues(r.model, "error").Inc()
		return nil, fmt.Errorf("empty rerank response: %w", domain.ErrLLMProviderError)
	}

	rankings, err := parseRankings(resp.Choices[0].Message.Content)
	if err != nil {
		metrics.LLMRequestsTotal.WithLabelValues(r.model, "error").Inc()
		return nil, err
	}

	metrics.LLMRequestsTotal.WithLabelValues(r.model, "success").Inc()
	return rankings, nil
}

func buildRerankPrompt(query string, docs []resolve.Document) string {
	var b strings.Builder
	b.WriteString("Rank the following candidate entities by relevance to the query.\n")
	b.WriteString("Respond with a JSON array only, most relevant first, where each element is\n")
	b.WriteString(`{"index": <candidate index>, "relevance_score": <0..1>}.` + "\n\n")
	fmt.Fprintf(&b, "Query: %s\nCandidates:\n", query)
	for i, d := range docs {
		fmt.Fprintf(&b, "%d. %s\n", i, d.Text)
	}
	return b.String()
}

func parseRankings(content string) ([]resolve.Ranking, error) {
	var parsed []struct {
		Index     int     `json:"index"`
		Relevance float64 `json:"relevance_score"`
	}
	trimmed := strings.TrimSpace(content)
	if err := json.Unmarshal([]byte(trimmed), &parsed); err != nil {
		return nil, fmt.Errorf("malformed rerank output: %w", domain.ErrLLMProviderError)
	}

	rankings := make([]resolve.Ranking, 0, len(parsed))
	for _, p := range parsed {
		rankings = append(rankings, resolve.Ranking{Index: p.Index, Relevance: p.Relevance})
	}
	return rankings, nil
}
