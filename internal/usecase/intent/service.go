package intent

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/civica-cloud/secoql/internal/domain"
	"github.com/civica-cloud/secoql/internal/metrics"
)

// Service translates free-form questions into domain.QueryParams.
//
// The language model is a best-effort enrichment: any transport error,
// malformed payload or wrong shape falls through to the deterministic
// heuristics, so Parse always returns valid parameters.
type Service struct {
	llm    Generator
	logger *zap.Logger
}

// New creates an intent parser. llm may be nil; parsing then always uses
// the heuristics.
func New(llm Generator, logger *zap.Logger) *Service {
	return &Service{llm: llm, logger: logger}
}

// Parse parses text into query parameters. It never fails.
func (s *Service) Parse(ctx context.Context, text string) domain.QueryParams {
	var parsed *Intent
	source := "heuristic"

	if s.llm != nil {
		raw, err := s.llm.Generate(ctx, buildPrompt(text))
		if err != nil {
			s.logger.Warn("Model parse failed, using heuristic fallback",
				zap.String("query", text),
				zap.Error(fmt.Errorf("%w: %w", domain.ErrUpstreamDegraded, err)),
			)
		} else {
			parsed = s.coerceResponse(raw)
		}
		if parsed != nil {
			source = "model"
		}
	}

	if parsed == nil {
		extracted := Extract(text)
		parsed = &extracted
	}
	metrics.IntentParsesTotal.WithLabelValues(source).Inc()

	entity := parsed.Entity
	if entity == "" {
		entity = EntityContracts
	}

	params, err := domain.NewQueryParams(entity, parsed.Filters, parsed.Metrics, text, parsed.Limit)
	if err != nil {
		// Unreachable given the defaults above; a coercion bug would land
		// here instead of panicking.
		s.logger.Error("Assembled invalid query params", zap.Error(err))
		params, _ = domain.NewQueryParams(EntityContracts, nil, nil, text, 0)
	}

	s.logger.Debug("Parsed query",
		zap.String("source", source),
		zap.Any("params", params.AsMap()),
	)
	return params
}

// buildPrompt embeds the question into a fixed instruction with the output
// schema and one example shape.
func buildPrompt(query string) string {
	const instructions = "You are a query understanding system for the Colombian SECOP open " +
		"data portal. Convert the user request into JSON with keys 'entity', " +
		"'filters', 'metrics', and optionally 'limit' (a positive integer). " +
		"Filters must be a JSON object with simple key/value pairs or lists."

	example, _ := json.Marshal(map[string]any{
		"entity":  "contracts",
		"filters": map[string]any{"buyer": "Bogotá", "year": 2023},
		"metrics": []string{"total_amount"},
		"limit":   20,
	})

	return fmt.Sprintf("%s\nInput: %s\nRespond with JSON like: %s", instructions, query, example)
}

// coerceResponse validates the model output. Returns nil for anything that
// is not a JSON object with a filters mapping and a metrics list.
func (s *Service) coerceResponse(raw string) *Intent {
	var payload map[string]any
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		s.logger.Debug("Model response is not JSON", zap.String("response", raw))
		return nil
	}

	entity, _ := payload["entity"].(string)

	filters := map[string]domain.FilterValue{}
	if fv, ok := payload["filters"]; ok && fv != nil {
		fm, ok := fv.(map[string]any)
		if !ok {
			s.logger.Debug("Model filters is not a mapping", zap.Any("payload", payload))
			return nil
		}
		filters = domain.FiltersOf(fm)
	}

	var mtr []string
	if mv, ok := payload["metrics"]; ok && mv != nil {
		ml, ok := mv.([]any)
		if !ok {
			s.logger.Debug("Model metrics is not a list", zap.Any("payload", payload))
			return nil
		}
		for _, it := range ml {
			ms, ok := it.(string)
			if !ok {
				s.logger.Debug("Model metrics element is not a string", zap.Any("payload", payload))
				return nil
			}
			mtr = append(mtr, ms)
		}
	}

	return &Intent{
		Entity:  entity,
		Filters: filters,
		Metrics: mtr,
		Limit:   coerceLimit(payload["limit"]),
	}
}

// coerceLimit accepts positive integers directly and digit-only strings by
// numeric coercion; everything else is treated as absent.
func coerceLimit(v any) int {
	switch t := v.(type) {
	case float64:
		if t > 0 && t == float64(int(t)) {
			return int(t)
		}
	case string:
		for _, r := range t {
			if r < '0' || r > '9' {
				return 0
			}
		}
		// Atoi rejects values that do not fit in an int.
		if n, err := strconv.Atoi(t); err == nil && n > 0 {
			return n
		}
	}
	return 0
}
