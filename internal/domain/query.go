package domain

import (
	"fmt"
	"strings"
)

// KeyPrefix namespaces every Redis key written by this service.
const KeyPrefix = "secoql:"

// Row is one record returned by the open-data API. Its shape is opaque to
// the pipeline beyond being enumerable.
type Row map[string]any

// QueryParams is the structured representation of the user's search intent.
//
// Invariants: Entity is never empty; Limit is either 0 (absent) or positive.
type QueryParams struct {
	Entity   string
	Filters  map[string]FilterValue
	Metrics  []string
	RawQuery string
	Limit    int
}

// NewQueryParams validates and constructs QueryParams. Filters and metrics
// may be nil; they default to empty. A limit of 0 means "no limit requested".
func NewQueryParams(
	entity string, filters map[string]FilterValue, metrics []string, rawQuery string, limit int,
) (QueryParams, error) {
	if strings.TrimSpace(entity) == "" {
		return QueryParams{}, fmt.Errorf("%w: entity must be a non-empty string", ErrValidation)
	}
	if limit < 0 {
		return QueryParams{}, fmt.Errorf("%w: limit must be a positive integer when provided", ErrValidation)
	}
	if filters == nil {
		filters = map[string]FilterValue{}
	}
	if metrics == nil {
		metrics = []string{}
	}
	return QueryParams{
		Entity:   entity,
		Filters:  filters,
		Metrics:  metrics,
		RawQuery: rawQuery,
		Limit:    limit,
	}, nil
}

// AsMap returns a plain-value representation for logging and persistence.
// QueryParamsFromMap(p.AsMap()) reconstructs an equal value.
func (p QueryParams) AsMap() map[string]any {
	filters := make(map[string]any, len(p.Filters))
	for k, v := range p.Filters {
		filters[k] = v.Native()
	}
	m := map[string]any{
		"entity":    p.Entity,
		"filters":   filters,
		"metrics":   append([]string{}, p.Metrics...),
		"raw_query": p.RawQuery,
	}
	if p.Limit > 0 {
		m["limit"] = p.Limit
	}
	return m
}

// QueryParamsFromMap reconstructs QueryParams from an AsMap representation.
func QueryParamsFromMap(m map[string]any) (QueryParams, error) {
	entity, _ := m["entity"].(string)

	var filters map[string]FilterValue
	if fm, ok := m["filters"].(map[string]any); ok {
		filters = FiltersOf(fm)
	}

	var metrics []string
	switch mv := m["metrics"].(type) {
	case []string:
		metrics = append([]string{}, mv...)
	case []any:
		for _, it := range mv {
			if s, ok := it.(string); ok {
				metrics = append(metrics, s)
			}
		}
	}

	limit := 0
	switch lv := m["limit"].(type) {
	case int:
		limit = lv
	case float64:
		limit = int(lv)
	}

	rawQuery, _ := m["raw_query"].(string)
	return NewQueryParams(entity, filters, metrics, rawQuery, limit)
}
