package domain

import (
	"errors"
	"reflect"
	"testing"
)

func TestNewQueryParams_EmptyEntity(t *testing.T) {
	_, err := NewQueryParams("", nil, nil, "", 0)
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}

	_, err = NewQueryParams("   ", nil, nil, "", 0)
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for blank entity, got %v", err)
	}
}

func TestNewQueryParams_NegativeLimit(t *testing.T) {
	_, err := NewQueryParams("contracts", nil, nil, "", -3)
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestNewQueryParams_DefaultsEmptyCollections(t *testing.T) {
	p, err := NewQueryParams("contracts", nil, nil, "raw", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Filters == nil || len(p.Filters) != 0 {
		t.Errorf("expected empty filters, got %v", p.Filters)
	}
	if p.Metrics == nil || len(p.Metrics) != 0 {
		t.Errorf("expected empty metrics, got %v", p.Metrics)
	}
}

func TestQueryParams_MapRoundTripIdempotent(t *testing.T) {
	p, err := NewQueryParams(
		"suppliers",
		map[string]FilterValue{
			"year":     Number(2024),
			"buyer":    String("Bogotá"),
			"statuses": List(String("Celebrado"), Number(3)),
		},
		[]string{"total_amount"},
		"top 5 proveedores 2024",
		5,
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	first := p.AsMap()
	rebuilt, err := QueryParamsFromMap(first)
	if err != nil {
		t.Fatalf("reconstruct: %v", err)
	}
	second := rebuilt.AsMap()

	if !reflect.DeepEqual(first, second) {
		t.Errorf("round trip not idempotent:\nfirst:  %#v\nsecond: %#v", first, second)
	}
}

func TestFilterValueOf_Kinds(t *testing.T) {
	cases := []struct {
		name string
		in   any
		want FilterKind
	}{
		{"json number", float64(2023), KindNumber},
		{"int", 7, KindNumber},
		{"string", "Bogotá", KindString},
		{"list", []any{"a", float64(1)}, KindList},
		{"object falls back to raw", map[string]any{"x": 1}, KindRaw},
		{"bool falls back to raw", true, KindRaw},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := FilterValueOf(tc.in).Kind(); got != tc.want {
				t.Errorf("FilterValueOf(%v).Kind() = %v, want %v", tc.in, got, tc.want)
			}
		})
	}
}

func TestResolvedEntity_DatasetID(t *testing.T) {
	e := ResolvedEntity{Name: "x", Metadata: map[string]any{"dataset_id": "jbjy-vk9h"}}
	if got := e.DatasetID(); got != "jbjy-vk9h" {
		t.Errorf("DatasetID() = %q", got)
	}

	if got := (ResolvedEntity{Name: "x"}).DatasetID(); got != "" {
		t.Errorf("expected empty dataset id, got %q", got)
	}

	e = ResolvedEntity{Name: "x", Metadata: map[string]any{"dataset_id": 42}}
	if got := e.DatasetID(); got != "" {
		t.Errorf("non-string dataset id should be ignored, got %q", got)
	}
}
