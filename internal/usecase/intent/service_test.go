package intent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/civica-cloud/secoql/internal/domain"
)

// --- Mocks ---

type stubGenerator struct {
	response string
	err      error
	prompts  []string
}

func (g *stubGenerator) Generate(_ context.Context, prompt string) (string, error) {
	g.prompts = append(g.prompts, prompt)
	return g.response, g.err
}

// --- Tests ---

func TestParse_UsesModelResponseWhenValid(t *testing.T) {
	llm := &stubGenerator{
		response: `{"entity":"contracts","filters":{"buyer":"Bogotá"},"metrics":["total_amount"]}`,
	}
	svc := New(llm, zap.NewNop())

	params := svc.Parse(context.Background(), "Contratos de Bogotá")

	if params.Entity != "contracts" {
		t.Errorf("entity = %q", params.Entity)
	}
	if v := params.Filters["buyer"]; v.AsString() != "Bogotá" {
		t.Errorf("buyer = %#v", v)
	}
	if len(params.Metrics) != 1 || params.Metrics[0] != "total_amount" {
		t.Errorf("metrics = %v", params.Metrics)
	}
	if params.RawQuery != "Contratos de Bogotá" {
		t.Errorf("raw query = %q", params.RawQuery)
	}
	if len(llm.prompts) != 1 {
		t.Fatalf("expected one model call, got %d", len(llm.prompts))
	}
}

func TestParse_FallsBackOnNonJSON(t *testing.T) {
	llm := &stubGenerator{response: "not-json"}
	svc := New(llm, zap.NewNop())

	params := svc.Parse(context.Background(), "Contratos de la entidad Ministerio de Salud 2022")

	if params.Entity != EntityAgencies {
		t.Errorf("entity = %q, want %q", params.Entity, EntityAgencies)
	}
	if v := params.Filters["year"]; v.Kind() != domain.KindNumber || v.AsNumber() != 2022 {
		t.Errorf("year = %#v, want number 2022", v)
	}
	if _, ok := params.Filters["buyer"]; !ok {
		t.Error("expected a buyer filter from heuristics")
	}
}

func TestParse_FallsBackOnTransportError(t *testing.T) {
	llm := &stubGenerator{err: errors.New("connection refused")}
	svc := New(llm, zap.NewNop())

	params := svc.Parse(context.Background(), "Top 3 contratos del proveedor ACME 2024")

	if params.Entity != EntitySuppliers {
		t.Errorf("entity = %q, want %q", params.Entity, EntitySuppliers)
	}
	if params.Limit != 3 {
		t.Errorf("limit = %d, want 3", params.Limit)
	}
}

func TestParse_FallsBackOnWrongShape(t *testing.T) {
	cases := []struct {
		name     string
		response string
	}{
		{"filters not a mapping", `{"entity":"contracts","filters":[1,2]}`},
		{"metrics not a list", `{"entity":"contracts","metrics":"total_amount"}`},
		{"metrics element not a string", `{"entity":"contracts","metrics":[42]}`},
		{"top level not an object", `[1,2,3]`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := New(&stubGenerator{response: tc.response}, zap.NewNop())

			params := svc.Parse(context.Background(), "contratos del proveedor ACME")
			// Heuristic fallback classifies this as a supplier query.
			if params.Entity != EntitySuppliers {
				t.Errorf("entity = %q, want heuristic %q", params.Entity, EntitySuppliers)
			}
		})
	}
}

func TestParse_NoModelConfigured(t *testing.T) {
	svc := New(nil, zap.NewNop())

	for _, q := range []string{"hola", "contratos 2023", "x", "¿?"} {
		params := svc.Parse(context.Background(), q)
		if params.Entity == "" {
			t.Errorf("Parse(%q) produced empty entity", q)
		}
	}
}

func TestParse_LimitCoercion(t *testing.T) {
	cases := []struct {
		name     string
		response string
		want     int
	}{
		{"positive int", `{"entity":"contracts","limit":10}`, 10},
		{"digit string", `{"entity":"contracts","limit":"7"}`, 7},
		{"zero", `{"entity":"contracts","limit":0}`, 0},
		{"negative", `{"entity":"contracts","limit":-2}`, 0},
		{"fractional", `{"entity":"contracts","limit":2.5}`, 0},
		{"non-numeric string", `{"entity":"contracts","limit":"many"}`, 0},
		{"mixed string", `{"entity":"contracts","limit":"7x"}`, 0},
		{"overflowing digit string", `{"entity":"contracts","limit":"99999999999999999999999999"}`, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := New(&stubGenerator{response: tc.response}, zap.NewNop())
			params := svc.Parse(context.Background(), "contratos")
			if params.Limit != tc.want {
				t.Errorf("limit = %d, want %d", params.Limit, tc.want)
			}
		})
	}
}

func TestParse_ModelEntityEmptyDefaultsToContracts(t *testing.T) {
	svc := New(&stubGenerator{response: `{"filters":{"year":2023}}`}, zap.NewNop())

	params := svc.Parse(context.Background(), "algo del proveedor ACME")

	// The model answered with a usable shape, so the heuristic entity is not
	// consulted; the missing entity defaults to contracts.
	if params.Entity != EntityContracts {
		t.Errorf("entity = %q, want %q", params.Entity, EntityContracts)
	}
	if v := params.Filters["year"]; v.AsNumber() != 2023 {
		t.Errorf("year = %v", v.AsNumber())
	}
}

func TestBuildPrompt_EmbedsQueryAndSchema(t *testing.T) {
	p := buildPrompt("Contratos de Bogotá 2023")

	for _, want := range []string{"Input: Contratos de Bogotá 2023", "'entity'", "'filters'", "'metrics'", "'limit'"} {
		if !strings.Contains(p, want) {
			t.Errorf("prompt missing %q:\n%s", want, p)
		}
	}
}
