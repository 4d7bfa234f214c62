package search

import (
	"strings"
	"testing"

	"github.com/civica-cloud/secoql/internal/domain"
)

func TestFormatWhatsApp_Empty(t *testing.T) {
	got := formatWhatsApp(nil)
	if got != "No se encontraron resultados para tu búsqueda." {
		t.Errorf("got %q", got)
	}
}

func TestFormatWhatsApp_SummarisesKnownFields(t *testing.T) {
	rows := []domain.Row{{
		"buyer":    "Ministerio de Salud",
		"supplier": "ACME Corp",
		"amount":   float64(1000000),
		"status":   "active",
		"ignored":  "x",
	}}
	got := formatWhatsApp(rows)

	want := "Resultados para tu consulta:\n" +
		"1. Buyer: Ministerio de Salud | Supplier: ACME Corp | Amount: 1000000 | Status: active"
	if got != want {
		t.Errorf("got:\n%s\nwant:\n%s", got, want)
	}
}

func TestFormatWhatsApp_SkipsBlankFields(t *testing.T) {
	rows := []domain.Row{{"buyer": "", "supplier": "ACME", "amount": float64(0)}}
	got := formatWhatsApp(rows)
	if strings.Contains(got, "Buyer") || strings.Contains(got, "Amount") {
		t.Errorf("blank fields rendered: %q", got)
	}
	if !strings.Contains(got, "Supplier: ACME") {
		t.Errorf("supplier missing: %q", got)
	}
}

func TestFormatWhatsApp_FallsBackToJSON(t *testing.T) {
	rows := []domain.Row{{"reference": "CO-123"}}
	got := formatWhatsApp(rows)
	if !strings.Contains(got, `{"reference":"CO-123"}`) {
		t.Errorf("expected JSON fallback, got %q", got)
	}
}

func TestFormatWhatsApp_Overflow(t *testing.T) {
	rows := make([]domain.Row, 8)
	for i := range rows {
		rows[i] = domain.Row{"buyer": "Entidad"}
	}
	got := formatWhatsApp(rows)

	lines := strings.Split(got, "\n")
	// header + 5 summaries + overflow line
	if len(lines) != 7 {
		t.Fatalf("got %d lines: %q", len(lines), got)
	}
	if lines[6] != "Y 3 resultados más…" {
		t.Errorf("overflow line = %q", lines[6])
	}
}

func TestFormatWhatsApp_ExactlyFiveNoOverflow(t *testing.T) {
	rows := make([]domain.Row, 5)
	for i := range rows {
		rows[i] = domain.Row{"buyer": "Entidad"}
	}
	got := formatWhatsApp(rows)
	if strings.Contains(got, "más") {
		t.Errorf("unexpected overflow line: %q", got)
	}
}

func TestFormatWeb(t *testing.T) {
	params := domain.QueryParams{Entity: "contracts", RawQuery: "q"}
	rows := []domain.Row{{"a": "b"}, {"c": "d"}}

	got := formatWeb(rows, params)
	if got["count"] != 2 {
		t.Errorf("count = %v", got["count"])
	}
	query, ok := got["query"].(map[string]any)
	if !ok || query["entity"] != "contracts" {
		t.Errorf("query = %v", got["query"])
	}
	results, ok := got["results"].([]domain.Row)
	if !ok || len(results) != 2 {
		t.Errorf("results = %v", got["results"])
	}
}

func TestFormatWeb_NilRows(t *testing.T) {
	got := formatWeb(nil, domain.QueryParams{Entity: "contracts"})
	if got["count"] != 0 {
		t.Errorf("count = %v", got["count"])
	}
	if got["results"] == nil {
		t.Error("results should be an empty slice, not nil")
	}
}
