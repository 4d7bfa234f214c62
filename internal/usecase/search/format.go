package search

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/civica-cloud/secoql/internal/domain"
)

const whatsappMaxRows = 5

// summaryFields lists the row keys shown in WhatsApp summaries, in render
// order, with their display labels.
var summaryFields = []struct {
	key   string
	label string
}{
	{"buyer", "Buyer"},
	{"supplier", "Supplier"},
	{"amount", "Amount"},
	{"status", "Status"},
}

// formatWhatsApp renders rows as a short Spanish-friendly text message:
// up to five numbered summaries and an overflow line.
func formatWhatsApp(rows []domain.Row) string {
	if len(rows) == 0 {
		return "No se encontraron resultados para tu búsqueda."
	}

	lines := []string{"Resultados para tu consulta:"}
	for i, row := range rows {
		if i == whatsappMaxRows {
			break
		}
		lines = append(lines, fmt.Sprintf("%d. %s", i+1, summariseRow(row)))
	}
	if extra := len(rows) - whatsappMaxRows; extra > 0 {
		lines = append(lines, fmt.Sprintf("Y %d resultados más…", extra))
	}
	return strings.Join(lines, "\n")
}

// formatWeb wraps rows together with the parameters that produced them.
func formatWeb(rows []domain.Row, params domain.QueryParams) map[string]any {
	if rows == nil {
		rows = []domain.Row{}
	}
	return map[string]any{
		"query":   params.AsMap(),
		"count":   len(rows),
		"results": rows,
	}
}

func summariseRow(row domain.Row) string {
	var pieces []string
	for _, f := range summaryFields {
		v, ok := row[f.key]
		if !ok || isBlankValue(v) {
			continue
		}
		pieces = append(pieces, f.label+": "+formatValue(v))
	}
	if len(pieces) == 0 {
		raw, err := json.Marshal(row)
		if err != nil {
			return fmt.Sprintf("%v", row)
		}
		return string(raw)
	}
	return strings.Join(pieces, " | ")
}

func isBlankValue(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case float64:
		return t == 0
	case bool:
		return !t
	}
	return false
}

func formatValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", t)
	}
}
