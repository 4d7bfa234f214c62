package intent

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/civica-cloud/secoql/internal/domain"
)

// Intent is a partially extracted search intent. Entity, filters, metrics
// and limit may each be absent; the parser fills the defaults.
type Intent struct {
	Entity  string
	Filters map[string]domain.FilterValue
	Metrics []string
	Limit   int
}

// Entity categories recognized by the keyword heuristics.
const (
	EntityContracts = "contracts"
	EntitySuppliers = "suppliers"
	EntityAgencies  = "agencies"
)

var (
	yearRe         = regexp.MustCompile(`(19|20)\d{2}`)
	buyerRe        = regexp.MustCompile(`(?i)entidad\s+([\w\sáéíóúñ.&-]+)`)
	supplierRe     = regexp.MustCompile(`(?i)proveedor(?:a)?\s+([\w\sáéíóúñ.&-]+)`)
	trailingYearRe = regexp.MustCompile(`(?:\b(?:19|20)\d{2})$`)
	amountRe       = regexp.MustCompile(`mayor(?: a)?\s+\$?(\d+[\d.,]*)`)
	topNRe         = regexp.MustCompile(`(?:top|primer[oa]s?)\s+(\d+)`)
)

// Extract derives a search intent from raw text by keyword and regex rules.
// It never fails; the worst case is the default entity with empty filters.
// Entity classification and numeric extraction are case-insensitive, while
// the buyer/supplier captures keep original casing for downstream display.
func Extract(text string) Intent {
	lowered := strings.ToLower(text)

	entity := EntityContracts
	switch {
	case strings.Contains(lowered, "proveedor") || strings.Contains(lowered, "supplier"):
		entity = EntitySuppliers
	case strings.Contains(lowered, "entidad") || strings.Contains(lowered, "agency"):
		entity = EntityAgencies
	}

	filters := map[string]domain.FilterValue{}
	limit := 0

	if m := yearRe.FindString(lowered); m != "" {
		year, _ := strconv.Atoi(m)
		filters["year"] = domain.Number(float64(year))
	}

	if m := buyerRe.FindStringSubmatch(text); m != nil {
		filters["buyer"] = domain.String(strings.TrimSpace(m[1]))
	}

	if m := supplierRe.FindStringSubmatch(text); m != nil {
		supplier := strings.TrimSpace(m[1])
		// A trailing year belongs to the year filter, not the name.
		supplier = strings.TrimSpace(trailingYearRe.ReplaceAllString(supplier, ""))
		supplier = strings.Trim(supplier, " ,.-")
		if supplier != "" {
			filters["supplier"] = domain.String(supplier)
		}
	}

	if m := amountRe.FindStringSubmatch(lowered); m != nil {
		amount := strings.NewReplacer(".", "", ",", "").Replace(m[1])
		if v, err := strconv.ParseFloat(amount, 64); err == nil {
			filters["min_amount"] = domain.Number(v)
		}
	}

	var metrics []string
	if strings.Contains(lowered, "cuánto") || strings.Contains(lowered, "total") ||
		strings.Contains(lowered, "sum") {
		metrics = append(metrics, "total_amount")
	}

	if m := topNRe.FindStringSubmatch(lowered); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
			limit = n
		}
	}

	return Intent{Entity: entity, Filters: filters, Metrics: metrics, Limit: limit}
}
