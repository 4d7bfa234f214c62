// Package soql compiles structured query parameters into the SoQL
// filter/select/limit dialect spoken by Socrata open-data portals.
package soql

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/civica-cloud/secoql/internal/domain"
)

// Compiler turns domain.QueryParams into a dataset id plus SoQL query-string
// parameters. Compile is pure and total: well-formed parameters always
// compile, and equal inputs always produce equal output.
type Compiler struct {
	datasets map[string]string
}

// New creates a compiler. datasets maps entity categories to dataset ids and
// may be nil; unknown categories fall back to the category name itself.
func New(datasets map[string]string) *Compiler {
	if datasets == nil {
		datasets = map[string]string{}
	}
	return &Compiler{datasets: datasets}
}

// Compile builds the SoQL payload for the given parameters. A resolved
// entity carrying a dataset id overrides the static category lookup.
// Absent filters, metrics and limit leave their keys out entirely.
func (c *Compiler) Compile(params domain.QueryParams, entity *domain.ResolvedEntity) domain.CompiledQuery {
	out := map[string]string{}

	if where := buildWhere(params.Filters); where != "" {
		out["$where"] = where
	}
	if len(params.Metrics) > 0 {
		out["$select"] = strings.Join(params.Metrics, ", ")
	}
	if params.Limit > 0 {
		out["$limit"] = strconv.Itoa(params.Limit)
	}

	return domain.CompiledQuery{
		Dataset: c.resolveDataset(params, entity),
		Params:  out,
	}
}

func (c *Compiler) resolveDataset(params domain.QueryParams, entity *domain.ResolvedEntity) string {
	if entity != nil {
		if id := entity.DatasetID(); id != "" {
			return id
		}
	}
	if id, ok := c.datasets[params.Entity]; ok {
		return id
	}
	return params.Entity
}

// buildWhere renders filters sorted by key so identical filter sets always
// compile to the identical clause string.
func buildWhere(filters map[string]domain.FilterValue) string {
	if len(filters) == 0 {
		return ""
	}

	keys := make([]string, 0, len(filters))
	for k := range filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	clauses := make([]string, 0, len(keys))
	for _, k := range keys {
		clauses = append(clauses, renderFilter(k, filters[k]))
	}
	return strings.Join(clauses, " AND ")
}

func renderFilter(key string, value domain.FilterValue) string {
	switch value.Kind() {
	case domain.KindNumber:
		return fmt.Sprintf("%s = %s", key, formatNumber(value.AsNumber()))
	case domain.KindString:
		return fmt.Sprintf("upper(%s) LIKE upper('%%%s%%')", key, escape(value.AsString()))
	case domain.KindList:
		items := make([]string, len(value.Items()))
		for i, it := range value.Items() {
			items[i] = quote(it)
		}
		return fmt.Sprintf("%s IN (%s)", key, strings.Join(items, ", "))
	default:
		encoded, _ := json.Marshal(value.RawValue())
		return fmt.Sprintf("%s = %s", key, encoded)
	}
}

// quote renders a list element: numbers bare, everything else as a
// single-quoted string with embedded quotes doubled.
func quote(value domain.FilterValue) string {
	switch value.Kind() {
	case domain.KindNumber:
		return formatNumber(value.AsNumber())
	case domain.KindString:
		return "'" + escape(value.AsString()) + "'"
	default:
		encoded, _ := json.Marshal(value.Native())
		return "'" + escape(string(encoded)) + "'"
	}
}

func escape(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

// formatNumber prints integral values without a decimal point.
func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
