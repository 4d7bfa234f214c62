package domain

// FilterKind discriminates the closed set of filter value types. The kind
// decides compiled SoQL syntax, so it must survive parsing end-to-end.
type FilterKind int

const (
	// KindNumber renders as an equality comparison.
	KindNumber FilterKind = iota
	// KindString renders as a case-insensitive substring match.
	KindString
	// KindList renders as a set-membership test.
	KindList
	// KindRaw is the last-resort fallback, rendered as JSON.
	KindRaw
)

// FilterValue is a tagged union over number, string, list and raw values.
type FilterValue struct {
	kind FilterKind
	num  float64
	str  string
	list []FilterValue
	raw  any
}

// Number creates a numeric filter value.
func Number(v float64) FilterValue { return FilterValue{kind: KindNumber, num: v} }

// String creates a string filter value.
func String(s string) FilterValue { return FilterValue{kind: KindString, str: s} }

// List creates a list filter value.
func List(items ...FilterValue) FilterValue { return FilterValue{kind: KindList, list: items} }

// Raw creates a fallback filter value holding an arbitrary JSON-encodable value.
func Raw(v any) FilterValue { return FilterValue{kind: KindRaw, raw: v} }

// Kind returns the discriminator.
func (v FilterValue) Kind() FilterKind { return v.kind }

// AsNumber returns the numeric payload. Valid only for KindNumber.
func (v FilterValue) AsNumber() float64 { return v.num }

// AsString returns the string payload. Valid only for KindString.
func (v FilterValue) AsString() string { return v.str }

// Items returns the list payload. Valid only for KindList.
func (v FilterValue) Items() []FilterValue { return v.list }

// RawValue returns the fallback payload. Valid only for KindRaw.
func (v FilterValue) RawValue() any { return v.raw }

// Native converts the value back to a plain Go representation, suitable for
// JSON encoding. FilterValueOf(v.Native()) reproduces v for all kinds except
// KindRaw holding a number, string or slice.
func (v FilterValue) Native() any {
	switch v.kind {
	case KindNumber:
		return v.num
	case KindString:
		return v.str
	case KindList:
		items := make([]any, len(v.list))
		for i, it := range v.list {
			items[i] = it.Native()
		}
		return items
	default:
		return v.raw
	}
}

// FilterValueOf converts a decoded JSON value into a FilterValue, classifying
// by dynamic type: numbers, strings and slices map to their kinds, everything
// else falls through to KindRaw.
func FilterValueOf(v any) FilterValue {
	switch t := v.(type) {
	case float64:
		return Number(t)
	case int:
		return Number(float64(t))
	case int64:
		return Number(float64(t))
	case string:
		return String(t)
	case []any:
		items := make([]FilterValue, len(t))
		for i, it := range t {
			items[i] = FilterValueOf(it)
		}
		return List(items...)
	case []string:
		items := make([]FilterValue, len(t))
		for i, it := range t {
			items[i] = String(it)
		}
		return List(items...)
	default:
		return Raw(v)
	}
}

// FiltersOf converts a decoded JSON object into filter values.
func FiltersOf(m map[string]any) map[string]FilterValue {
	filters := make(map[string]FilterValue, len(m))
	for k, v := range m {
		filters[k] = FilterValueOf(v)
	}
	return filters
}
