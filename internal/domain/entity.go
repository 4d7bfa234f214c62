package domain

// ResolvedEntity is the canonical identity matched for a free-text mention.
// Score is cosine-similarity derived (higher is better) and may exceed the
// [0, 1] range after reranking. Immutable once returned by the resolver.
type ResolvedEntity struct {
	Name     string
	Score    float64
	Metadata map[string]any
}

// DatasetID returns the dataset identifier carried in metadata, or "" when
// the entity has no dataset binding.
func (e ResolvedEntity) DatasetID() string {
	if e.Metadata == nil {
		return ""
	}
	if id, ok := e.Metadata["dataset_id"].(string); ok {
		return id
	}
	return ""
}

// EntityHit is one similarity-search candidate before score conversion.
// Distance is the raw cosine distance reported by the index.
type EntityHit struct {
	Name     string
	Metadata map[string]any
	Distance float64
}

// CompiledQuery is a dataset identifier plus SoQL query-string parameters.
// Absent filters, metrics and limit produce absent keys.
type CompiledQuery struct {
	Dataset string
	Params  map[string]string
}
