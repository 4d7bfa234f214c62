// Package entity stores canonical SECOP entities (buyers, suppliers,
// categories) as hashes with an embedding vector, searchable via a
// Redis FT KNN index.
package entity

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/civica-cloud/secoql/internal/db"
	"github.com/civica-cloud/secoql/internal/domain"
)

const (
	fieldName     = "name"
	fieldMetadata = "metadata"
	fieldVector   = "vector"

	// fieldScore must be in the RETURN clause or Redis omits the KNN
	// distance from the reply.
	fieldScore = "__vector_score"
)

var (
	indexName = domain.KeyPrefix + "entities:idx"
	keyPrefix = domain.KeyPrefix + "entities:"
)

// store is the consumer interface for the entity index (ISP).
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	IndexExists(ctx context.Context, name string) (bool, error)
}

// Embedder produces the vector for an entity name or mention.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Repository reads and writes the entity vector index.
type Repository struct {
	store      store
	embedder   Embedder
	dimensions int
	logger     *zap.Logger
}

// New creates an entity repository.
func New(s store, embedder Embedder, dimensions int, logger *zap.Logger) *Repository {
	return &Repository{store: s, embedder: embedder, dimensions: dimensions, logger: logger}
}

// Search embeds mention and returns its topK nearest entities with raw
// cosine distances.
func (r *Repository) Search(ctx context.Context, mention string, topK int) ([]domain.EntityHit, error) {
	vec, err := r.embedder.Embed(ctx, mention)
	if err != nil {
		return nil, fmt.Errorf("embed mention: %w", err)
	}

	res, err := r.store.SearchKNN(ctx, &db.KNNQuery{
		IndexName:    indexName,
		Vector:       vec,
		K:            topK,
		ReturnFields: []string{fieldName, fieldMetadata, fieldScore},
	})
	if err != nil {
		return nil, fmt.Errorf("search entities: %w", err)
	}

	hits := make([]domain.EntityHit, 0, len(res.Entries))
	for _, e := range res.Entries {
		hits = append(hits, domain.EntityHit{
			Name:     e.Fields[fieldName],
			Metadata: parseMetadata(r.logger, e.Key, e.Fields[fieldMetadata]),
			Distance: e.Distance,
		})
	}
	return hits, nil
}

// Upsert embeds name and writes the entity hash. Existing entries with the
// same name are overwritten.
func (r *Repository) Upsert(ctx context.Context, name string, metadata map[string]any) error {
	vec, err := r.embedder.Embed(ctx, name)
	if err != nil {
		return fmt.Errorf("embed entity: %w", err)
	}

	meta, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	fields := map[string]string{
		fieldName:     name,
		fieldMetadata: string(meta),
		fieldVector:   string(vectorToBytes(vec)),
	}
	if err := r.store.HSet(ctx, entityKey(name), fields); err != nil {
		return fmt.Errorf("store entity: %w", err)
	}
	return nil
}

// EnsureIndex creates the FT index when absent. A concurrent creation
// racing this call is not an error.
func (r *Repository) EnsureIndex(ctx context.Context) error {
	exists, err := r.store.IndexExists(ctx, indexName)
	if err != nil {
		return fmt.Errorf("check index: %w", err)
	}
	if exists {
		return nil
	}

	def := &db.IndexDefinition{
		Name:     indexName,
		Prefixes: []string{keyPrefix},
		Vector:   db.VectorField{Name: fieldVector, Dimensions: r.dimensions},
	}
	if err := r.store.CreateIndex(ctx, def); err != nil {
		if errors.Is(err, db.ErrIndexExists) {
			return nil
		}
		return fmt.Errorf("create index: %w", err)
	}
	return nil
}

func entityKey(name string) string {
	h := sha256.Sum256([]byte(name))
	return keyPrefix + hex.EncodeToString(h[:16])
}

func parseMetadata(logger *zap.Logger, key, raw string) map[string]any {
	if raw == "" {
		return map[string]any{}
	}
	var meta map[string]any
	if err := json.Unmarshal([]byte(raw), &meta); err != nil {
		logger.Warn("Malformed entity metadata", zap.String("key", key), zap.Error(err))
		return map[string]any{}
	}
	return meta
}

func vectorToBytes(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}
