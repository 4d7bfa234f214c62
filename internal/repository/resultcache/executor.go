// Package resultcache executes compiled queries against the open-data API
// with a Redis-backed result cache and bounded linear-backoff retries.
package resultcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/civica-cloud/secoql/internal/db"
	"github.com/civica-cloud/secoql/internal/domain"
	"github.com/civica-cloud/secoql/internal/metrics"
)

var cacheKeyPrefix = domain.KeyPrefix + "result:"

// Querier is the remote query capability.
type Querier interface {
	Query(ctx context.Context, dataset string, params map[string]string) ([]domain.Row, error)
}

// store is the consumer interface for the result cache (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Executor decorates a Querier with caching and retries. The cache is
// consulted strictly before any remote call, so a recent identical query
// pays neither remote load nor retry latency.
type Executor struct {
	inner      Querier
	store      store
	ttl        time.Duration
	maxRetries int
	backoff    time.Duration
	cacheTotal *prometheus.CounterVec
	logger     *zap.Logger
}

// New creates an executor. s may be nil (no caching). cacheTotal is a
// counter vec with label "result" ("hit"/"miss"), passed explicitly.
func New(
	inner Querier,
	s store,
	ttl time.Duration,
	maxRetries int,
	backoff time.Duration,
	cacheTotal *prometheus.CounterVec,
	logger *zap.Logger,
) *Executor {
	return &Executor{
		inner:      inner,
		store:      s,
		ttl:        ttl,
		maxRetries: maxRetries,
		backoff:    backoff,
		cacheTotal: cacheTotal,
		logger:     logger,
	}
}

// Execute runs the compiled query, returning cached rows when available.
// After maxRetries+1 failed attempts it returns a domain.RemoteQueryError
// carrying the last failure.
func (e *Executor) Execute(
	ctx context.Context, dataset string, params map[string]string,
) ([]domain.Row, error) {
	key := cacheKey(dataset, params)

	if e.store != nil {
		if rows, ok := e.getFromCache(ctx, key); ok {
			e.incCache("hit")
			return rows, nil
		}
		e.incCache("miss")
	}

	rows, err := e.queryWithRetries(ctx, dataset, params)
	if err != nil {
		return nil, err
	}

	if e.store != nil {
		e.putToCache(ctx, key, rows)
	}
	return rows, nil
}

func (e *Executor) queryWithRetries(
	ctx context.Context, dataset string, params map[string]string,
) ([]domain.Row, error) {
	attempt := 0
	for {
		rows, err := e.inner.Query(ctx, dataset, params)
		if err == nil {
			return rows, nil
		}

		attempt++
		if attempt > e.maxRetries {
			e.logger.Error("Remote query failed, retries exhausted",
				zap.String("dataset", dataset),
				zap.Int("attempts", attempt),
				zap.Error(err),
			)
			return nil, domain.NewRemoteQueryError(attempt, err)
		}

		sleepFor := time.Duration(attempt) * e.backoff
		metrics.RemoteRetriesTotal.Inc()
		e.logger.Warn("Remote query failed, retrying",
			zap.String("dataset", dataset),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", sleepFor),
			zap.Error(err),
		)

		select {
		case <-ctx.Done():
			return nil, domain.NewRemoteQueryError(attempt, ctx.Err())
		case <-time.After(sleepFor):
		}
	}
}

func (e *Executor) incCache(result string) {
	if e.cacheTotal != nil {
		e.cacheTotal.WithLabelValues(result).Inc()
	}
}

func (e *Executor) getFromCache(ctx context.Context, key string) ([]domain.Row, bool) {
	data, err := e.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, db.ErrKeyNotFound) {
			e.logger.Warn("Failed to read result cache", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}

	var rows []domain.Row
	if err := json.Unmarshal(data, &rows); err != nil {
		e.logger.Warn("Failed to decode cached result", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return rows, true
}

func (e *Executor) putToCache(ctx context.Context, key string, rows []domain.Row) {
	data, err := json.Marshal(rows)
	if err != nil {
		e.logger.Warn("Failed to encode result for cache", zap.String("key", key), zap.Error(err))
		return
	}
	if err := e.store.SetWithTTL(ctx, key, data, e.ttl); err != nil {
		e.logger.Warn("Failed to cache result", zap.String("key", key), zap.Error(err))
	}
}

// cacheKey digests the dataset and query parameters. encoding/json sorts
// map keys, so identical queries hash identically regardless of insertion
// order.
func cacheKey(dataset string, params map[string]string) string {
	serialized, _ := json.Marshal(params)
	h := sha256.Sum256(fmt.Appendf(nil, "%s:%s", dataset, serialized))
	return cacheKeyPrefix + hex.EncodeToString(h[:])
}
