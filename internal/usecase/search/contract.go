package search

import (
	"context"

	"github.com/civica-cloud/secoql/internal/domain"
)

// IntentParser turns free text into structured query parameters. It never
// fails; degraded inputs produce best-effort defaults.
type IntentParser interface {
	Parse(ctx context.Context, text string) domain.QueryParams
}

// Resolver maps an entity mention to its best ranked canonical entity.
type Resolver interface {
	Resolve(ctx context.Context, mention string, topK int) *domain.ResolvedEntity
}

// Compiler renders query parameters into a remote-executable query.
type Compiler interface {
	Compile(params domain.QueryParams, entity *domain.ResolvedEntity) domain.CompiledQuery
}

// Executor runs a compiled query against the open-data API.
type Executor interface {
	Execute(ctx context.Context, dataset string, params map[string]string) ([]domain.Row, error)
}

// QueryLogger records an executed search for later inspection, attributed
// to the sender's phone number when one is known. Logging is best effort;
// failures never fail the search.
type QueryLogger interface {
	LogQuery(ctx context.Context, sender, channel, text string, params domain.QueryParams) error
}
