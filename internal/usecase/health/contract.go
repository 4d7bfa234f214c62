package health

import "context"

// DBPinger checks cache/index store availability.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// LLMChecker checks language-model provider availability.
type LLMChecker interface {
	HealthCheck(ctx context.Context) error
}

// DataChecker checks open-data API reachability.
type DataChecker interface {
	HealthCheck(ctx context.Context) error
}
