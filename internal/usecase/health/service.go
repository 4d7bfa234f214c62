package health

import "context"

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates partial failure.
	Degraded Status = "degraded"
	// Unhealthy indicates total failure.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

// Service coordinates health checks.
type Service struct {
	db   DBPinger
	llm  LLMChecker
	data DataChecker
}

// New creates a Service. Every dependency can be nil; absent components
// are skipped rather than reported.
func New(db DBPinger, llm LLMChecker, data DataChecker) *Service {
	return &Service{db: db, llm: llm, data: data}
}

// Check runs health checks against all configured components.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult)

	if s.db != nil {
		if err := s.db.Ping(ctx); err != nil {
			checks["database"] = CheckError
		} else {
			checks["database"] = CheckOK
		}
	}

	if s.llm != nil {
		if err := s.llm.HealthCheck(ctx); err != nil {
			checks["llm"] = CheckError
		} else {
			checks["llm"] = CheckOK
		}
	}

	if s.data != nil {
		if err := s.data.HealthCheck(ctx); err != nil {
			checks["open_data"] = CheckError
		} else {
			checks["open_data"] = CheckOK
		}
	}

	status := Healthy
	failing := 0
	for _, v := range checks {
		if v == CheckError {
			failing++
		}
	}
	switch {
	case len(checks) > 0 && failing == len(checks):
		status = Unhealthy
	case failing > 0:
		status = Degraded
	}

	return Report{Status: status, Checks: checks}
}
