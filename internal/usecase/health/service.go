package health

import "context"

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates partial failure.
	Degraded Status = "degraded"
	// Unhealthy indicates the engine is unreachable.
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
	Status  Status
	Checks  map[string]CheckResult
	Missing []string
}

// Service coordinates health checks.
type Service struct {
	engine  EnginePinger
	indexes IndexChecker
}

// New creates a Service. indexes can be nil.
func New(engine EnginePinger, indexes IndexChecker) *Service {
	return &Service{engine: engine, indexes: indexes}
}

// Check pings the engine and, when it answers, looks for missing indexes.
// Missing indexes degrade the report since they are created on first write.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult)

	if err := s.engine.Ping(ctx); err != nil {
		checks["engine"] = CheckError
		return Report{Status: Unhealthy, Checks: checks}
	}
	checks["engine"] = CheckOK

	var missing []string
	if s.indexes != nil {
		m, err := s.indexes.MissingIndexes(ctx)
		if err != nil || len(m) > 0 {
			checks["indexes"] = CheckError
		} else {
			checks["indexes"] = CheckOK
		}
		missing = m
	}

	status := Healthy
	for _, v := range checks {
		if v == CheckError {
			status = Degraded
			break
		}
	}
	return Report{Status: status, Checks: checks, Missing: missing}
}
