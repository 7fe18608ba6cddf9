package domain

import "time"

const (
	// HealthStatusOK reports that every probed dependency answered.
	HealthStatusOK = "ok"
	// HealthStatusDegraded reports that an optional dependency failed; the site keeps serving.
	HealthStatusDegraded = "degraded"
	// HealthStatusError reports that a critical dependency is unavailable.
	HealthStatusError = "error"
)

// SystemHealthCheck describes the outcome of an individual dependency probe.
type SystemHealthCheck struct {
	Status    string
	Critical  bool
	Detail    string
	Error     string
	Latency   time.Duration
	CheckedAt time.Time
}

// SystemHealthReport aggregates dependency status for the readiness endpoint.
type SystemHealthReport struct {
	Status      string
	Checks      map[string]SystemHealthCheck
	Version     string
	CommitSHA   string
	Environment string
	Uptime      time.Duration
	GeneratedAt time.Time
}

// AggregateHealth folds probe results into one status. A failing critical probe is an error;
// any other non-ok probe only degrades the report.
func AggregateHealth(checks map[string]SystemHealthCheck) string {
	status := HealthStatusOK
	for _, check := range checks {
		if check.Status == "" || check.Status == HealthStatusOK {
			continue
		}
		if check.Critical && check.Status == HealthStatusError {
			return HealthStatusError
		}
		status = HealthStatusDegraded
	}
	return status
}
