package repositories

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	domain "github.com/mrpixelvns-oss/vntech-sub000/internal/domain"
)

const defaultDependencyTimeout = 1500 * time.Millisecond

// DependencyCheck describes a dependency probe executed by the readiness endpoint.
// A failing critical probe turns the report into an error; optional probes only degrade it.
type DependencyCheck struct {
	Name     string
	Critical bool
	Timeout  time.Duration
	Check    func(context.Context) error
}

// DependencyHealthOption customises the dependency-backed health repository.
type DependencyHealthOption func(*dependencyHealthRepository)

// WithDependencyTimeout overrides the timeout applied when a check omits its own.
func WithDependencyTimeout(timeout time.Duration) DependencyHealthOption {
	return func(repo *dependencyHealthRepository) {
		if timeout > 0 {
			repo.defaultTimeout = timeout
		}
	}
}

// WithDependencyClock injects a custom clock, primarily for tests.
func WithDependencyClock(clock func() time.Time) DependencyHealthOption {
	return func(repo *dependencyHealthRepository) {
		if clock != nil {
			repo.now = clock
		}
	}
}

type dependencyHealthRepository struct {
	checks         []DependencyCheck
	defaultTimeout time.Duration
	now            func() time.Time
}

var _ HealthRepository = (*dependencyHealthRepository)(nil)

// NewDependencyHealthRepository returns a HealthRepository probing checks. Names must be
// unique and every check needs a function.
func NewDependencyHealthRepository(checks []DependencyCheck, opts ...DependencyHealthOption) (HealthRepository, error) {
	if err := validateChecks(checks); err != nil {
		return nil, fmt.Errorf("health repository: %w", err)
	}
	repo := &dependencyHealthRepository{
		checks:         slices.Clone(checks),
		defaultTimeout: defaultDependencyTimeout,
		now:            time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(repo)
		}
	}
	return repo, nil
}

func validateChecks(checks []DependencyCheck) error {
	if len(checks) == 0 {
		return errors.New("at least one dependency check is required")
	}
	names := make(map[string]bool, len(checks))
	for i, check := range checks {
		name := strings.TrimSpace(check.Name)
		switch {
		case name == "":
			return fmt.Errorf("check %d has no name", i)
		case check.Check == nil:
			return fmt.Errorf("check %s has no probe function", name)
		case names[name]:
			return fmt.Errorf("check %s registered twice", name)
		}
		names[name] = true
	}
	return nil
}

// Collect runs every probe concurrently; each result lands in its own slot so no lock is needed.
func (r *dependencyHealthRepository) Collect(ctx context.Context) (domain.SystemHealthReport, error) {
	if ctx == nil {
		return domain.SystemHealthReport{}, errors.New("health repository: context is required")
	}

	outcomes := make([]domain.SystemHealthCheck, len(r.checks))
	var wg sync.WaitGroup
	for i := range r.checks {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outcomes[i] = r.probe(ctx, r.checks[i])
		}(i)
	}
	wg.Wait()

	checks := make(map[string]domain.SystemHealthCheck, len(outcomes))
	for i, outcome := range outcomes {
		checks[strings.TrimSpace(r.checks[i].Name)] = outcome
	}
	return domain.SystemHealthReport{
		Status:      domain.AggregateHealth(checks),
		Checks:      checks,
		GeneratedAt: r.now(),
	}, nil
}

func (r *dependencyHealthRepository) probe(ctx context.Context, check DependencyCheck) domain.SystemHealthCheck {
	timeout := check.Timeout
	if timeout <= 0 {
		timeout = r.defaultTimeout
	}
	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	started := r.now()
	err := check.Check(probeCtx)
	finished := r.now()
	if err == nil {
		// Late answers from probes that ignore their context still count as timeouts.
		err = probeCtx.Err()
	}

	outcome := domain.SystemHealthCheck{
		Status:    domain.HealthStatusOK,
		Critical:  check.Critical,
		Detail:    "ok",
		Latency:   finished.Sub(started),
		CheckedAt: finished,
	}
	if err == nil {
		return outcome
	}

	outcome.Error = err.Error()
	outcome.Detail = failureDetail(err)
	outcome.Status = domain.HealthStatusDegraded
	if check.Critical {
		outcome.Status = domain.HealthStatusError
	}
	return outcome
}

func failureDetail(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	default:
		return err.Error()
	}
}
