package repositories

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/mrpixelvns-oss/vntech-sub000/internal/domain"
)

func healthy(context.Context) error { return nil }

func failing(msg string) func(context.Context) error {
	return func(context.Context) error { return errors.New(msg) }
}

func blocking(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestDependencyHealthRepositoryCollect(t *testing.T) {
	cases := []struct {
		name   string
		checks []DependencyCheck
		status string
		probe  string
		want   domain.SystemHealthCheck
	}{
		{
			name: "all healthy",
			checks: []DependencyCheck{
				{Name: "firestore", Critical: true, Check: healthy},
				{Name: "pubsub", Check: healthy},
			},
			status: domain.HealthStatusOK,
			probe:  "firestore",
			want:   domain.SystemHealthCheck{Status: domain.HealthStatusOK, Critical: true, Detail: "ok"},
		},
		{
			name: "optional failure degrades",
			checks: []DependencyCheck{
				{Name: "firestore", Critical: true, Check: healthy},
				{Name: "pubsub", Check: failing("topic not found")},
			},
			status: domain.HealthStatusDegraded,
			probe:  "pubsub",
			want:   domain.SystemHealthCheck{Status: domain.HealthStatusDegraded, Error: "topic not found", Detail: "topic not found"},
		},
		{
			name: "critical timeout errors",
			checks: []DependencyCheck{
				{Name: "firestore", Critical: true, Timeout: 5 * time.Millisecond, Check: blocking},
				{Name: "storage", Check: healthy},
			},
			status: domain.HealthStatusError,
			probe:  "firestore",
			want:   domain.SystemHealthCheck{Status: domain.HealthStatusError, Critical: true, Error: context.DeadlineExceeded.Error(), Detail: "timeout"},
		},
		{
			name: "critical failure beats optional failure",
			checks: []DependencyCheck{
				{Name: "firestore", Critical: true, Check: failing("permission denied")},
				{Name: "pubsub", Check: failing("topic not found")},
			},
			status: domain.HealthStatusError,
			probe:  "firestore",
			want:   domain.SystemHealthCheck{Status: domain.HealthStatusError, Critical: true, Error: "permission denied", Detail: "permission denied"},
		},
	}

	now := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo, err := NewDependencyHealthRepository(tc.checks, WithDependencyClock(func() time.Time { return now }))
			if err != nil {
				t.Fatalf("NewDependencyHealthRepository: %v", err)
			}
			report, err := repo.Collect(context.Background())
			if err != nil {
				t.Fatalf("Collect: %v", err)
			}
			if report.Status != tc.status || !report.GeneratedAt.Equal(now) {
				t.Fatalf("report status=%s generatedAt=%s", report.Status, report.GeneratedAt)
			}
			if len(report.Checks) != len(tc.checks) {
				t.Fatalf("expected %d checks, got %d", len(tc.checks), len(report.Checks))
			}
			got := report.Checks[tc.probe]
			if got.Status != tc.want.Status || got.Critical != tc.want.Critical ||
				got.Error != tc.want.Error || got.Detail != tc.want.Detail || !got.CheckedAt.Equal(now) {
				t.Fatalf("check %s = %+v, want %+v", tc.probe, got, tc.want)
			}
		})
	}
}

func TestNewDependencyHealthRepositoryRejectsInvalidChecks(t *testing.T) {
	cases := map[string][]DependencyCheck{
		"empty":     nil,
		"no name":   {{Name: " ", Check: healthy}},
		"no func":   {{Name: "firestore"}},
		"duplicate": {{Name: "firestore", Check: healthy}, {Name: "firestore", Check: healthy}},
	}
	for name, checks := range cases {
		if _, err := NewDependencyHealthRepository(checks); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}
