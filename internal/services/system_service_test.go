package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/mrpixelvns-oss/vntech-sub000/internal/domain"
)

type fakeProbes struct {
	report domain.SystemHealthReport
	err    error
}

func (f fakeProbes) Collect(context.Context) (domain.SystemHealthReport, error) {
	return f.report, f.err
}

func TestNewSystemServiceRequiresProbes(t *testing.T) {
	_, err := NewSystemService(SystemServiceDeps{})
	require.Error(t, err)
}

func TestHealthReportStampsBuildInfo(t *testing.T) {
	started := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	now := started.Add(90 * time.Minute)
	svc, err := NewSystemService(SystemServiceDeps{
		HealthRepository: fakeProbes{report: domain.SystemHealthReport{
			Checks: map[string]domain.SystemHealthCheck{"firestore": {Status: domain.HealthStatusOK, Critical: true}},
		}},
		Clock: func() time.Time { return now },
		Build: BuildInfo{Version: "2.0.1", CommitSHA: "9f2c", Environment: "stg", StartedAt: started},
	})
	require.NoError(t, err)

	report, err := svc.HealthReport(context.Background())
	require.NoError(t, err)

	assert.Equal(t, domain.HealthStatusOK, report.Status)
	assert.Equal(t, "2.0.1", report.Version)
	assert.Equal(t, "9f2c", report.CommitSHA)
	assert.Equal(t, "stg", report.Environment)
	assert.Equal(t, 90*time.Minute, report.Uptime)
	assert.Equal(t, now, report.GeneratedAt)
}

func TestHealthReportKeepsProbeValues(t *testing.T) {
	generated := time.Date(2026, 3, 1, 9, 0, 0, 0, time.FixedZone("ICT", 7*3600))
	svc, err := NewSystemService(SystemServiceDeps{
		HealthRepository: fakeProbes{report: domain.SystemHealthReport{
			Status:      domain.HealthStatusDegraded,
			Version:     "from-probe",
			GeneratedAt: generated,
		}},
		Build: BuildInfo{Version: "2.0.1"},
	})
	require.NoError(t, err)

	report, err := svc.HealthReport(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.HealthStatusDegraded, report.Status)
	assert.Equal(t, "from-probe", report.Version)
	assert.Equal(t, time.UTC, report.GeneratedAt.Location())
	assert.NotNil(t, report.Checks)
}

func TestHealthReportDerivesMissingStatus(t *testing.T) {
	cases := map[string]struct {
		checks map[string]domain.SystemHealthCheck
		want   string
	}{
		"all ok": {
			checks: map[string]domain.SystemHealthCheck{"firestore": {Status: domain.HealthStatusOK, Critical: true}},
			want:   domain.HealthStatusOK,
		},
		"optional failure": {
			checks: map[string]domain.SystemHealthCheck{
				"firestore": {Status: domain.HealthStatusOK, Critical: true},
				"pubsub":    {Status: domain.HealthStatusError},
			},
			want: domain.HealthStatusDegraded,
		},
		"critical failure": {
			checks: map[string]domain.SystemHealthCheck{
				"firestore": {Status: domain.HealthStatusError, Critical: true},
				"storage":   {Status: domain.HealthStatusOK},
			},
			want: domain.HealthStatusError,
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			svc, err := NewSystemService(SystemServiceDeps{HealthRepository: fakeProbes{report: domain.SystemHealthReport{Checks: tc.checks}}})
			require.NoError(t, err)
			report, err := svc.HealthReport(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tc.want, report.Status)
		})
	}
}

func TestHealthReportPropagatesProbeError(t *testing.T) {
	boom := errors.New("collect failed")
	svc, err := NewSystemService(SystemServiceDeps{HealthRepository: fakeProbes{err: boom}})
	require.NoError(t, err)

	_, err = svc.HealthReport(context.Background())
	assert.ErrorIs(t, err, boom)
}
