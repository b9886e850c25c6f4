package cmd

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/koalasec/photon-sync/internal/fetch"
	"github.com/koalasec/photon-sync/internal/scheduler"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, 0},
		{"generic", errors.New("boom"), 1},
		{"first run", &scheduler.FirstRunError{Err: errors.New("mirror down")}, 75},
		{"wrapped first run", errors.Join(errors.New("context"), &scheduler.FirstRunError{Err: errors.New("x")}), 75},
		{"insufficient space", &fetch.InsufficientSpaceError{Path: "/data", Need: 10, Have: 1}, 75},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCode(tt.err))
		})
	}
}

func TestUpdateResultString(t *testing.T) {
	skipped := updateResult{Outcome: "skipped", SkipReason: "updates disabled", Duration: "1ms"}
	assert.Equal(t, "update skipped: updates disabled", skipped.String())

	failed := updateResult{Outcome: "failed", Stage: "VERIFYING", Duration: "3s"}
	assert.Contains(t, failed.String(), "VERIFYING")

	ok := updateResult{Outcome: "succeeded", Duration: "10s", SizeBytes: 42}
	assert.Contains(t, ok.String(), "succeeded")
}

func TestStatusReportString(t *testing.T) {
	r := statusReport{
		Strategy:    "PARALLEL",
		DataDir:     "/photon/data",
		HasCurrent:  true,
		Generations: []string{"current", "previous"},
		LastSuccess: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		NextDue:     time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC),
	}
	s := r.String()
	assert.Contains(t, s, "Region:      planet")
	assert.Contains(t, s, "current, previous")
	assert.Contains(t, s, "2025-06-01T12:00:00Z")

	fresh := statusReport{Region: "monaco", Strategy: "SEQUENTIAL", DataDir: "/d"}
	assert.Contains(t, fresh.String(), "Last update: never")
	assert.Contains(t, fresh.String(), "monaco")
}
