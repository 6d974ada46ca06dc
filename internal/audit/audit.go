// Package audit records one immutable entry per fleet invocation.
package audit

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Record is the immutable audit entry for one invocation: who ran what,
// against which hosts, and how it went.
type Record struct {
	ID          string    `json:"id"`
	Who         string    `json:"who"`
	Command     string    `json:"command"`
	Targets     []string  `json:"targets"`
	Succeeded   int       `json:"succeeded"`
	Failed      int       `json:"failed"`
	StartedAt   time.Time `json:"started_at"`
	WallClockMs int64     `json:"wall_clock_ms"`
}

// NewRecord builds an audit record with a fresh invocation ID.
func NewRecord(who, command string, targets []string, succeeded, failed int, startedAt time.Time, wallClock time.Duration) Record {
	return Record{
		ID:          uuid.NewString(),
		Who:         who,
		Command:     command,
		Targets:     targets,
		Succeeded:   succeeded,
		Failed:      failed,
		StartedAt:   startedAt,
		WallClockMs: wallClock.Milliseconds(),
	}
}

// TargetList returns the comma-joined target names for storage.
func (r Record) TargetList() string {
	return strings.Join(r.Targets, ",")
}

// Recorder receives exactly one record per invocation, after the summary is
// finalized. Implementations are best-effort: callers log failures and move
// on, they never fail the execution.
type Recorder interface {
	Record(ctx context.Context, rec Record) error
}

// NopRecorder discards records. Used when auditing is disabled.
type NopRecorder struct{}

// Record implements Recorder.
func (NopRecorder) Record(ctx context.Context, rec Record) error { return nil }
