package engine

import (
	"time"

	"github.com/sagarmemane135/omnihost/internal/errors"
	"github.com/sagarmemane135/omnihost/internal/inventory"
)

// Attempt records one try of the command against one host.
type Attempt struct {
	Number    int
	StartedAt time.Time
	Duration  time.Duration
	ExitCode  int
	Stdout    string
	Stderr    string
	FailKind  errors.Kind // KindNone when the attempt succeeded
	Message   string      // failure description, empty on success
}

// Succeeded reports whether the command ran and exited zero.
func (a Attempt) Succeeded() bool {
	return a.FailKind == errors.KindNone
}

// HostResult is the terminal record for one host. It is owned by the
// execution unit until emitted and immutable afterwards.
type HostResult struct {
	Host          inventory.Host
	Index         int // position in the request's target order
	Succeeded     bool
	Final         Attempt
	Attempts      int
	TotalDuration time.Duration
}

// FirstOutputLine returns the first line of the final attempt's stdout, or
// the failure message when nothing was captured. Used by the terse renderers.
func (r HostResult) FirstOutputLine() string {
	out := r.Final.Stdout
	for i := 0; i < len(out); i++ {
		if out[i] == '\n' {
			return out[:i]
		}
	}
	if out == "" && !r.Succeeded {
		return r.Final.Message
	}
	return out
}

// Summary is the immutable aggregate of one fleet execution. Results are in
// target order, not completion order.
type Summary struct {
	Command   string
	Results   []HostResult
	Succeeded int
	Failed    int
	WallClock time.Duration
	StartedAt time.Time
}

// TargetNames returns the host names in target order.
func (s *Summary) TargetNames() []string {
	names := make([]string, len(s.Results))
	for i, r := range s.Results {
		names[i] = r.Host.Name
	}
	return names
}
