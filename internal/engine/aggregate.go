package engine

import (
	"fmt"
	"time"
)

// aggregator collects the scheduler's result stream into a table indexed by
// target position, so final output order equals input order regardless of
// completion order. It is driven from a single goroutine; the index table is
// never shared while being written.
type aggregator struct {
	command   string
	results   []HostResult
	filled    []bool
	placed    int
	succeeded int
	failed    int
}

func newAggregator(command string, targetCount int) *aggregator {
	return &aggregator{
		command: command,
		results: make([]HostResult, targetCount),
		filled:  make([]bool, targetCount),
	}
}

// place writes one terminal result into its slot. A second result for the
// same host is a programming error, not a runtime condition.
func (a *aggregator) place(r HostResult) {
	if r.Index < 0 || r.Index >= len(a.results) {
		panic(fmt.Sprintf("engine: result index %d out of range for %d targets", r.Index, len(a.results)))
	}
	if a.filled[r.Index] {
		panic(fmt.Sprintf("engine: duplicate result for host %s (index %d)", r.Host.Name, r.Index))
	}

	a.results[r.Index] = r
	a.filled[r.Index] = true
	a.placed++
	if r.Succeeded {
		a.succeeded++
	} else {
		a.failed++
	}
}

// finalize produces the immutable summary. Every slot must be filled; the
// scheduler guarantees one terminal result per dispatched host.
func (a *aggregator) finalize(startedAt time.Time, wallClock time.Duration) *Summary {
	if a.placed != len(a.results) {
		panic(fmt.Sprintf("engine: finalized with %d/%d results", a.placed, len(a.results)))
	}

	return &Summary{
		Command:   a.command,
		Results:   a.results,
		Succeeded: a.succeeded,
		Failed:    a.failed,
		WallClock: wallClock,
		StartedAt: startedAt,
	}
}
