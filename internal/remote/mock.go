package remote

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sagarmemane135/omnihost/internal/inventory"
)

// MockOutcome is one scripted response for a host.
type MockOutcome struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Err      error
	Delay    time.Duration
}

// MockExecutor returns scripted outcomes per host, in order. Hosts with more
// than one scripted outcome return them attempt by attempt, repeating the
// last one once the script runs out. Intended for tests.
type MockExecutor struct {
	mu      sync.Mutex
	scripts map[string][]MockOutcome
	calls   map[string]int

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
	totalCalls  atomic.Int32
}

// NewMockExecutor creates an empty mock executor.
func NewMockExecutor() *MockExecutor {
	return &MockExecutor{
		scripts: make(map[string][]MockOutcome),
		calls:   make(map[string]int),
	}
}

// Script appends scripted outcomes for a host name.
func (m *MockExecutor) Script(host string, outcomes ...MockOutcome) {
	m.mu.Lock()
	m.scripts[host] = append(m.scripts[host], outcomes...)
	m.mu.Unlock()
}

// Execute returns the next scripted outcome for the host. Unscripted hosts
// succeed with empty output.
func (m *MockExecutor) Execute(ctx context.Context, host inventory.Host, command string) (Outcome, error) {
	m.totalCalls.Add(1)

	current := m.inFlight.Add(1)
	for {
		max := m.maxInFlight.Load()
		if current <= max || m.maxInFlight.CompareAndSwap(max, current) {
			break
		}
	}
	defer m.inFlight.Add(-1)

	m.mu.Lock()
	script := m.scripts[host.Name]
	n := m.calls[host.Name]
	m.calls[host.Name] = n + 1
	m.mu.Unlock()

	var out MockOutcome
	if len(script) > 0 {
		if n >= len(script) {
			n = len(script) - 1
		}
		out = script[n]
	}

	start := time.Now()
	if out.Delay > 0 {
		select {
		case <-ctx.Done():
			return Outcome{Duration: time.Since(start)}, ctx.Err()
		case <-time.After(out.Delay):
		}
	}
	if err := ctx.Err(); err != nil {
		return Outcome{Duration: time.Since(start)}, err
	}

	if out.Err != nil {
		return Outcome{Duration: time.Since(start)}, out.Err
	}

	return Outcome{
		ExitCode: out.ExitCode,
		Stdout:   out.Stdout,
		Stderr:   out.Stderr,
		Duration: time.Since(start),
	}, nil
}

// Calls returns how many attempts were made against the host.
func (m *MockExecutor) Calls(host string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[host]
}

// TotalCalls returns the number of Execute invocations across all hosts.
func (m *MockExecutor) TotalCalls() int {
	return int(m.totalCalls.Load())
}

// MaxInFlight returns the high-water mark of concurrent Execute calls.
func (m *MockExecutor) MaxInFlight() int {
	return int(m.maxInFlight.Load())
}
