package engine

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sagarmemane135/omnihost/internal/audit"
	"github.com/sagarmemane135/omnihost/internal/errors"
	"github.com/sagarmemane135/omnihost/internal/inventory"
	"github.com/sagarmemane135/omnihost/internal/logging"
	"github.com/sagarmemane135/omnihost/internal/remote"
)

func testLogger() *logging.Logger {
	return logging.NewLogger(logging.Config{Level: logging.LevelError, Output: io.Discard})
}

func testHosts(n int) []inventory.Host {
	hosts := make([]inventory.Host, n)
	for i := range hosts {
		hosts[i] = inventory.Host{Name: fmt.Sprintf("host%d", i)}
	}
	return hosts
}

func testRequest(targets []inventory.Host) Request {
	return Request{
		Command:     "uptime",
		Targets:     targets,
		Parallelism: 5,
		Timeout:     5 * time.Second,
	}
}

func TestRunAllSucceed(t *testing.T) {
	mock := remote.NewMockExecutor()
	e := New(mock, testLogger())

	targets := testHosts(4)
	summary, err := e.Run(context.Background(), testRequest(targets))
	require.NoError(t, err)

	assert.Equal(t, 4, summary.Succeeded)
	assert.Equal(t, 0, summary.Failed)
	require.Len(t, summary.Results, 4)
	for i, r := range summary.Results {
		assert.Equal(t, targets[i].Name, r.Host.Name)
		assert.True(t, r.Succeeded)
		assert.Equal(t, 1, r.Attempts)
	}
}

func TestRunCountsAlwaysAddUp(t *testing.T) {
	mock := remote.NewMockExecutor()
	mock.Script("host1", remote.MockOutcome{ExitCode: 1})
	mock.Script("host3", remote.MockOutcome{Err: fmt.Errorf("connection refused")})
	e := New(mock, testLogger())

	targets := testHosts(5)
	summary, err := e.Run(context.Background(), testRequest(targets))
	require.NoError(t, err)

	assert.Equal(t, len(targets), summary.Succeeded+summary.Failed)
	assert.Equal(t, 3, summary.Succeeded)
	assert.Equal(t, 2, summary.Failed)
}

func TestRunOutputOrderIndependentOfCompletionOrder(t *testing.T) {
	mock := remote.NewMockExecutor()
	// Earlier targets finish last.
	mock.Script("host0", remote.MockOutcome{Delay: 80 * time.Millisecond, Stdout: "a"})
	mock.Script("host1", remote.MockOutcome{Delay: 40 * time.Millisecond, Stdout: "b"})
	mock.Script("host2", remote.MockOutcome{Delay: 10 * time.Millisecond, Stdout: "c"})
	e := New(mock, testLogger())

	var completionOrder []string
	var mu sync.Mutex
	e.observer = func(r HostResult) {
		mu.Lock()
		completionOrder = append(completionOrder, r.Host.Name)
		mu.Unlock()
	}

	targets := testHosts(3)
	summary, err := e.Run(context.Background(), testRequest(targets))
	require.NoError(t, err)

	assert.Equal(t, []string{"host0", "host1", "host2"}, summary.TargetNames())
	assert.Equal(t, []string{"host2", "host1", "host0"}, completionOrder)
}

func TestRunConnectionFailureRetriedToExhaustion(t *testing.T) {
	mock := remote.NewMockExecutor()
	mock.Script("host0", remote.MockOutcome{Err: fmt.Errorf("dial tcp: connection refused")})
	e := New(mock, testLogger())

	req := testRequest(testHosts(1))
	req.MaxRetries = 2
	summary, err := e.Run(context.Background(), req)
	require.NoError(t, err)

	r := summary.Results[0]
	assert.False(t, r.Succeeded)
	assert.Equal(t, 3, r.Attempts)
	assert.Equal(t, 3, mock.Calls("host0"))
	assert.Equal(t, errors.KindConnection, r.Final.FailKind)
}

func TestRunRetrySucceedsOnSecondAttempt(t *testing.T) {
	mock := remote.NewMockExecutor()
	mock.Script("host0",
		remote.MockOutcome{Err: fmt.Errorf("dial tcp: connection refused")},
		remote.MockOutcome{Stdout: "recovered\n"},
	)
	e := New(mock, testLogger())

	req := testRequest(testHosts(1))
	req.MaxRetries = 3
	summary, err := e.Run(context.Background(), req)
	require.NoError(t, err)

	r := summary.Results[0]
	assert.True(t, r.Succeeded)
	assert.Equal(t, 2, r.Attempts)
	assert.Equal(t, 2, mock.Calls("host0"))
	assert.Equal(t, "recovered\n", r.Final.Stdout)
}

func TestRunNonZeroExitNotRetried(t *testing.T) {
	mock := remote.NewMockExecutor()
	mock.Script("host0", remote.MockOutcome{ExitCode: 1, Stderr: "boom\n"})
	e := New(mock, testLogger())

	req := testRequest(testHosts(1))
	req.MaxRetries = 5
	summary, err := e.Run(context.Background(), req)
	require.NoError(t, err)

	r := summary.Results[0]
	assert.False(t, r.Succeeded)
	assert.Equal(t, 1, r.Attempts)
	assert.Equal(t, 1, mock.Calls("host0"))
	assert.Equal(t, errors.KindNonZeroExit, r.Final.FailKind)
	assert.Equal(t, 1, r.Final.ExitCode)
}

func TestRunAuthFailureNotRetried(t *testing.T) {
	mock := remote.NewMockExecutor()
	mock.Script("host0", remote.MockOutcome{Err: fmt.Errorf("ssh: unable to authenticate")})
	e := New(mock, testLogger())

	req := testRequest(testHosts(1))
	req.MaxRetries = 5
	summary, err := e.Run(context.Background(), req)
	require.NoError(t, err)

	r := summary.Results[0]
	assert.Equal(t, 1, r.Attempts)
	assert.Equal(t, errors.KindAuth, r.Final.FailKind)
}

func TestRunAttemptTimeoutRetriedAndMarked(t *testing.T) {
	mock := remote.NewMockExecutor()
	mock.Script("host0", remote.MockOutcome{Delay: time.Second})
	e := New(mock, testLogger())

	req := testRequest(testHosts(1))
	req.Timeout = 30 * time.Millisecond
	req.MaxRetries = 1
	summary, err := e.Run(context.Background(), req)
	require.NoError(t, err)

	r := summary.Results[0]
	assert.False(t, r.Succeeded)
	assert.Equal(t, 2, r.Attempts)
	assert.Equal(t, errors.KindTimeout, r.Final.FailKind)
	assert.Equal(t, 124, r.Final.ExitCode)
}

func TestRunCancellationReportsRemainingAsCancelled(t *testing.T) {
	mock := remote.NewMockExecutor()
	targets := testHosts(10)
	// Two fast hosts, the rest would block long enough for the cancel to land.
	for i := 2; i < 10; i++ {
		mock.Script(fmt.Sprintf("host%d", i), remote.MockOutcome{Delay: 10 * time.Second})
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	e := New(mock, testLogger())
	var done int
	var mu sync.Mutex
	e.observer = func(r HostResult) {
		mu.Lock()
		defer mu.Unlock()
		if r.Succeeded {
			done++
			if done == 2 {
				cancel()
			}
		}
	}

	req := testRequest(targets)
	req.Parallelism = 2
	req.Timeout = time.Minute
	summary, err := e.Run(ctx, req)
	require.NoError(t, err)

	require.Len(t, summary.Results, 10)
	assert.Equal(t, 2, summary.Succeeded)
	assert.Equal(t, 8, summary.Failed)

	for i := 2; i < 10; i++ {
		r := summary.Results[i]
		assert.False(t, r.Succeeded, "host%d", i)
		assert.Equal(t, errors.KindCancelled, r.Final.FailKind, "host%d", i)
	}
}

func TestRunParallelismClampedToTargetCount(t *testing.T) {
	mock := remote.NewMockExecutor()
	for i := 0; i < 3; i++ {
		mock.Script(fmt.Sprintf("host%d", i), remote.MockOutcome{Delay: 50 * time.Millisecond})
	}
	e := New(mock, testLogger())

	req := testRequest(testHosts(3))
	req.Parallelism = 50
	_, err := e.Run(context.Background(), req)
	require.NoError(t, err)

	assert.LessOrEqual(t, mock.MaxInFlight(), 3)
}

func TestRunParallelismHardCap(t *testing.T) {
	mock := remote.NewMockExecutor()
	targets := testHosts(40)
	for i := range targets {
		mock.Script(targets[i].Name, remote.MockOutcome{Delay: 30 * time.Millisecond})
	}
	e := New(mock, testLogger())

	req := testRequest(targets)
	req.Parallelism = 50
	_, err := e.Run(context.Background(), req)
	require.NoError(t, err)

	assert.LessOrEqual(t, mock.MaxInFlight(), MaxParallelism)
}

func TestRunRejectsZeroParallelism(t *testing.T) {
	e := New(remote.NewMockExecutor(), testLogger())

	req := testRequest(testHosts(2))
	req.Parallelism = 0
	_, err := e.Run(context.Background(), req)
	assert.Error(t, err)
}

func TestRunRejectsEmptyTargets(t *testing.T) {
	e := New(remote.NewMockExecutor(), testLogger())

	req := testRequest(nil)
	_, err := e.Run(context.Background(), req)
	assert.Error(t, err)
}

func TestRunRejectsBadTemplate(t *testing.T) {
	mock := remote.NewMockExecutor()
	e := New(mock, testLogger())

	req := testRequest(testHosts(2))
	req.Command = "echo {{.Bogus}}"
	_, err := e.Run(context.Background(), req)
	require.Error(t, err)
	assert.Zero(t, mock.TotalCalls())
}

type recordingRecorder struct {
	mu      sync.Mutex
	records []audit.Record
	fail    bool
}

func (r *recordingRecorder) Record(ctx context.Context, rec audit.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return fmt.Errorf("audit store unavailable")
	}
	r.records = append(r.records, rec)
	return nil
}

func TestRunNotifiesAuditRecorderOnce(t *testing.T) {
	mock := remote.NewMockExecutor()
	mock.Script("host1", remote.MockOutcome{ExitCode: 1})
	rec := &recordingRecorder{}
	e := New(mock, testLogger(), WithRecorder(rec, "alice"))

	summary, err := e.Run(context.Background(), testRequest(testHosts(3)))
	require.NoError(t, err)

	require.Len(t, rec.records, 1)
	got := rec.records[0]
	assert.Equal(t, "alice", got.Who)
	assert.Equal(t, "uptime", got.Command)
	assert.Equal(t, summary.TargetNames(), got.Targets)
	assert.Equal(t, 2, got.Succeeded)
	assert.Equal(t, 1, got.Failed)
}

func TestRunAuditFailureDoesNotFailRun(t *testing.T) {
	mock := remote.NewMockExecutor()
	rec := &recordingRecorder{fail: true}
	e := New(mock, testLogger(), WithRecorder(rec, "alice"))

	summary, err := e.Run(context.Background(), testRequest(testHosts(2)))
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Succeeded)
}
