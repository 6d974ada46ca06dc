// Package remote provides the executor capability used to run one command on
// one host. The engine treats it as an opaque collaborator; the SSH
// implementation lives in client.go and a scripted mock in mock.go.
package remote

import (
	"context"
	"time"

	"github.com/sagarmemane135/omnihost/internal/inventory"
)

// Outcome is the result of one command invocation on one host. A non-nil
// error means the command could not be run (connection, auth, timeout); a
// non-zero ExitCode with a nil error means the command ran and failed.
type Outcome struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
}

// Executor runs a single command against a single host. Implementations must
// be safe for concurrent use across distinct hosts and must honor ctx
// cancellation and deadlines.
type Executor interface {
	Execute(ctx context.Context, host inventory.Host, command string) (Outcome, error)
}
