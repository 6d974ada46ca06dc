// Package engine implements the parallel dispatch core of omnihost: a
// bounded worker pool fanning one command out across a fleet, a per-host
// retry/timeout state machine, and an order-preserving result aggregator.
package engine

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/sagarmemane135/omnihost/internal/inventory"
)

// MaxParallelism caps the worker pool regardless of what the caller asks for.
const MaxParallelism = 20

var validate = validator.New(validator.WithRequiredStructEnabled())

// Request describes one fleet execution. It is built once per invocation and
// never mutated by the engine.
type Request struct {
	Command     string           `validate:"required"`
	Targets     []inventory.Host `validate:"min=1"`
	Parallelism int              `validate:"min=1"`
	Timeout     time.Duration    `validate:"gt=0"`
	MaxRetries  int              `validate:"min=0"`
	DryRun      bool
	Mode        string `validate:"omitempty,oneof=interactive json csv quiet plain compact"`
}

// Validate checks the request before any dispatch. A request that fails here
// is a setup error; nothing has been attempted against any host yet.
func (r Request) Validate() error {
	if len(r.Targets) == 0 {
		return fmt.Errorf("no targets resolved: refusing to dispatch")
	}
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("invalid execution request: %w", err)
	}
	return nil
}

// effectiveParallelism clamps the requested parallelism to the hard cap and
// to the target count. Never opens more slots than there are hosts.
func (r Request) effectiveParallelism() int {
	p := r.Parallelism
	if p > MaxParallelism {
		p = MaxParallelism
	}
	if p > len(r.Targets) {
		p = len(r.Targets)
	}
	if p < 1 {
		p = 1
	}
	return p
}
