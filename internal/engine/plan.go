package engine

import (
	"fmt"

	"github.com/sagarmemane135/omnihost/internal/inventory"
	"github.com/sagarmemane135/omnihost/internal/template"
)

// PlanEntry is one row of a dry-run plan: the host and the exact command it
// would receive.
type PlanEntry struct {
	Host    inventory.Host
	Command string
}

// Plan produces the dry-run plan for a request: the targets in dispatch
// order with their expanded commands. It contacts no host and performs no
// timing or retries. The only failure modes are an empty target set and a
// command template that does not expand.
func Plan(req Request) ([]PlanEntry, error) {
	if len(req.Targets) == 0 {
		return nil, fmt.Errorf("no targets resolved: nothing to plan")
	}
	if req.Command == "" {
		return nil, fmt.Errorf("command cannot be empty")
	}

	entries := make([]PlanEntry, len(req.Targets))
	for i, host := range req.Targets {
		cmd, err := template.Expand(req.Command, host)
		if err != nil {
			return nil, err
		}
		entries[i] = PlanEntry{Host: host, Command: cmd}
	}

	return entries, nil
}
