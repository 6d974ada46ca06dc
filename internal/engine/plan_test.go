package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sagarmemane135/omnihost/internal/inventory"
)

func TestPlanExpandsPerHost(t *testing.T) {
	targets := []inventory.Host{
		{Name: "web1", Address: "10.0.0.1"},
		{Name: "web2", Address: "10.0.0.2"},
		{Name: "db1", Address: "10.0.0.3"},
	}
	req := Request{
		Command:     "echo {{.Host}}",
		Targets:     targets,
		Parallelism: 5,
		Timeout:     time.Second,
	}

	entries, err := Plan(req)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Equal(t, "echo web1", entries[0].Command)
	assert.Equal(t, "echo web2", entries[1].Command)
	assert.Equal(t, "echo db1", entries[2].Command)
	for i, e := range entries {
		assert.Equal(t, targets[i].Name, e.Host.Name)
	}
}

func TestPlanPlainCommandUnchanged(t *testing.T) {
	entries, err := Plan(Request{
		Command:     "uptime",
		Targets:     testHosts(2),
		Parallelism: 1,
		Timeout:     time.Second,
	})
	require.NoError(t, err)
	for _, e := range entries {
		assert.Equal(t, "uptime", e.Command)
	}
}

func TestPlanErrors(t *testing.T) {
	_, err := Plan(Request{Command: "uptime"})
	assert.Error(t, err)

	_, err = Plan(Request{Command: "", Targets: testHosts(1)})
	assert.Error(t, err)

	_, err = Plan(Request{Command: "echo {{.Bogus}}", Targets: testHosts(1)})
	assert.Error(t, err)
}

func TestAggregatorPanicsOnDuplicateResult(t *testing.T) {
	agg := newAggregator("uptime", 2)
	r := HostResult{Host: inventory.Host{Name: "host0"}, Index: 0, Succeeded: true}
	agg.place(r)
	assert.Panics(t, func() { agg.place(r) })
}

func TestAggregatorPanicsWhenFinalizedEarly(t *testing.T) {
	agg := newAggregator("uptime", 2)
	agg.place(HostResult{Index: 1})
	assert.Panics(t, func() { agg.finalize(time.Now(), time.Second) })
}
