package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Parallel:     5,
		Timeout:      30,
		Retries:      0,
		Output:       "interactive",
		LogLevel:     "info",
		LogFormat:    "text",
		AuditEnabled: true,
	}
}

func TestValidateAcceptsDefaults(t *testing.T) {
	m := NewManager()
	require.NoError(t, m.Validate(validConfig()))
}

func TestValidateRejectsParallelOutOfRange(t *testing.T) {
	m := NewManager()

	cfg := validConfig()
	cfg.Parallel = 0
	assert.ErrorContains(t, m.Validate(cfg), "parallel")

	cfg.Parallel = 21
	assert.ErrorContains(t, m.Validate(cfg), "parallel")
}

func TestValidateRejectsBadTimeout(t *testing.T) {
	m := NewManager()

	cfg := validConfig()
	cfg.Timeout = 0
	assert.Error(t, m.Validate(cfg))
}

func TestValidateRejectsNegativeRetries(t *testing.T) {
	m := NewManager()

	cfg := validConfig()
	cfg.Retries = -1
	assert.Error(t, m.Validate(cfg))
}

func TestValidateRejectsUnknownOutput(t *testing.T) {
	m := NewManager()

	cfg := validConfig()
	cfg.Output = "yaml"
	assert.ErrorContains(t, m.Validate(cfg), "output")
}

func TestValidateAcceptsAllOutputModes(t *testing.T) {
	m := NewManager()

	for _, mode := range []string{"interactive", "json", "csv", "quiet", "plain", "compact"} {
		cfg := validConfig()
		cfg.Output = mode
		assert.NoError(t, m.Validate(cfg), "mode %s", mode)
	}
}
