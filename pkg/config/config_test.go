package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 2*time.Millisecond, cfg.Timeouts.Pdu)
	assert.Equal(t, 500, cfg.DcStaticSyncIterations)
	assert.Equal(t, 3, cfg.RetryBehaviour)
}

func TestLoadBytesOverridesSelectively(t *testing.T) {
	data := []byte(`
[timeouts]
pdu = 5ms
state_transition = 10s

[config]
retry_behaviour = 7
`)
	cfg, err := LoadBytes(data)
	require.NoError(t, err)

	assert.Equal(t, 5*time.Millisecond, cfg.Timeouts.Pdu)
	assert.Equal(t, 10*time.Second, cfg.Timeouts.StateTransition)
	// Untouched keys keep their default value.
	assert.Equal(t, 100*time.Millisecond, cfg.Timeouts.MailboxEcho)
	assert.Equal(t, 500, cfg.DcStaticSyncIterations)
	assert.Equal(t, 7, cfg.RetryBehaviour)
}

func TestLoadBytesRejectsBadDuration(t *testing.T) {
	data := []byte(`
[timeouts]
pdu = not-a-duration
`)
	_, err := LoadBytes(data)
	require.Error(t, err)
}
