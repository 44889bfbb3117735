package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectionStateClassification(t *testing.T) {
	cases := []struct {
		state    ConnectionState
		name     string
		terminal bool
		live     bool
	}{
		{StateIdle, "idle", false, false},
		{StateConnecting, "connecting", false, false},
		{StateConnected, "connected", false, true},
		{StateReconnecting, "reconnecting", false, true},
		{StateDisconnected, "disconnected", true, false},
		{StateError, "error", true, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.name, tc.state.String())
		assert.Equal(t, tc.terminal, tc.state.Terminal(), tc.name)
		assert.Equal(t, tc.live, tc.state.Live(), tc.name)
	}
}

func TestConnectionStateJSON(t *testing.T) {
	b, err := json.Marshal(StateReconnecting)
	require.NoError(t, err)
	assert.Equal(t, `"reconnecting"`, string(b))
}
