package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConnectionState_String(t *testing.T) {
	assert.Equal(t, "disconnected", Disconnected().String())
	assert.Equal(t, "connecting", Connecting().String())
	assert.Equal(t, "streaming", Streaming().String())
	assert.Equal(t, "reconnecting (attempt 3)", Reconnecting(3).String())
	assert.Equal(t, "error: "+ErrMaxReconnectExceeded.Error(), Failed(ErrMaxReconnectExceeded).String())
	assert.Equal(t, "error", Failed(nil).String())
}

func TestConnectionState_IsActive(t *testing.T) {
	tests := []struct {
		state ConnectionState
		want  bool
	}{
		{Disconnected(), false},
		{Connecting(), true},
		{Streaming(), true},
		{Reconnecting(1), true},
		{Failed(ErrSpawnFailed), false},
	}
	for _, tt := range tests {
		t.Run(tt.state.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.state.IsActive())
		})
	}
}

func TestConnectionState_Is(t *testing.T) {
	state := Failed(ErrMaxReconnectExceeded)
	assert.True(t, state.Is(ErrMaxReconnectExceeded))
	assert.False(t, state.Is(ErrSpawnFailed))
	assert.False(t, Streaming().Is(ErrMaxReconnectExceeded))
}
