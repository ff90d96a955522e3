package domain

import (
	"errors"
	"fmt"
)

// ConnectionStatus is the kind of the current connection state.
// A stream manager moves through these as its log process starts, exits and respawns.
type ConnectionStatus string

const (
	// StatusDisconnected indicates no stream is active
	StatusDisconnected ConnectionStatus = "disconnected"
	// StatusConnecting indicates the log process is being spawned
	StatusConnecting ConnectionStatus = "connecting"
	// StatusStreaming indicates the log process is running and being read
	StatusStreaming ConnectionStatus = "streaming"
	// StatusReconnecting indicates the process exited and a respawn is pending
	StatusReconnecting ConnectionStatus = "reconnecting"
	// StatusError indicates a terminal failure; only an explicit connect recovers
	StatusError ConnectionStatus = "error"
)

// String returns the string representation of ConnectionStatus
func (s ConnectionStatus) String() string {
	return string(s)
}

// ConnectionState is the observable state of a stream manager.
// Attempt is set only for StatusReconnecting, Err and Reason only for StatusError.
type ConnectionState struct {
	Status  ConnectionStatus `json:"status"`
	Attempt int              `json:"attempt,omitempty"`
	Reason  string           `json:"reason,omitempty"`
	Err     error            `json:"-"`
}

// Disconnected returns the idle state
func Disconnected() ConnectionState {
	return ConnectionState{Status: StatusDisconnected}
}

// Connecting returns the spawning state
func Connecting() ConnectionState {
	return ConnectionState{Status: StatusConnecting}
}

// Streaming returns the running state
func Streaming() ConnectionState {
	return ConnectionState{Status: StatusStreaming}
}

// Reconnecting returns the state for the given 1-indexed reconnect attempt
func Reconnecting(attempt int) ConnectionState {
	return ConnectionState{Status: StatusReconnecting, Attempt: attempt}
}

// Failed returns the terminal error state for err
func Failed(err error) ConnectionState {
	reason := ""
	if err != nil {
		reason = err.Error()
	}
	return ConnectionState{Status: StatusError, Reason: reason, Err: err}
}

// IsActive returns true while a process is owned or about to be respawned
func (s ConnectionState) IsActive() bool {
	switch s.Status {
	case StatusConnecting, StatusStreaming, StatusReconnecting:
		return true
	default:
		return false
	}
}

// Is reports whether the state is an error state caused by target
func (s ConnectionState) Is(target error) bool {
	return s.Status == StatusError && errors.Is(s.Err, target)
}

// String returns a short human readable description
func (s ConnectionState) String() string {
	switch s.Status {
	case StatusReconnecting:
		return fmt.Sprintf("reconnecting (attempt %d)", s.Attempt)
	case StatusError:
		if s.Reason == "" {
			return "error"
		}
		return "error: " + s.Reason
	default:
		return s.Status.String()
	}
}
