package domain

import "errors"

// Domain errors
var (
	ErrInvalidPredicate     = errors.New("invalid filter predicate")
	ErrSpawnFailed          = errors.New("log process failed to start")
	ErrToolUnavailable      = errors.New("heroku CLI not found")
	ErrNotAuthenticated     = errors.New("not authenticated with heroku")
	ErrMaxReconnectExceeded = errors.New("max reconnection attempts reached")
	ErrNotConnected         = errors.New("no target connected")
	ErrManagerClosed        = errors.New("stream manager closed")
	ErrConfigNotFound       = errors.New("config file not found")
	ErrInvalidConfig        = errors.New("invalid configuration")
)

// Error codes for API responses
const (
	ErrCodeInvalidPredicate     = "INVALID_PREDICATE"
	ErrCodeSpawnFailed          = "SPAWN_FAILED"
	ErrCodeToolUnavailable      = "TOOL_UNAVAILABLE"
	ErrCodeNotAuthenticated     = "NOT_AUTHENTICATED"
	ErrCodeMaxReconnectExceeded = "MAX_RECONNECT_EXCEEDED"
	ErrCodeNotConnected         = "NOT_CONNECTED"
	ErrCodeManagerClosed        = "MANAGER_CLOSED"

	// API-only codes with no sentinel error
	ErrCodeInvalidRequest        = "INVALID_REQUEST"
	ErrCodeStreamingNotSupported = "STREAMING_NOT_SUPPORTED"
)

// ErrorCode returns the API error code for a domain error
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrInvalidPredicate):
		return ErrCodeInvalidPredicate
	case errors.Is(err, ErrSpawnFailed):
		return ErrCodeSpawnFailed
	case errors.Is(err, ErrToolUnavailable):
		return ErrCodeToolUnavailable
	case errors.Is(err, ErrNotAuthenticated):
		return ErrCodeNotAuthenticated
	case errors.Is(err, ErrMaxReconnectExceeded):
		return ErrCodeMaxReconnectExceeded
	case errors.Is(err, ErrNotConnected):
		return ErrCodeNotConnected
	case errors.Is(err, ErrManagerClosed):
		return ErrCodeManagerClosed
	default:
		return "INTERNAL_ERROR"
	}
}
