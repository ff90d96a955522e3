package domain

import (
	"strings"
	"time"
)

// Level is the severity detected in a log message
type Level int

const (
	LevelUnknown Level = iota
	LevelError
	LevelWarn
	LevelInfo
	LevelDebug
)

// String returns the display name of the level
func (l Level) String() string {
	switch l {
	case LevelError:
		return "Error"
	case LevelWarn:
		return "Warn"
	case LevelInfo:
		return "Info"
	case LevelDebug:
		return "Debug"
	default:
		return "Unknown"
	}
}

// MarshalText encodes the level as its lowercase name
func (l Level) MarshalText() ([]byte, error) {
	return []byte(strings.ToLower(l.String())), nil
}

// ParseLevel converts a level name (case-insensitive) to a Level.
// "warning" is accepted as an alias for warn.
func ParseLevel(s string) (Level, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "error":
		return LevelError, true
	case "warn", "warning":
		return LevelWarn, true
	case "info":
		return LevelInfo, true
	case "debug":
		return LevelDebug, true
	case "unknown":
		return LevelUnknown, true
	default:
		return LevelUnknown, false
	}
}

// LogRecord is a single parsed line from the log stream.
// Records are values and are never modified after the parser creates them.
type LogRecord struct {
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"`
	Dyno      string    `json:"dyno"`
	Level     Level     `json:"level"`
	Message   string    `json:"message"`
	Raw       string    `json:"raw"`
}

// LogStats contains statistics about the log buffer
type LogStats struct {
	TotalEntries int
	BufferSize   int
	Subscribers  int
}

// Target is a selectable log source, e.g. a Heroku app
type Target struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}
