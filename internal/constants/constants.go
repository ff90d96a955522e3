// Package constants provides shared configuration values used across the herolog application.
package constants

import "time"

// Configuration file defaults
const (
	// DefaultConfigFile is the default configuration filename
	DefaultConfigFile = "herolog.yaml"

	// DefaultAPIHost is the default host for the API server
	DefaultAPIHost = "127.0.0.1"

	// DefaultAPIPort is the default port for the API server
	DefaultAPIPort = 5580

	// DefaultHerokuBinary is the command name used when no explicit path is configured
	DefaultHerokuBinary = "heroku"
)

// Timeout and duration defaults
const (
	// DefaultRequestTimeout is the default timeout for API requests
	DefaultRequestTimeout = 30 * time.Second

	// DefaultShutdownTimeout is the default timeout for graceful shutdown
	DefaultShutdownTimeout = 10 * time.Second

	// DefaultCommandTimeout bounds short heroku CLI invocations (version, whoami, apps)
	DefaultCommandTimeout = 30 * time.Second

	// DefaultStableAfter is how long a session must stay up before its exit
	// no longer counts toward the reconnect limit
	DefaultStableAfter = time.Minute

	// DefaultExportDuration is how long `export` collects before writing
	DefaultExportDuration = 10 * time.Second

	// TUIRefreshInterval is how often the TUI polls the manager and engine
	TUIRefreshInterval = 250 * time.Millisecond
)

// Reconnection policy
const (
	// MaxReconnectAttempts is the number of respawns allowed before giving up
	MaxReconnectAttempts = 5

	// InitialReconnectDelay is the wait before the first respawn
	InitialReconnectDelay = time.Second

	// MaxReconnectDelay is the wait before the last respawn
	MaxReconnectDelay = 16 * time.Second
)

// Log configuration
const (
	// DefaultLogLimit is the default number of log lines to return
	DefaultLogLimit = 100

	// MaxLogLines is the maximum number of log lines that can be requested
	MaxLogLines = 10000
)

// Buffer sizes
const (
	// DefaultLogBufferSize is the default number of records kept in memory
	DefaultLogBufferSize = 10000

	// DefaultSubscriptionBuffer is the default size for subscription buffers
	DefaultSubscriptionBuffer = 100

	// ScannerBufferSize is the read buffer size for log lines
	ScannerBufferSize = 64 * 1024 // 64KB

	// ScannerMaxBufferSize is the longest log line kept; longer lines are skipped
	ScannerMaxBufferSize = 1024 * 1024 // 1MB
)

// Export
const (
	// ExportFilePrefix and ExportTimeLayout make up heroku_logs_YYYYMMDD_HHMMSS.log
	ExportFilePrefix = "heroku_logs_"
	ExportTimeLayout = "20060102_150405"
	ExportFileSuffix = ".log"
)
