package logs

import (
	"log/slog"

	"github.com/charliek/herolog/internal/constants"
	"github.com/charliek/herolog/internal/domain"
)

// ManagerConfig holds configuration for the log manager
type ManagerConfig struct {
	BufferSize         int // records kept in the ring buffer
	SubscriptionBuffer int // channel size per live subscriber
	Logger             *slog.Logger
}

// DefaultManagerConfig returns the default configuration
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		BufferSize:         constants.DefaultLogBufferSize,
		SubscriptionBuffer: constants.DefaultSubscriptionBuffer,
	}
}

// Manager stores records in a bounded buffer and broadcasts each push to live subscribers
type Manager struct {
	buffer        *RingBuffer
	subscriptions *SubscriptionManager
}

// NewManager creates a new log manager
func NewManager(config ManagerConfig) *Manager {
	defaults := DefaultManagerConfig()
	if config.BufferSize <= 0 {
		config.BufferSize = defaults.BufferSize
	}
	if config.SubscriptionBuffer <= 0 {
		config.SubscriptionBuffer = defaults.SubscriptionBuffer
	}

	return &Manager{
		buffer:        NewRingBuffer(config.BufferSize),
		subscriptions: NewSubscriptionManager(config.SubscriptionBuffer, config.Logger),
	}
}

// Push stores record and hands it to subscribers
func (m *Manager) Push(record domain.LogRecord) {
	m.buffer.Push(record)
	m.subscriptions.Broadcast(record)
}

// Snapshot returns a detached copy of the buffer, oldest first
func (m *Manager) Snapshot() []domain.LogRecord {
	return m.buffer.Snapshot()
}

// ReadLast returns up to n of the newest records
func (m *Manager) ReadLast(n int) []domain.LogRecord {
	return m.buffer.ReadLast(n)
}

// Len returns the number of buffered records
func (m *Manager) Len() int {
	return m.buffer.Len()
}

// Clear drops all buffered records. Subscribers are kept.
func (m *Manager) Clear() {
	m.buffer.Clear()
}

// Subscribe creates a live subscription for records matching predicates under mode
func (m *Manager) Subscribe(predicates []Predicate, mode Mode) (string, <-chan domain.LogRecord) {
	return m.subscriptions.Subscribe(predicates, mode)
}

// Unsubscribe removes a subscription
func (m *Manager) Unsubscribe(id string) {
	m.subscriptions.Unsubscribe(id)
}

// Stats returns statistics about the log manager
func (m *Manager) Stats() domain.LogStats {
	return domain.LogStats{
		TotalEntries: m.buffer.Len(),
		BufferSize:   m.buffer.Capacity(),
		Subscribers:  m.subscriptions.Count(),
	}
}

// Close closes all subscriptions
func (m *Manager) Close() {
	m.subscriptions.Close()
}
