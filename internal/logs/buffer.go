// Package logs holds parsed log records in memory and decides which of them are visible.
package logs

import (
	"sync"

	"github.com/charliek/herolog/internal/constants"
	"github.com/charliek/herolog/internal/domain"
)

// RingBuffer is a bounded FIFO of log records.
// Once full, each push evicts the oldest record.
type RingBuffer struct {
	mu       sync.RWMutex
	records  []domain.LogRecord
	head     int // next write position
	size     int
	capacity int
}

// NewRingBuffer creates a buffer holding at most capacity records.
// A non-positive capacity falls back to constants.DefaultLogBufferSize.
func NewRingBuffer(capacity int) *RingBuffer {
	if capacity <= 0 {
		capacity = constants.DefaultLogBufferSize
	}
	return &RingBuffer{
		records:  make([]domain.LogRecord, capacity),
		capacity: capacity,
	}
}

// Push appends a record, evicting the oldest one when the buffer is full
func (b *RingBuffer) Push(record domain.LogRecord) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.records[b.head] = record
	b.head = (b.head + 1) % b.capacity
	if b.size < b.capacity {
		b.size++
	}
}

// Snapshot returns a copy of every record, oldest first.
// The copy is detached; later pushes do not affect it.
func (b *RingBuffer) Snapshot() []domain.LogRecord {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastLocked(b.size)
}

// ReadLast returns up to n of the newest records, oldest first
func (b *RingBuffer) ReadLast(n int) []domain.LogRecord {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if n > b.size {
		n = b.size
	}
	return b.lastLocked(n)
}

func (b *RingBuffer) lastLocked(n int) []domain.LogRecord {
	if n <= 0 {
		return nil
	}

	out := make([]domain.LogRecord, n)
	start := (b.head - n + b.capacity) % b.capacity
	for i := range out {
		out[i] = b.records[(start+i)%b.capacity]
	}
	return out
}

// Len returns the number of records currently held
func (b *RingBuffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.size
}

// Capacity returns the maximum number of records
func (b *RingBuffer) Capacity() int {
	return b.capacity
}

// Clear drops every record
func (b *RingBuffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	clear(b.records)
	b.head = 0
	b.size = 0
}
