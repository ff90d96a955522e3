package logs

import (
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/charliek/herolog/internal/constants"
	"github.com/charliek/herolog/internal/domain"
)

var subscriptionIDCounter atomic.Uint64

// Subscription receives newly pushed records that pass its predicates
type Subscription struct {
	id         string
	ch         chan domain.LogRecord
	predicates []Predicate
	mode       Mode
	closed     atomic.Bool
	dropped    atomic.Uint64
}

func newSubscription(predicates []Predicate, mode Mode, bufferSize int) *Subscription {
	id := subscriptionIDCounter.Add(1)
	return &Subscription{
		id:         "sub-" + strconv.FormatUint(id, 10),
		ch:         make(chan domain.LogRecord, bufferSize),
		predicates: append([]Predicate(nil), predicates...),
		mode:       mode,
	}
}

// ID returns the subscription ID
func (s *Subscription) ID() string {
	return s.id
}

// Channel returns the channel for receiving records
func (s *Subscription) Channel() <-chan domain.LogRecord {
	return s.ch
}

// Dropped returns how many matching records were discarded because the channel was full
func (s *Subscription) Dropped() uint64 {
	return s.dropped.Load()
}

// Send delivers record if it matches. It never blocks; a full channel drops
// the record and returns false.
func (s *Subscription) Send(record domain.LogRecord) bool {
	if s.closed.Load() {
		return false
	}
	if !MatchesAll(record, s.predicates, s.mode) {
		return true
	}

	select {
	case s.ch <- record:
		return true
	default:
		s.dropped.Add(1)
		return false
	}
}

// Close closes the subscription channel
func (s *Subscription) Close() {
	if s.closed.CompareAndSwap(false, true) {
		close(s.ch)
	}
}

// SubscriptionManager fans pushed records out to live subscribers
type SubscriptionManager struct {
	mu            sync.RWMutex
	subscriptions map[string]*Subscription
	bufferSize    int
	logger        *slog.Logger
}

// NewSubscriptionManager creates a subscription manager whose channels hold bufferSize records
func NewSubscriptionManager(bufferSize int, logger *slog.Logger) *SubscriptionManager {
	if bufferSize <= 0 {
		bufferSize = constants.DefaultSubscriptionBuffer
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SubscriptionManager{
		subscriptions: make(map[string]*Subscription),
		bufferSize:    bufferSize,
		logger:        logger,
	}
}

// Subscribe registers a subscriber for records matching predicates under mode
func (m *SubscriptionManager) Subscribe(predicates []Predicate, mode Mode) (string, <-chan domain.LogRecord) {
	sub := newSubscription(predicates, mode, m.bufferSize)

	m.mu.Lock()
	m.subscriptions[sub.id] = sub
	m.mu.Unlock()

	return sub.id, sub.ch
}

// Unsubscribe removes a subscription and closes its channel
func (m *SubscriptionManager) Unsubscribe(id string) {
	m.mu.Lock()
	sub, ok := m.subscriptions[id]
	delete(m.subscriptions, id)
	m.mu.Unlock()

	if ok {
		sub.Close()
	}
}

// Broadcast sends record to every subscriber without blocking
func (m *SubscriptionManager) Broadcast(record domain.LogRecord) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, sub := range m.subscriptions {
		if !sub.Send(record) {
			m.logger.Debug("subscriber channel full, dropped record",
				"subscription", sub.id, "dyno", record.Dyno, "dropped", sub.Dropped())
		}
	}
}

// Count returns the number of active subscriptions
func (m *SubscriptionManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subscriptions)
}

// Close closes all subscriptions
func (m *SubscriptionManager) Close() {
	m.mu.Lock()
	subs := m.subscriptions
	m.subscriptions = make(map[string]*Subscription)
	m.mu.Unlock()

	for _, sub := range subs {
		sub.Close()
	}
}
