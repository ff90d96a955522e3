package logs

import (
	"sync"

	"github.com/charliek/herolog/internal/domain"
)

// Snapshotter provides the current buffered records, oldest first
type Snapshotter interface {
	Snapshot() []domain.LogRecord
}

// FilterStats summarizes how much of the buffer is visible
type FilterStats struct {
	Total      int  `json:"total"`
	Visible    int  `json:"visible"`
	Predicates int  `json:"predicates"`
	Mode       Mode `json:"mode"`
}

// Engine holds the active predicate set and combination mode.
// Visibility is recomputed from the source on every call, so changing
// predicates affects records that are already buffered.
type Engine struct {
	mu         sync.RWMutex
	source     Snapshotter
	predicates []Predicate
	mode       Mode
}

// NewEngine creates an engine over source with no predicates in ModeAll
func NewEngine(source Snapshotter) *Engine {
	return &Engine{source: source}
}

// AddPredicate parses spec and appends it to the active set
func (e *Engine) AddPredicate(spec string) error {
	p, err := ParsePredicate(spec)
	if err != nil {
		return err
	}
	e.Add(p)
	return nil
}

// Add appends p to the active set. Duplicates are kept.
func (e *Engine) Add(p Predicate) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.predicates = append(e.predicates, p)
}

// Remove deletes the predicate at index i, reporting whether it existed
func (e *Engine) Remove(i int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if i < 0 || i >= len(e.predicates) {
		return false
	}
	e.predicates = append(e.predicates[:i:i], e.predicates[i+1:]...)
	return true
}

// ClearPredicates empties the active set
func (e *Engine) ClearPredicates() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.predicates = nil
}

// SetMode sets how predicates combine
func (e *Engine) SetMode(m Mode) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.mode = m
}

// ToggleMode flips between ModeAll and ModeAny and returns the new mode
func (e *Engine) ToggleMode() Mode {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.mode = e.mode.Toggle()
	return e.mode
}

// Mode returns the current combination mode
func (e *Engine) Mode() Mode {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.mode
}

// Predicates returns a copy of the active set in insertion order
func (e *Engine) Predicates() []Predicate {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if len(e.predicates) == 0 {
		return nil
	}
	out := make([]Predicate, len(e.predicates))
	copy(out, e.predicates)
	return out
}

// VisibleRecords snapshots the source and applies the active predicates
func (e *Engine) VisibleRecords() []domain.LogRecord {
	predicates, mode := e.current()
	return Visible(e.source.Snapshot(), predicates, mode)
}

// Stats reports total and visible record counts for the current snapshot
func (e *Engine) Stats() FilterStats {
	predicates, mode := e.current()
	records := e.source.Snapshot()
	return FilterStats{
		Total:      len(records),
		Visible:    len(Visible(records, predicates, mode)),
		Predicates: len(predicates),
		Mode:       mode,
	}
}

func (e *Engine) current() ([]Predicate, Mode) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.predicates[:len(e.predicates):len(e.predicates)], e.mode
}
