package stream

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/charliek/herolog/internal/constants"
)

// NewBackoffSchedule returns the reconnect delay schedule: 1s, 2s, 4s, 8s, 16s.
// It never gives up on its own; the manager enforces the attempt limit.
func NewBackoffSchedule() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = constants.InitialReconnectDelay
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = constants.MaxReconnectDelay
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// Delay returns the wait before reconnect attempt n (1-indexed)
func Delay(n int) time.Duration {
	if n < 1 {
		return 0
	}
	b := NewBackoffSchedule()
	var d time.Duration
	for i := 0; i < n; i++ {
		d = b.NextBackOff()
	}
	return d
}

// Sleeper waits for d or until ctx is done, returning ctx.Err() in the latter case
type Sleeper func(ctx context.Context, d time.Duration) error

// SleepContext is the default Sleeper
func SleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
