// Package retry wraps fallible storage calls with exponential backoff.
package retry

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/LerianStudio/lib-uncommons/v2/uncommons/backoff"
)

// Policy controls the retry loop. The zero value is unusable; start from
// Default.
type Policy struct {
	MaxAttempts    int
	InitialDelay   time.Duration
	MaxDelay       time.Duration
	JitterFraction float64
}

// Default is the policy used for storage reads and writes: five attempts,
// delays 1s, 2s, 4s, 8s capped at 30s, each spread by ±10% jitter.
func Default() Policy {
	return Policy{
		MaxAttempts:    5,
		InitialDelay:   time.Second,
		MaxDelay:       30 * time.Second,
		JitterFraction: 0.10,
	}
}

// PersistenceError wraps a storage failure that survived every retry
// attempt. Callers keep the entered data in memory and surface a warning
// instead of losing it.
type PersistenceError struct {
	Op       string
	Attempts int
	Err      error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence: %s failed after %d attempts: %v", e.Op, e.Attempts, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// delay computes the wait before retrying after the given 0-based attempt.
func (p Policy) delay(attempt int) time.Duration {
	d := backoff.Exponential(p.InitialDelay, attempt)
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	if p.JitterFraction > 0 {
		span := float64(d) * p.JitterFraction
		d += time.Duration((rand.Float64()*2 - 1) * span)
	}
	return d
}

// Do runs fn up to MaxAttempts times, sleeping between attempts and
// honoring context cancellation during the sleep. The final failure is
// returned as a *PersistenceError carrying op.
func (p Policy) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	var last error
	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		if attempt > 0 {
			if err := backoff.SleepWithContext(ctx, p.delay(attempt-1)); err != nil {
				return &PersistenceError{Op: op, Attempts: attempt, Err: err}
			}
		}
		last = fn(ctx)
		if last == nil {
			return nil
		}
	}
	return &PersistenceError{Op: op, Attempts: p.MaxAttempts, Err: last}
}
