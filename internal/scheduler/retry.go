package scheduler

import (
	"context"
	"time"
)

// Clock abstracts time for the retry policy so tests can run without
// real sleeps.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// RetryPolicy bounds transient-failure retries per job and spaces them
// with exponential backoff. Quota exhaustion and credential failures do
// not consume this budget; only transient outcomes do.
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts per job, including
	// the first one.
	MaxAttempts int

	InitialDelay time.Duration
	MaxDelay     time.Duration

	clock Clock
}

// NewRetryPolicy creates a policy with the given total attempt budget.
func NewRetryPolicy(maxAttempts int, initial, max time.Duration) *RetryPolicy {
	return &RetryPolicy{
		MaxAttempts:  maxAttempts,
		InitialDelay: initial,
		MaxDelay:     max,
		clock:        realClock{},
	}
}

// WithClock replaces the clock, for tests.
func (p *RetryPolicy) WithClock(c Clock) *RetryPolicy {
	p.clock = c
	return p
}

// Exhausted reports whether the budget is spent after the given number
// of failed attempts.
func (p *RetryPolicy) Exhausted(failedAttempts int) bool {
	return failedAttempts >= p.MaxAttempts
}

// Delay returns the backoff before retry number n (1-based): initial
// delay doubled per retry, capped at MaxDelay.
func (p *RetryPolicy) Delay(n int) time.Duration {
	if n < 1 {
		n = 1
	}
	d := p.InitialDelay
	for i := 1; i < n; i++ {
		d *= 2
		if d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

// Wait sleeps the backoff for retry n, ending early on cancellation.
func (p *RetryPolicy) Wait(ctx context.Context, n int) error {
	return p.clock.Sleep(ctx, p.Delay(n))
}
