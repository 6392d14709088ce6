// Package retry provides backoff policies shared by the HTTP client and the
// report scheduler.
package retry

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"
)

// Policy decides whether a failed attempt is retried and how long to wait.
// attempt is 1 for the first retry.
type Policy interface {
	Next(attempt int) (time.Duration, bool)
}

// None never retries.
type None struct{}

// Next implements Policy.
func (None) Next(int) (time.Duration, bool) { return 0, false }

// Exponential retries up to MaxRetries times with full-jitter exponential backoff:
// random(0, min(MaxDelay, BaseDelay * 2^(attempt-1))), floored at 100ms.
type Exponential struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration

	// Rand returns a value in [0,1). Nil uses math/rand.
	Rand func() float64
}

// NewExponential returns an Exponential policy with the given retry count and
// the default 1s base / 30s cap.
func NewExponential(maxRetries int) *Exponential {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &Exponential{
		MaxRetries: maxRetries,
		BaseDelay:  1 * time.Second,
		MaxDelay:   30 * time.Second,
	}
}

// Next implements Policy.
func (e *Exponential) Next(attempt int) (time.Duration, bool) {
	if attempt < 1 || attempt > e.MaxRetries {
		return 0, false
	}
	return e.delay(attempt), true
}

func (e *Exponential) delay(attempt int) time.Duration {
	expDelay := float64(e.BaseDelay) * math.Pow(2, float64(attempt-1))
	if e.MaxDelay > 0 && expDelay > float64(e.MaxDelay) {
		expDelay = float64(e.MaxDelay)
	}

	r := rand.Float64
	if e.Rand != nil {
		r = e.Rand
	}
	jittered := time.Duration(r() * expDelay)

	if jittered < 100*time.Millisecond {
		jittered = 100 * time.Millisecond
	}
	return jittered
}

// Sleep waits for d or until ctx is done, returning ctx.Err() in the latter case.
func Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Do calls fn until it succeeds or the policy gives up. The last error is returned.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	if p == nil {
		p = None{}
	}
	var err error
	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			wait, ok := p.Next(attempt)
			if !ok {
				return err
			}
			if sleepErr := Sleep(ctx, wait); sleepErr != nil {
				return err
			}
		}
		if err = fn(ctx); err == nil {
			return nil
		}
		var perm *permanentError
		if errors.As(err, &perm) {
			return perm.err
		}
		if ctx.Err() != nil {
			return err
		}
	}
}

type permanentError struct{ err error }

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Permanent marks err as not worth retrying; Do returns it unwrapped at once.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}
