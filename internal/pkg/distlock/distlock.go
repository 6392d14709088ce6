package distlock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/siendomiguel/reports-stats-bitfinanzas/internal/pkg/logger"
)

var (
	// ErrLocked is returned by TryRun when another holder owns the lock.
	ErrLocked = errors.New("distlock: lock held by another owner")
	// ErrNotOwner is returned when releasing or refreshing a lock that has
	// expired or was taken over.
	ErrNotOwner = errors.New("distlock: lock no longer owned")
)

// pollInterval is how often Run retries a contended lock.
const pollInterval = 50 * time.Millisecond

// DistLock is the interface for mutual exclusion around store writes and
// report runs. Implementations must be safe for use from a single goroutine;
// concurrent use across goroutines requires separate lock instances.
type DistLock interface {
	// Acquire tries to acquire the lock. Returns true if successful.
	Acquire(ctx context.Context) (bool, error)
	// Release releases the lock if we still own it.
	Release(ctx context.Context) error
}

// Provider hands out fresh lock instances for a key.
type Provider interface {
	NewLock(key string, ttl time.Duration) DistLock
}

// NewProvider returns a Redis-backed provider when redisClient is non-nil,
// otherwise an in-process one.
func NewProvider(redisClient *redis.Client) Provider {
	if redisClient != nil {
		return &RedisProvider{client: redisClient}
	}
	return NewLocalProvider()
}

// Run blocks until the lock is acquired (or ctx ends), runs fn, then releases.
func Run(ctx context.Context, l DistLock, fn func(ctx context.Context) error) error {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		ok, err := l.Acquire(ctx)
		if err != nil {
			return err
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return runAndRelease(ctx, l, fn)
}

// TryRun runs fn only if the lock is free right now; otherwise ErrLocked.
func TryRun(ctx context.Context, l DistLock, fn func(ctx context.Context) error) error {
	ok, err := l.Acquire(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return ErrLocked
	}
	return runAndRelease(ctx, l, fn)
}

func runAndRelease(ctx context.Context, l DistLock, fn func(ctx context.Context) error) error {
	stop := keepAlive(ctx, l)
	fnErr := fn(ctx)
	stop()

	// release with a fresh context so a cancelled caller still frees the key
	relCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	err := l.Release(relCtx)
	switch {
	case errors.Is(err, ErrNotOwner):
		logger.Warn("lock expired before release", "error", err)
	case err != nil && fnErr == nil:
		return fmt.Errorf("release lock: %w", err)
	}
	return fnErr
}

// refresher is implemented by locks that expire on their own.
type refresher interface {
	TTL() time.Duration
	Refresh(ctx context.Context) error
}

// keepAlive refreshes an expiring lock every half TTL until the returned
// stop func is called. A report run can outlast the lock TTL.
func keepAlive(ctx context.Context, l DistLock) (stop func()) {
	r, ok := l.(refresher)
	if !ok || r.TTL() <= 0 {
		return func() {}
	}

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(r.TTL() / 2)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := r.Refresh(ctx); err != nil {
					logger.Warn("lock refresh failed", "error", err)
					return
				}
			}
		}
	}()
	return func() {
		close(done)
		wg.Wait()
	}
}

// =============================================================================
// In-process lock (used when Redis is not configured)
// =============================================================================

// LocalProvider shares one semaphore per key across every lock it creates.
type LocalProvider struct {
	mu   sync.Mutex
	sems map[string]chan struct{}
}

// NewLocalProvider creates an empty in-process provider.
func NewLocalProvider() *LocalProvider {
	return &LocalProvider{sems: make(map[string]chan struct{})}
}

// NewLock returns a lock on key. ttl is ignored: the holder lives in-process.
func (p *LocalProvider) NewLock(key string, _ time.Duration) DistLock {
	p.mu.Lock()
	defer p.mu.Unlock()
	sem, ok := p.sems[key]
	if !ok {
		sem = make(chan struct{}, 1)
		p.sems[key] = sem
	}
	return &LocalLock{sem: sem}
}

// LocalLock implements DistLock with a one-slot channel.
type LocalLock struct {
	sem  chan struct{}
	held bool
}

// Acquire never blocks.
func (l *LocalLock) Acquire(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if l.held {
		return true, nil
	}
	select {
	case l.sem <- struct{}{}:
		l.held = true
		return true, nil
	default:
		return false, nil
	}
}

// Release frees the slot if this instance holds it.
func (l *LocalLock) Release(context.Context) error {
	if !l.held {
		return nil
	}
	l.held = false
	<-l.sem
	return nil
}
