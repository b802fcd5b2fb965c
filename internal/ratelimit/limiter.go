package ratelimit

import (
	"fmt"
	"sync"
	"time"
)

// Decision is the outcome of a single rate-limit check. A rejected request is
// a policy outcome, not an error; callers must propagate RetryAfter and the
// header values unchanged.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration
}

// Limiter is a fixed-window request counter keyed by client identifier.
//
// Fixed window means a burst can straddle a window boundary: up to limit
// requests just before reset and limit more just after. That trade-off buys
// O(1) memory and CPU per check and matches the behavior this portal shipped
// with.
type Limiter struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	store  Store
	now    func() time.Time
}

type Option func(*Limiter)

func WithStore(store Store) Option {
	return func(l *Limiter) { l.store = store }
}

func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

func New(limit int, window time.Duration, opts ...Option) (*Limiter, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("rate limiter: limit must be positive, got %d", limit)
	}
	if window <= 0 {
		return nil, fmt.Errorf("rate limiter: window must be positive, got %s", window)
	}

	l := &Limiter{
		limit:  limit,
		window: window,
		store:  NewMemoryStore(),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(l)
	}

	return l, nil
}

func (l *Limiter) Limit() int            { return l.limit }
func (l *Limiter) Window() time.Duration { return l.window }

// Check consumes one request slot for the identifier. The read-increment-write
// cycle runs under the limiter lock so concurrent requests for the same
// identifier cannot lose updates.
func (l *Limiter) Check(identifier string) Decision {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()

	entry, ok := l.store.Get(identifier)
	if !ok || !now.Before(entry.ResetAt) {
		// First request, or the previous window has passed: start a
		// fresh window rather than incrementing a stale count.
		entry = Entry{Count: 1, ResetAt: now.Add(l.window)}
		l.store.Set(identifier, entry)
		return Decision{
			Allowed:   true,
			Limit:     l.limit,
			Remaining: l.limit - 1,
			ResetAt:   entry.ResetAt,
		}
	}

	if entry.Count >= l.limit {
		retryAfter := entry.ResetAt.Sub(now)
		if retryAfter < time.Second {
			retryAfter = time.Second
		}
		return Decision{
			Allowed:    false,
			Limit:      l.limit,
			Remaining:  0,
			ResetAt:    entry.ResetAt,
			RetryAfter: retryAfter,
		}
	}

	entry.Count++
	l.store.Set(identifier, entry)
	return Decision{
		Allowed:   true,
		Limit:     l.limit,
		Remaining: l.limit - entry.Count,
		ResetAt:   entry.ResetAt,
	}
}

// Reset drops the tracked entry for one identifier. Administrative use.
func (l *Limiter) Reset(identifier string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.store.Delete(identifier)
}

// Clear drops all tracked entries.
func (l *Limiter) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, key := range l.store.Keys() {
		l.store.Delete(key)
	}
}

// Sweep deletes entries whose window has already passed and reports how many
// were removed.
func (l *Limiter) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	removed := 0
	for _, key := range l.store.Keys() {
		entry, ok := l.store.Get(key)
		if !ok {
			continue
		}
		if !now.Before(entry.ResetAt) {
			l.store.Delete(key)
			removed++
		}
	}

	return removed
}

const DefaultSweepInterval = 5 * time.Minute

// StartSweeper runs Sweep on a ticker for the lifetime of the process,
// independent of request traffic, so idle periods still reclaim memory.
// The returned stop func halts the goroutine.
func (l *Limiter) StartSweeper(interval time.Duration) (stop func()) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}

	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				l.Sweep()
			case <-done:
				return
			}
		}
	}()

	var once sync.Once
	return func() { once.Do(func() { close(done) }) }
}
