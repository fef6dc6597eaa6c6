package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Entry is the counter held for one key.
type Entry struct {
	Count   int
	ResetAt time.Time
}

// MemoryLimiter keeps counters in process memory. Expired entries are swept
// periodically so the table stays bounded by the number of active keys.
type MemoryLimiter struct {
	mu      sync.Mutex
	entries map[string]*Entry
	limit   int
	window  time.Duration
	now     func() time.Time

	stop chan struct{}
	once sync.Once
}

// NewMemoryLimiter allows limit requests per key per window. sweepEvery <= 0
// disables the background sweep.
func NewMemoryLimiter(limit int, window, sweepEvery time.Duration) *MemoryLimiter {
	l := &MemoryLimiter{
		entries: make(map[string]*Entry),
		limit:   limit,
		window:  window,
		now:     time.Now,
		stop:    make(chan struct{}),
	}
	if sweepEvery > 0 {
		go l.sweepLoop(sweepEvery)
	}
	return l
}

// Allow counts one request for key. A key without an entry, or whose window
// has passed, starts a new window with count 1.
func (l *MemoryLimiter) Allow(_ context.Context, key string) (Decision, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	e, ok := l.entries[key]
	if !ok || now.After(e.ResetAt) {
		e = &Entry{Count: 1, ResetAt: now.Add(l.window)}
		l.entries[key] = e
		return Decision{Allowed: true, Count: 1, Limit: l.limit, ResetAt: e.ResetAt}, nil
	}
	if e.Count >= l.limit {
		return Decision{Allowed: false, Count: e.Count, Limit: l.limit, ResetAt: e.ResetAt}, nil
	}
	e.Count++
	return Decision{Allowed: true, Count: e.Count, Limit: l.limit, ResetAt: e.ResetAt}, nil
}

// Peek returns the entry for key without counting.
func (l *MemoryLimiter) Peek(key string) (Entry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[key]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// Len returns the number of tracked keys.
func (l *MemoryLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Sweep drops entries whose window ended before now.
func (l *MemoryLimiter) Sweep(now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	removed := 0
	for key, e := range l.entries {
		if now.After(e.ResetAt) {
			delete(l.entries, key)
			removed++
		}
	}
	return removed
}

// Close stops the background sweep.
func (l *MemoryLimiter) Close() {
	l.once.Do(func() { close(l.stop) })
}

func (l *MemoryLimiter) sweepLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			l.Sweep(l.clock())
		}
	}
}

func (l *MemoryLimiter) clock() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.now()
}
