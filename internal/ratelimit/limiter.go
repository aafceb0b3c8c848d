package ratelimit

import (
	"math"
	"sync"
	"time"
)

// Window is the sliding admission window
const Window = 60 * time.Second

// Store holds per-key timestamp history. The in-process map is the default;
// multi-instance deployments swap in a shared implementation. The limiter
// serializes access per key, so implementations need no internal locking
// beyond their own storage safety.
type Store interface {
	// Timestamps returns the recorded history for a key.
	Timestamps(key string) []time.Time
	// Put replaces the history for a key.
	Put(key string, history []time.Time)
}

// MemoryStore is the default in-process Store
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string][]time.Time
}

// NewMemoryStore creates an empty in-process store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string][]time.Time)}
}

func (s *MemoryStore) Timestamps(key string) []time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entries[key]
}

func (s *MemoryStore) Put(key string, history []time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(history) == 0 {
		delete(s.entries, key)
		return
	}
	s.entries[key] = history
}

// Result reports the outcome of an admission check
type Result struct {
	Allowed   bool
	Remaining int
	// RetryAfter is the suggested wait on denial, rounded up to whole
	// seconds and capped at the window length.
	RetryAfter time.Duration
	// Limited is false when the key has no limit; observability fields are
	// meaningless in that case.
	Limited bool
}

// Limiter is a sliding-window admission check keyed by credential identity
type Limiter struct {
	store Store
	now   func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewLimiter creates a limiter over the given store
func NewLimiter(store Store) *Limiter {
	return &Limiter{
		store: store,
		now:   time.Now,
		locks: make(map[string]*sync.Mutex),
	}
}

// keyLock serializes checks per key. Different keys never contend.
func (l *Limiter) keyLock(key string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	lock, ok := l.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		l.locks[key] = lock
	}
	return lock
}

// Check admits or denies one request for the key. A non-positive limit
// always admits. The check never blocks; a denied call fails immediately.
func (l *Limiter) Check(key string, limit int) Result {
	if limit <= 0 {
		return Result{Allowed: true}
	}

	lock := l.keyLock(key)
	lock.Lock()
	defer lock.Unlock()

	now := l.now()
	cutoff := now.Add(-Window)

	history := l.store.Timestamps(key)
	live := history[:0:0]
	for _, t := range history {
		if t.After(cutoff) {
			live = append(live, t)
		}
	}

	if len(live) >= limit {
		l.store.Put(key, live)
		reset := live[0].Add(Window).Sub(now)
		retry := time.Duration(math.Ceil(reset.Seconds())) * time.Second
		if retry > Window {
			retry = Window
		}
		return Result{Allowed: false, Remaining: 0, RetryAfter: retry, Limited: true}
	}

	live = append(live, now)
	l.store.Put(key, live)
	return Result{Allowed: true, Remaining: limit - len(live), Limited: true}
}
