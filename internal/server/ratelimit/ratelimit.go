// Package ratelimit tracks failed credential attempts per identity within a
// fixed window. It is consulted by the login path before any password check:
// once an identity exhausts its attempt budget, further attempts are blocked
// until the window elapses.
//
// The state is sharded by identity key so that unrelated users' logins never
// contend on one lock.
package ratelimit

import (
	"hash/fnv"
	"sync"
	"time"
)

const shardCount = 32

type entry struct {
	count       int
	windowStart time.Time
}

type shard struct {
	mu      sync.Mutex
	entries map[string]entry
}

// Limiter counts failed attempts per identity key.
type Limiter struct {
	max    int
	window time.Duration
	shards [shardCount]shard

	// now is a test seam.
	now func() time.Time
}

// New returns a Limiter that blocks an identity after max failures within
// window.
func New(max int, window time.Duration) *Limiter {
	l := &Limiter{max: max, window: window, now: time.Now}
	for i := range l.shards {
		l.shards[i].entries = make(map[string]entry)
	}
	return l
}

func (l *Limiter) shardFor(key string) *shard {
	h := fnv.New32a()
	h.Write([]byte(key))
	return &l.shards[h.Sum32()%shardCount]
}

// Blocked reports whether the identity has exhausted its attempt budget in
// the current window. An elapsed window resets the counter.
func (l *Limiter) Blocked(key string) bool {
	s := l.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return false
	}
	if l.now().Sub(e.windowStart) > l.window {
		delete(s.entries, key)
		return false
	}
	return e.count >= l.max
}

// Failure records one failed attempt for the identity. Two concurrent
// failures are both counted.
func (l *Limiter) Failure(key string) {
	s := l.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	now := l.now()
	e, ok := s.entries[key]
	if !ok || now.Sub(e.windowStart) > l.window {
		s.entries[key] = entry{count: 1, windowStart: now}
		return
	}
	e.count++
	s.entries[key] = e
}

// Reset clears the identity's counter, e.g. after a successful login.
func (l *Limiter) Reset(key string) {
	s := l.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
}

// Sweep drops entries whose window has elapsed. Called periodically so the
// map does not grow with one entry per identity ever attempted.
func (l *Limiter) Sweep() {
	now := l.now()
	for i := range l.shards {
		s := &l.shards[i]
		s.mu.Lock()
		for k, e := range s.entries {
			if now.Sub(e.windowStart) > l.window {
				delete(s.entries, k)
			}
		}
		s.mu.Unlock()
	}
}
