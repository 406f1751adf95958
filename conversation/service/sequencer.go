package service

import (
	"sync"
	"time"
)

// Stored timestamps keep microseconds; postgres drops anything finer.
const tick = time.Microsecond

// pruneAfter is how many senders are tracked before stale entries are swept
const pruneAfter = 1024

// Sequencer serializes appends per key and hands out per-sender timestamps
// that strictly increase, even when the wall clock stalls or steps back.
type Sequencer struct {
	mu    sync.Mutex
	locks map[string]*keyLock
	last  map[string]time.Time
	now   func() time.Time
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

// NewSequencer creates a sequencer reading time from now
func NewSequencer(now func() time.Time) *Sequencer {
	if now == nil {
		now = time.Now
	}
	return &Sequencer{
		locks: make(map[string]*keyLock),
		last:  make(map[string]time.Time),
		now:   now,
	}
}

// Lock blocks until key is free and returns the matching unlock
func (s *Sequencer) Lock(key string) func() {
	s.mu.Lock()
	l, ok := s.locks[key]
	if !ok {
		l = &keyLock{}
		s.locks[key] = l
	}
	l.refs++
	s.mu.Unlock()

	l.mu.Lock()

	return func() {
		l.mu.Unlock()

		s.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, key)
		}
		s.mu.Unlock()
	}
}

// Next returns sender's next timestamp in UTC
func (s *Sequencer) Next(sender string) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC().Truncate(tick)
	t := now
	if last, ok := s.last[sender]; ok && !t.After(last) {
		t = last.Add(tick)
	}
	s.last[sender] = t

	if len(s.last) > pruneAfter {
		s.pruneLocked(now)
	}
	return t
}

// pruneLocked forgets senders whose last stamp is well behind the clock;
// their next stamp comes from the clock anyway
func (s *Sequencer) pruneLocked(now time.Time) {
	horizon := now.Add(-time.Minute)
	for sender, last := range s.last {
		if last.Before(horizon) {
			delete(s.last, sender)
		}
	}
}

// Held reports how many keys are currently locked or awaited
func (s *Sequencer) Held() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.locks)
}
