package quest

import (
	"sort"
	"sync"
	"time"
)

// Token identifies one scheduled expiry. The zero Token is never issued.
type Token uint64

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// Now returns time.Now().
func (SystemClock) Now() time.Time { return time.Now() }

// Scheduler runs fire(questID) once at fireAt unless the token is cancelled first.
type Scheduler interface {
	Schedule(questID string, fireAt time.Time, fire func(questID string)) Token
	Cancel(token Token) bool
	Pending() int
}

// TimerScheduler backs each entry with a time.AfterFunc timer.
type TimerScheduler struct {
	clock Clock

	mu     sync.Mutex
	next   Token
	timers map[Token]*time.Timer
}

// NewTimerScheduler creates a scheduler measuring delays against clock.
func NewTimerScheduler(clock Clock) *TimerScheduler {
	if clock == nil {
		clock = SystemClock{}
	}
	return &TimerScheduler{clock: clock, timers: make(map[Token]*time.Timer)}
}

// Schedule registers a timer and returns its token.
func (s *TimerScheduler) Schedule(questID string, fireAt time.Time, fire func(questID string)) Token {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.next++
	tok := s.next
	delay := fireAt.Sub(s.clock.Now())
	if delay < 0 {
		delay = 0
	}
	s.timers[tok] = time.AfterFunc(delay, func() {
		s.mu.Lock()
		_, live := s.timers[tok]
		delete(s.timers, tok)
		s.mu.Unlock()
		if live {
			fire(questID)
		}
	})
	return tok
}

// Cancel stops the timer for token. It reports whether the entry was still live.
func (s *TimerScheduler) Cancel(token Token) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.timers[token]
	if !ok {
		return false
	}
	t.Stop()
	delete(s.timers, token)
	return true
}

// Pending returns the number of live timers.
func (s *TimerScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// ManualScheduler is a deterministic clock and scheduler. Time only moves
// when Advance is called; due entries fire in fireAt order on the caller's goroutine.
type ManualScheduler struct {
	mu      sync.Mutex
	now     time.Time
	next    Token
	entries map[Token]*manualEntry
}

type manualEntry struct {
	token   Token
	questID string
	fireAt  time.Time
	fire    func(string)
}

// NewManualScheduler starts the fake clock at start.
func NewManualScheduler(start time.Time) *ManualScheduler {
	return &ManualScheduler{now: start, entries: make(map[Token]*manualEntry)}
}

// Now returns the fake current time.
func (s *ManualScheduler) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

// Schedule registers an entry.
func (s *ManualScheduler) Schedule(questID string, fireAt time.Time, fire func(questID string)) Token {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	s.entries[s.next] = &manualEntry{token: s.next, questID: questID, fireAt: fireAt, fire: fire}
	return s.next
}

// Cancel removes the entry for token.
func (s *ManualScheduler) Cancel(token Token) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[token]; !ok {
		return false
	}
	delete(s.entries, token)
	return true
}

// Pending returns the number of entries not yet fired or cancelled.
func (s *ManualScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Advance moves the clock forward by d, firing every entry that falls due.
// Entries scheduled by a firing callback are honoured if they are due too.
func (s *ManualScheduler) Advance(d time.Duration) {
	s.mu.Lock()
	target := s.now.Add(d)
	s.mu.Unlock()

	for {
		s.mu.Lock()
		due := s.dueLocked(target)
		if due == nil {
			s.now = target
			s.mu.Unlock()
			return
		}
		delete(s.entries, due.token)
		if due.fireAt.After(s.now) {
			s.now = due.fireAt
		}
		s.mu.Unlock()

		due.fire(due.questID)
	}
}

func (s *ManualScheduler) dueLocked(target time.Time) *manualEntry {
	var due []*manualEntry
	for _, e := range s.entries {
		if !e.fireAt.After(target) {
			due = append(due, e)
		}
	}
	if len(due) == 0 {
		return nil
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].fireAt.Equal(due[j].fireAt) {
			return due[i].token < due[j].token
		}
		return due[i].fireAt.Before(due[j].fireAt)
	})
	return due[0]
}
