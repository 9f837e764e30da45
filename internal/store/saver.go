package store

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lawnchairsociety/questkeeper/internal/logger"
)

// ErrSaverFull is returned by Submit when too many distinct keys are pending.
var ErrSaverFull = errors.New("store: saver queue full")

// Saver writes to a Store from a background goroutine. Submitting a key that
// is already pending replaces its data, so only the latest value is written.
type Saver struct {
	store      Store
	timeout    time.Duration
	maxPending int

	mu      sync.Mutex
	pending map[string][]byte
	order   []string
	lastErr error

	wake    chan struct{}
	flushes chan chan error
	quit    chan struct{}
	wg      sync.WaitGroup
	once    sync.Once
	closed  atomic.Bool

	written atomic.Int64
}

// NewSaver starts a saver over store. maxPending bounds the number of distinct
// pending keys; zero means 64. Each write gets timeout; zero means 10s.
func NewSaver(store Store, maxPending int, timeout time.Duration) *Saver {
	if maxPending <= 0 {
		maxPending = 64
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	s := &Saver{
		store:      store,
		timeout:    timeout,
		maxPending: maxPending,
		pending:    make(map[string][]byte),
		wake:       make(chan struct{}, 1),
		flushes:    make(chan chan error),
		quit:       make(chan struct{}),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s
}

// Submit queues data for key and returns without waiting for the write.
func (s *Saver) Submit(key string, data []byte) error {
	if s.closed.Load() {
		return ErrClosed
	}

	s.mu.Lock()
	if _, ok := s.pending[key]; !ok {
		if len(s.order) >= s.maxPending {
			s.mu.Unlock()
			return ErrSaverFull
		}
		s.order = append(s.order, key)
	}
	s.pending[key] = data
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
	return nil
}

// Flush waits until everything submitted before the call is written. It
// returns the first write error seen since the previous Flush.
func (s *Saver) Flush(ctx context.Context) error {
	if s.closed.Load() {
		return ErrClosed
	}
	done := make(chan error, 1)
	select {
	case s.flushes <- done:
	case <-s.quit:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Written returns the number of successful writes.
func (s *Saver) Written() int64 {
	return s.written.Load()
}

// Close writes whatever is pending and stops the worker. The underlying store
// is left open.
func (s *Saver) Close() error {
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.quit)
		s.wg.Wait()
	})
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

func (s *Saver) loop() {
	for {
		select {
		case <-s.wake:
			s.drain()
		case done := <-s.flushes:
			s.drain()
			s.mu.Lock()
			err := s.lastErr
			s.lastErr = nil
			s.mu.Unlock()
			done <- err
		case <-s.quit:
			s.drain()
			return
		}
	}
}

func (s *Saver) drain() {
	for {
		s.mu.Lock()
		if len(s.order) == 0 {
			s.mu.Unlock()
			return
		}
		key := s.order[0]
		s.order = s.order[1:]
		data := s.pending[key]
		delete(s.pending, key)
		s.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		err := s.store.Set(ctx, key, data)
		cancel()
		if err != nil {
			logger.Error("Background save failed", "key", key, "error", err)
			s.mu.Lock()
			if s.lastErr == nil {
				s.lastErr = err
			}
			s.mu.Unlock()
			continue
		}
		s.written.Add(1)
	}
}
