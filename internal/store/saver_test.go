package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gatedStore blocks every Set until release is closed and records what it wrote.
type gatedStore struct {
	*MemoryStore
	release chan struct{}

	mu     sync.Mutex
	writes []string
	fail   error
}

func newGatedStore() *gatedStore {
	return &gatedStore{MemoryStore: NewMemoryStore(), release: make(chan struct{})}
}

func (s *gatedStore) Set(ctx context.Context, key string, data []byte) error {
	<-s.release
	s.mu.Lock()
	s.writes = append(s.writes, key+"="+string(data))
	fail := s.fail
	s.mu.Unlock()
	if fail != nil {
		return fail
	}
	return s.MemoryStore.Set(ctx, key, data)
}

func (s *gatedStore) Writes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.writes...)
}

func TestSaverLatestWins(t *testing.T) {
	st := newGatedStore()
	s := NewSaver(st, 0, time.Second)
	defer s.Close()

	require.NoError(t, s.Submit("slot", []byte("1")))
	// Give the worker time to pick up the first write and block on the gate.
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, s.Submit("slot", []byte("2")))
	require.NoError(t, s.Submit("slot", []byte("3")))
	close(st.release)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Flush(ctx))

	writes := st.Writes()
	assert.NotContains(t, writes, "slot=2", "superseded value must not be written")
	assert.Equal(t, "slot=3", writes[len(writes)-1])

	got, _, _ := st.Get(ctx, "slot")
	assert.Equal(t, "3", string(got))
}

func TestSaverQueueFull(t *testing.T) {
	st := newGatedStore()
	s := NewSaver(st, 1, time.Second)

	require.NoError(t, s.Submit("a", []byte("1")))
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, s.Submit("b", []byte("1")))
	assert.ErrorIs(t, s.Submit("c", []byte("1")), ErrSaverFull)
	// Replacing a pending key is always allowed.
	assert.NoError(t, s.Submit("b", []byte("2")))

	close(st.release)
	require.NoError(t, s.Close())
	assert.Equal(t, int64(2), s.Written())
}

func TestSaverReportsErrors(t *testing.T) {
	st := newGatedStore()
	st.fail = errors.New("disk full")
	close(st.release)
	s := NewSaver(st, 0, time.Second)
	defer s.Close()

	require.NoError(t, s.Submit("slot", []byte("x")))
	err := s.Flush(context.Background())
	assert.EqualError(t, err, "disk full")

	// The error is reported once.
	assert.NoError(t, s.Flush(context.Background()))
}

func TestSaverCloseDrains(t *testing.T) {
	st := newGatedStore()
	close(st.release)
	s := NewSaver(st, 0, time.Second)

	require.NoError(t, s.Submit("a", []byte("1")))
	require.NoError(t, s.Submit("b", []byte("2")))
	require.NoError(t, s.Close())

	got, found, _ := st.Get(context.Background(), "b")
	assert.True(t, found)
	assert.Equal(t, "2", string(got))

	assert.ErrorIs(t, s.Submit("c", nil), ErrClosed)
	assert.ErrorIs(t, s.Flush(context.Background()), ErrClosed)
	assert.NoError(t, s.Close(), "second Close is a no-op")
}

func TestSaverFlushHonoursContext(t *testing.T) {
	st := newGatedStore()
	s := NewSaver(st, 0, time.Second)

	require.NoError(t, s.Submit("slot", []byte("1")))
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, s.Flush(ctx), context.DeadlineExceeded)

	close(st.release)
	require.NoError(t, s.Close())
}
