package asynchook

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/unkn0wn-root/asidecache"
)

type sink struct {
	asidecache.NopHooks
	mu     sync.Mutex
	events []string
	gate   chan struct{}
}

func (s *sink) add(e string) {
	if s.gate != nil {
		<-s.gate
	}
	s.mu.Lock()
	s.events = append(s.events, e)
	s.mu.Unlock()
}

func (s *sink) Hit(k string)                     { s.add("hit:" + k) }
func (s *sink) Miss(k string)                    { s.add("miss:" + k) }
func (s *sink) WriteRejected(k string, _ error)  { s.add("reject:" + k) }
func (s *sink) BatchFlushed(n int, _ error)      { s.add("flush") }
func (s *sink) ProducerFailed(k string, _ error) { s.add("producer:" + k) }

func (s *sink) snapshot() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.events...)
}

func TestDeliversInOrderWithOneWorker(t *testing.T) {
	s := &sink{}
	h := New(s, 1, 16)

	h.Hit("a")
	h.Miss("b")
	h.WriteRejected("c", errors.New("full"))
	h.BatchFlushed(3, nil)
	h.ProducerFailed("d", errors.New("boom"))
	h.Close()

	require.Equal(t, []string{"hit:a", "miss:b", "reject:c", "flush", "producer:d"}, s.snapshot())
	require.Zero(t, h.Dropped())
}

func TestDropsWhenQueueFull(t *testing.T) {
	s := &sink{gate: make(chan struct{})}
	h := New(s, 1, 1)

	h.Hit("1")
	// wait for the worker to pick up the first event and block on the gate
	require.Eventually(t, func() bool { return len(h.q) == 0 }, time.Second, time.Millisecond)
	h.Hit("2")
	h.Hit("3")
	require.Equal(t, uint64(1), h.Dropped())

	close(s.gate)
	h.Close()
	require.Equal(t, []string{"hit:1", "hit:2"}, s.snapshot())
}

func TestAfterCloseIsDropped(t *testing.T) {
	s := &sink{}
	h := New(s, 2, 4)
	h.Close()
	h.Close()

	require.NotPanics(t, func() { h.Miss("late") })
	require.Equal(t, uint64(1), h.Dropped())
	require.Empty(t, s.snapshot())
}
