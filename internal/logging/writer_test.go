package logging

import (
	"bytes"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type flakySink struct {
	mu    sync.Mutex
	fail  bool
	panic bool
	buf   bytes.Buffer
}

func (s *flakySink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.panic {
		panic("sink exploded")
	}
	if s.fail {
		return 0, errors.New("disk full")
	}
	return s.buf.Write(p)
}

func (s *flakySink) set(fail, panicking bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = fail
	s.panic = panicking
}

func (s *flakySink) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}

func TestAsyncWriterDeliversLines(t *testing.T) {
	sink := &flakySink{}
	w := NewAsyncWriter(sink, 8)
	_, err := w.Write([]byte("one\n"))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.Equal(t, "one\n", sink.String())
	require.False(t, w.Alive())
}

func TestAsyncWriterDiesOnSinkErrorAndRestarts(t *testing.T) {
	sink := &flakySink{}
	sink.set(true, false)
	w := NewAsyncWriter(sink, 8)
	defer w.Close()

	_, _ = w.Write([]byte("lost\n"))
	require.Eventually(t, func() bool { return !w.Alive() }, time.Second, 5*time.Millisecond)
	require.Error(t, w.Err())

	_, err := w.Write([]byte("dropped\n"))
	require.NoError(t, err)
	require.Equal(t, uint64(1), w.Dropped())

	sink.set(false, false)
	require.NoError(t, w.Restart())
	require.True(t, w.Alive())
	require.Equal(t, uint64(1), w.Restarts())

	_, _ = w.Write([]byte("back\n"))
	require.Eventually(t, func() bool { return sink.String() == "back\n" }, time.Second, 5*time.Millisecond)
}

func TestAsyncWriterRecoversSinkPanic(t *testing.T) {
	sink := &flakySink{}
	sink.set(false, true)
	w := NewAsyncWriter(sink, 8)
	defer w.Close()

	_, _ = w.Write([]byte("boom\n"))
	require.Eventually(t, func() bool { return !w.Alive() }, time.Second, 5*time.Millisecond)
	require.ErrorContains(t, w.Err(), "panic")
}

func TestAsyncWriterRestartWhileAliveIsNoop(t *testing.T) {
	w := NewAsyncWriter(&flakySink{}, 8)
	require.NoError(t, w.Restart())
	require.Zero(t, w.Restarts())
	require.NoError(t, w.Close())
	require.ErrorIs(t, w.Restart(), ErrWriterClosed)
}

type stuckSink struct {
	entered chan struct{}
	release chan struct{}
}

func (s *stuckSink) Write(p []byte) (int, error) {
	s.entered <- struct{}{}
	<-s.release
	return len(p), nil
}

func TestAsyncWriterCloseTimeoutBoundsHungSink(t *testing.T) {
	sink := &stuckSink{entered: make(chan struct{}, 1), release: make(chan struct{})}
	w := NewAsyncWriter(sink, 4)
	_, _ = w.Write([]byte("first\n"))
	<-sink.entered

	start := time.Now()
	require.ErrorIs(t, w.CloseTimeout(20*time.Millisecond), ErrFlushTimeout)
	require.Less(t, time.Since(start), time.Second)
	close(sink.release)
}

func TestAsyncWriterCloseTimeoutFlushesQueue(t *testing.T) {
	sink := &flakySink{}
	w := NewAsyncWriter(sink, 8)
	_, _ = w.Write([]byte("last words\n"))
	require.NoError(t, w.CloseTimeout(time.Second))
	require.Contains(t, sink.String(), "last words")
}
