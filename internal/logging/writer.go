package logging

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"
)

var (
	ErrWriterClosed = errors.New("logging: writer closed")
	ErrFlushTimeout = errors.New("logging: flush timed out")
)

// AsyncWriter is the background log-writer facility. Callers never block: a
// line is queued or dropped. A sink error or panic ends the writer goroutine
// and the writer reports not alive until Restart.
type AsyncWriter struct {
	sink  io.Writer
	lines chan []byte

	mu      sync.Mutex
	stop    chan struct{}
	done    chan struct{}
	closed  bool
	lastErr error

	alive    atomic.Bool
	dropped  atomic.Uint64
	restarts atomic.Uint64
}

func NewAsyncWriter(sink io.Writer, buffer int) *AsyncWriter {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	w := &AsyncWriter{
		sink:  sink,
		lines: make(chan []byte, buffer),
		stop:  make(chan struct{}),
	}
	w.startLocked()
	return w
}

// Write queues a copy of p. It always reports success so a dead facility
// never fails the caller's log statement.
func (w *AsyncWriter) Write(p []byte) (int, error) {
	if !w.alive.Load() {
		w.dropped.Add(1)
		return len(p), nil
	}
	line := make([]byte, len(p))
	copy(line, p)
	select {
	case w.lines <- line:
	default:
		w.dropped.Add(1)
	}
	return len(p), nil
}

func (w *AsyncWriter) Alive() bool {
	return w.alive.Load()
}

func (w *AsyncWriter) Dropped() uint64 {
	return w.dropped.Load()
}

func (w *AsyncWriter) Restarts() uint64 {
	return w.restarts.Load()
}

// Err returns the failure that stopped the last writer goroutine.
func (w *AsyncWriter) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastErr
}

// Restart starts a new writer goroutine if the previous one died. It is a
// no-op while the writer is alive.
func (w *AsyncWriter) Restart() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrWriterClosed
	}
	if w.alive.Load() {
		return nil
	}
	if w.done != nil {
		<-w.done
	}
	w.restarts.Add(1)
	w.startLocked()
	return nil
}

// Close drains queued lines and stops the writer goroutine.
func (w *AsyncWriter) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	close(w.stop)
	done := w.done
	w.mu.Unlock()

	if done != nil {
		<-done
	}
	w.alive.Store(false)
	return nil
}

// CloseTimeout is Close bounded by timeout. On timeout the drain continues in
// the background and ErrFlushTimeout is returned.
func (w *AsyncWriter) CloseTimeout(timeout time.Duration) error {
	done := make(chan struct{})
	go func() {
		_ = w.Close()
		close(done)
	}()
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-done:
		return nil
	case <-timer.C:
		return ErrFlushTimeout
	}
}

func (w *AsyncWriter) startLocked() {
	done := make(chan struct{})
	w.done = done
	w.alive.Store(true)
	go w.run(w.stop, done)
}

func (w *AsyncWriter) run(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	defer func() {
		if r := recover(); r != nil {
			w.fail(fmt.Errorf("logging: writer panic: %v", r))
		}
	}()
	for {
		select {
		case line := <-w.lines:
			if _, err := w.sink.Write(line); err != nil {
				w.fail(err)
				return
			}
		case <-stop:
			w.drain()
			return
		}
	}
}

func (w *AsyncWriter) drain() {
	for {
		select {
		case line := <-w.lines:
			if _, err := w.sink.Write(line); err != nil {
				w.fail(err)
				return
			}
		default:
			return
		}
	}
}

// fail records err before clearing alive; Restart holds mu while it waits
// for the dead goroutine to exit.
func (w *AsyncWriter) fail(err error) {
	w.mu.Lock()
	w.lastErr = err
	w.mu.Unlock()
	w.alive.Store(false)
}
