package supervise

import (
	"context"
	"sync"
	"sync/atomic"
)

type fakeHost struct {
	alive       atomic.Bool
	loggerAlive atomic.Bool

	mu          sync.Mutex
	calls       []string
	connErr     error
	restartErr  error
	structErr   error
	cycleSignal chan string
}

func newFakeHost() *fakeHost {
	h := &fakeHost{cycleSignal: make(chan string, 64)}
	h.alive.Store(true)
	h.loggerAlive.Store(true)
	return h
}

func (h *fakeHost) record(step string) {
	h.mu.Lock()
	h.calls = append(h.calls, step)
	h.mu.Unlock()
	h.cycleSignal <- step
}

func (h *fakeHost) Calls() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.calls...)
}

func (h *fakeHost) Alive() bool { return h.alive.Load() }

func (h *fakeHost) CheckConnections(context.Context) error {
	h.record(StepConnections)
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.connErr
}

func (h *fakeHost) LoggerAlive() bool { return h.loggerAlive.Load() }

func (h *fakeHost) RestartLogger() error {
	h.record(StepLogger)
	h.mu.Lock()
	err := h.restartErr
	h.mu.Unlock()
	if err == nil {
		h.loggerAlive.Store(true)
	}
	return err
}

func (h *fakeHost) CheckStructure(context.Context) error {
	h.record(StepStructure)
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.structErr
}

type blockingTarget struct {
	called  chan struct{}
	release chan struct{}
	calls   atomic.Int32
}

func newBlockingTarget() *blockingTarget {
	return &blockingTarget{
		called:  make(chan struct{}, 4),
		release: make(chan struct{}),
	}
}

func (b *blockingTarget) RequestShutdown(context.Context) error {
	b.calls.Add(1)
	b.called <- struct{}{}
	<-b.release
	return nil
}

type exitRecorder struct {
	codes chan int
}

func newExitRecorder() *exitRecorder {
	return &exitRecorder{codes: make(chan int, 4)}
}

func (e *exitRecorder) exit(code int) {
	e.codes <- code
}
