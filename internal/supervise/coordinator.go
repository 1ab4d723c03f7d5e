package supervise

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// Coordinator is the one-shot shutdown sequence: request an orderly shutdown,
// wait out the grace period, then exit the process with status 0.
type Coordinator struct {
	target ShutdownTarget
	grace  time.Duration
	exit   func(int)
	clock  clockwork.Clock

	once         sync.Once
	done         chan struct{}
	shutdownDone chan struct{}
	err          error
}

type CoordinatorOption func(*Coordinator)

// WithExit replaces os.Exit as the terminal action.
func WithExit(exit func(int)) CoordinatorOption {
	return func(c *Coordinator) {
		c.exit = exit
	}
}

func WithCoordinatorClock(clock clockwork.Clock) CoordinatorOption {
	return func(c *Coordinator) {
		c.clock = clock
	}
}

func NewCoordinator(target ShutdownTarget, grace time.Duration, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		target:       target,
		grace:        grace,
		exit:         os.Exit,
		clock:        clockwork.NewRealClock(),
		done:         make(chan struct{}),
		shutdownDone: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Activate starts the sequence and returns immediately. Later calls are no-ops.
// Cancelling ctx during the grace wait cancels the forced exit only; the
// orderly shutdown keeps running.
func (c *Coordinator) Activate(ctx context.Context) {
	c.once.Do(func() {
		timer := c.clock.NewTimer(c.grace)
		log.Info().Dur("grace", c.grace).Msg("supervise.Coordinator activated")
		go c.orderly(context.WithoutCancel(ctx))
		go c.run(ctx, timer)
	})
}

// Run activates the coordinator and blocks until it finishes. With the
// default exit function it only returns when interrupted.
func (c *Coordinator) Run(ctx context.Context) error {
	c.Activate(ctx)
	<-c.done
	return c.err
}

// Done is closed once the forced exit has been issued or cancelled.
func (c *Coordinator) Done() <-chan struct{} {
	return c.done
}

// ShutdownDone is closed once the orderly shutdown call returns.
func (c *Coordinator) ShutdownDone() <-chan struct{} {
	return c.shutdownDone
}

// Err reports why the coordinator finished without exiting. Valid after Done.
func (c *Coordinator) Err() error {
	<-c.done
	return c.err
}

func (c *Coordinator) run(ctx context.Context, timer clockwork.Timer) {
	defer close(c.done)
	defer timer.Stop()

	select {
	case <-timer.Chan():
		log.Warn().Dur("grace", c.grace).Msg("supervise.Coordinator grace elapsed, exiting")
		c.exit(0)
	case <-ctx.Done():
		c.err = interrupted(ctx)
		log.Info().Err(c.err).Msg("supervise.Coordinator interrupted, forced exit cancelled")
	}
}

func (c *Coordinator) orderly(ctx context.Context) {
	defer close(c.shutdownDone)
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("panic", fmt.Sprint(r)).Msg("supervise.Coordinator orderly shutdown panicked")
		}
	}()

	start := c.clock.Now()
	if err := c.target.RequestShutdown(ctx); err != nil {
		log.Error().Err(err).Msg("supervise.Coordinator orderly shutdown failed")
		return
	}
	log.Info().Dur("took", c.clock.Since(start)).Msg("supervise.Coordinator orderly shutdown complete")
}
