package supervise

import (
	"context"
	"testing"
	"time"

	"github.com/danmuck/marquee/internal/testutil/testlog"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
)

func TestCoordinatorExitsAfterGraceEvenWhenShutdownHangs(t *testing.T) {
	testlog.Start(t)
	target := newBlockingTarget()
	t.Cleanup(func() { close(target.release) })
	exits := newExitRecorder()
	clock := clockwork.NewFakeClock()

	c := NewCoordinator(target, 5*time.Second, WithExit(exits.exit), WithCoordinatorClock(clock))
	c.Activate(context.Background())

	select {
	case <-target.called:
	case <-time.After(waitFor):
		t.Fatal("orderly shutdown was not requested")
	}

	blockUntilWaiting(t, clock)
	clock.Advance(5*time.Second - time.Millisecond)
	select {
	case <-exits.codes:
		t.Fatal("exited before the grace period elapsed")
	default:
	}

	clock.Advance(time.Millisecond)
	select {
	case code := <-exits.codes:
		require.Equal(t, 0, code)
	case <-time.After(waitFor):
		t.Fatal("forced exit never happened")
	}
	<-c.Done()
	require.NoError(t, c.Err())

	select {
	case <-c.ShutdownDone():
		t.Fatal("orderly shutdown should still be blocked")
	default:
	}
}

func TestCoordinatorExitsEvenWhenShutdownCompletesEarly(t *testing.T) {
	testlog.Start(t)
	target := newBlockingTarget()
	close(target.release)
	exits := newExitRecorder()
	clock := clockwork.NewFakeClock()

	c := NewCoordinator(target, time.Second, WithExit(exits.exit), WithCoordinatorClock(clock))
	c.Activate(context.Background())

	select {
	case <-c.ShutdownDone():
	case <-time.After(waitFor):
		t.Fatal("orderly shutdown did not return")
	}

	blockUntilWaiting(t, clock)
	clock.Advance(time.Second)
	select {
	case code := <-exits.codes:
		require.Equal(t, 0, code)
	case <-time.After(waitFor):
		t.Fatal("forced exit never happened")
	}
}

func TestCoordinatorInterruptCancelsOnlyForcedExit(t *testing.T) {
	testlog.Start(t)
	target := newBlockingTarget()
	exits := newExitRecorder()
	clock := clockwork.NewFakeClock()

	c := NewCoordinator(target, time.Minute, WithExit(exits.exit), WithCoordinatorClock(clock))
	ctx, cancel := context.WithCancel(context.Background())
	errs := make(chan error, 1)
	go func() { errs <- c.Run(ctx) }()

	<-target.called
	blockUntilWaiting(t, clock)
	cancel()

	select {
	case err := <-errs:
		require.ErrorIs(t, err, ErrInterruptedWait)
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(waitFor):
		t.Fatal("coordinator ignored interruption")
	}

	clock.Advance(time.Hour)
	select {
	case <-exits.codes:
		t.Fatal("forced exit ran after interruption")
	default:
	}

	close(target.release)
	select {
	case <-c.ShutdownDone():
	case <-time.After(waitFor):
		t.Fatal("orderly shutdown was cancelled by interruption")
	}
}

func TestCoordinatorActivatesOnce(t *testing.T) {
	testlog.Start(t)
	target := newBlockingTarget()
	close(target.release)
	exits := newExitRecorder()
	clock := clockwork.NewFakeClock()

	c := NewCoordinator(target, time.Second, WithExit(exits.exit), WithCoordinatorClock(clock))
	c.Activate(context.Background())
	c.Activate(context.Background())
	<-c.ShutdownDone()

	blockUntilWaiting(t, clock)
	clock.Advance(time.Second)
	<-c.Done()
	require.Equal(t, int32(1), target.calls.Load())
	require.Len(t, exits.codes, 1)
}

func TestCoordinatorRealClockTiming(t *testing.T) {
	testlog.Start(t)
	target := newBlockingTarget()
	t.Cleanup(func() { close(target.release) })
	exits := newExitRecorder()
	grace := 50 * time.Millisecond

	c := NewCoordinator(target, grace, WithExit(exits.exit))
	start := time.Now()
	require.NoError(t, c.Run(context.Background()))
	elapsed := time.Since(start)

	require.GreaterOrEqual(t, elapsed, grace)
	require.Less(t, elapsed, grace+time.Second)
	require.Equal(t, 0, <-exits.codes)
}
