package supervise

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/danmuck/marquee/internal/observability"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// MinIdleSeconds is the floor on the monitor cadence.
const MinIdleSeconds = 30

// MonitorConfig configures the liveness monitor. StructureChecks is a
// non-zero-enables flag, mirroring the integer option in the server config.
type MonitorConfig struct {
	IdleSeconds     int
	StructureChecks int
	OnCheckError    Policy
}

// Interval returns the wait between cycles: max(IdleSeconds, 30) seconds.
func (c MonitorConfig) Interval() time.Duration {
	secs := c.IdleSeconds
	if secs < MinIdleSeconds {
		secs = MinIdleSeconds
	}
	return time.Duration(secs) * time.Second
}

type State int32

const (
	StateStopped State = iota
	StateRunning
)

func (s State) String() string {
	if s == StateRunning {
		return "running"
	}
	return "stopped"
}

// Monitor periodically verifies server resources and restarts the log writer
// when it has died.
type Monitor struct {
	host  Host
	cfg   MonitorConfig
	clock clockwork.Clock

	state  atomic.Int32
	cycles atomic.Uint64
}

type MonitorOption func(*Monitor)

func WithMonitorClock(clock clockwork.Clock) MonitorOption {
	return func(m *Monitor) {
		m.clock = clock
	}
}

func NewMonitor(host Host, cfg MonitorConfig, opts ...MonitorOption) *Monitor {
	if cfg.OnCheckError == "" {
		cfg.OnCheckError = PolicyFailFast
	}
	m := &Monitor{
		host:  host,
		cfg:   cfg,
		clock: clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Monitor) State() State {
	return State(m.state.Load())
}

// Cycles returns the number of completed cycles.
func (m *Monitor) Cycles() uint64 {
	return m.cycles.Load()
}

// Run loops until the host stops being alive, ctx is cancelled during a wait,
// or a check fails under PolicyFailFast. Cancellation returns an error
// matching ErrInterruptedWait and the context error.
func (m *Monitor) Run(ctx context.Context) error {
	m.state.Store(int32(StateRunning))
	defer m.state.Store(int32(StateStopped))

	interval := m.cfg.Interval()
	log.Info().
		Dur("interval", interval).
		Bool("structure_checks", m.cfg.StructureChecks != 0).
		Str("policy", string(m.cfg.OnCheckError)).
		Msg("supervise.Monitor.Run started")

	for m.host.Alive() {
		if err := m.wait(ctx, interval); err != nil {
			log.Info().Err(err).Msg("supervise.Monitor.Run interrupted")
			return err
		}
		if !m.host.Alive() {
			break
		}
		if err := m.RunCycle(ctx); err != nil {
			return err
		}
	}

	log.Info().Uint64("cycles", m.Cycles()).Msg("supervise.Monitor.Run stopped: server not alive")
	return nil
}

// RunCycle performs one pass: connections, log writer, then structure when enabled.
func (m *Monitor) RunCycle(ctx context.Context) error {
	if err := m.step(StepConnections, func() error {
		return m.host.CheckConnections(ctx)
	}); err != nil {
		return err
	}

	if !m.host.LoggerAlive() {
		log.Warn().Msg("supervise.Monitor log writer dead, restarting")
		restarted := false
		if err := m.step(StepLogger, func() error {
			if err := m.host.RestartLogger(); err != nil {
				return err
			}
			restarted = true
			return nil
		}); err != nil {
			return err
		}
		if restarted {
			observability.RecordLoggerRestart()
			log.Info().Msg("supervise.Monitor log writer restarted")
		}
	}

	if m.cfg.StructureChecks != 0 {
		if err := m.step(StepStructure, func() error {
			return m.host.CheckStructure(ctx)
		}); err != nil {
			return err
		}
	}

	n := m.cycles.Add(1)
	observability.RecordMonitorCycle()
	log.Debug().Uint64("cycle", n).Msg("supervise.Monitor cycle complete")
	return nil
}

func (m *Monitor) step(name string, fn func() error) error {
	err := fn()
	if err == nil {
		return nil
	}
	observability.RecordCheckFailure(name)
	if m.cfg.OnCheckError == PolicyLogAndContinue {
		log.Warn().Err(err).Str("step", name).Msg("supervise.Monitor check failed, continuing")
		return nil
	}
	log.Error().Err(err).Str("step", name).Msg("supervise.Monitor check failed, stopping")
	return &CheckError{Step: name, Err: err}
}

func (m *Monitor) wait(ctx context.Context, d time.Duration) error {
	timer := m.clock.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return interrupted(ctx)
	case <-timer.Chan():
		return nil
	}
}
