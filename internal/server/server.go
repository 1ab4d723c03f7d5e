package server

import (
	"context"
	"errors"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/danmuck/marquee/internal/logging"
	"github.com/danmuck/marquee/internal/protocol"
	"github.com/danmuck/marquee/internal/store"
	"github.com/danmuck/marquee/internal/transport"
	"github.com/rs/zerolog/log"
)

var ErrServerClosed = errors.New("server: closed")

// EventStore is the persistence the server needs; *store.Store satisfies it.
type EventStore interface {
	RecordEvent(ctx context.Context, ev store.Event) error
	Check(ctx context.Context) error
	Close() error
}

// LogWriter is the restartable log facility.
type LogWriter interface {
	Alive() bool
	Restart() error
}

type Config struct {
	Name         string
	ListenAddr   string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	Codec        protocol.Codec
}

func DefaultConfig() Config {
	return Config{
		Name:         "marquee",
		ListenAddr:   ":7070",
		ReadTimeout:  5 * time.Minute,
		WriteTimeout: 10 * time.Second,
		Codec:        protocol.DefaultCodec(),
	}
}

type Option func(*Service)

// WithLogWriter overrides the log facility lookup; the default follows
// logging.Facility so a reconfigured logger is picked up.
func WithLogWriter(fn func() LogWriter) Option {
	return func(s *Service) {
		s.logWriter = fn
	}
}

// Service owns listeners, sessions and the event store.
type Service struct {
	cfg       Config
	store     EventStore
	logWriter func() LogWriter
	startedAt time.Time

	alive atomic.Bool

	lnMu      sync.Mutex
	listeners map[net.Listener]struct{}

	sessionsMu sync.Mutex
	sessions   map[string]*Session
	// gauged is the session count last published to the sessions gauge.
	gauged   int
	handlers sync.WaitGroup

	messages  atomic.Uint64
	malformed atomic.Uint64

	shutdownOnce sync.Once
	shutdownErr  error
}

// New returns a live service. st may be nil, in which case events are not
// persisted and connection checks always pass.
func New(cfg Config, st EventStore, opts ...Option) *Service {
	def := DefaultConfig()
	if strings.TrimSpace(cfg.Name) == "" {
		cfg.Name = def.Name
	}
	if strings.TrimSpace(cfg.ListenAddr) == "" {
		cfg.ListenAddr = def.ListenAddr
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	if cfg.Codec.Limits.MaxPayloadBytes == 0 {
		cfg.Codec = def.Codec
	}
	s := &Service{
		cfg:       cfg,
		store:     st,
		logWriter: defaultLogWriter,
		startedAt: time.Now(),
		listeners: make(map[net.Listener]struct{}),
		sessions:  make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.alive.Store(true)
	return s
}

func defaultLogWriter() LogWriter {
	if w := logging.Facility(); w != nil {
		return w
	}
	return nil
}

func (s *Service) Config() Config {
	return s.cfg
}

// Listen opens the configured TCP listener.
func (s *Service) Listen() (net.Listener, error) {
	return net.Listen("tcp", s.cfg.ListenAddr)
}

// Serve accepts connections on ln until ln is closed, ctx ends, or the
// service shuts down.
func (s *Service) Serve(ctx context.Context, ln net.Listener) error {
	if !s.trackListener(ln) {
		_ = ln.Close()
		return ErrServerClosed
	}
	defer s.untrackListener(ln)
	defer ln.Close()

	stop := context.AfterFunc(ctx, func() { _ = ln.Close() })
	defer stop()

	log.Info().Str("addr", ln.Addr().String()).Msg("server.Service.Serve listening")
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || !s.Alive() || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		go s.ServeConn(ctx, transport.NewStreamConn(conn, s.cfg.Codec))
	}
}

func (s *Service) trackListener(ln net.Listener) bool {
	s.lnMu.Lock()
	defer s.lnMu.Unlock()
	if !s.Alive() {
		return false
	}
	s.listeners[ln] = struct{}{}
	return true
}

func (s *Service) untrackListener(ln net.Listener) {
	s.lnMu.Lock()
	delete(s.listeners, ln)
	s.lnMu.Unlock()
}

func (s *Service) closeListeners() {
	s.lnMu.Lock()
	defer s.lnMu.Unlock()
	for ln := range s.listeners {
		_ = ln.Close()
	}
}

// Stats is a point-in-time view of server counters.
type Stats struct {
	Sessions  int
	Messages  uint64
	Malformed uint64
	Uptime    time.Duration
}

func (s *Service) Stats() Stats {
	s.sessionsMu.Lock()
	n := len(s.sessions)
	s.sessionsMu.Unlock()
	return Stats{
		Sessions:  n,
		Messages:  s.messages.Load(),
		Malformed: s.malformed.Load(),
		Uptime:    time.Since(s.startedAt),
	}
}
