package server

import (
	"context"
	"errors"
	"fmt"

	"github.com/danmuck/marquee/internal/observability"
	"github.com/rs/zerolog/log"
)

var ErrSessionTable = errors.New("server: session table inconsistent")

func (s *Service) Alive() bool {
	return s.alive.Load()
}

// CheckConnections verifies the store connection, repairing it if possible.
func (s *Service) CheckConnections(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	return s.store.Check(ctx)
}

func (s *Service) LoggerAlive() bool {
	w := s.logWriter()
	if w == nil {
		return true
	}
	return w.Alive()
}

func (s *Service) RestartLogger() error {
	w := s.logWriter()
	if w == nil {
		return nil
	}
	return w.Restart()
}

// CheckStructure evicts sessions whose connection already closed and reports
// entries filed under the wrong key or a sessions gauge that disagrees with the
// table. The gauge is republished from the table either way.
func (s *Service) CheckStructure(context.Context) error {
	var errs []error
	evicted := 0

	s.sessionsMu.Lock()
	if s.gauged != len(s.sessions) {
		errs = append(errs, fmt.Errorf("%w: sessions gauge at %d, table holds %d", ErrSessionTable, s.gauged, len(s.sessions)))
	}
	for key, sess := range s.sessions {
		switch {
		case sess == nil:
			delete(s.sessions, key)
			errs = append(errs, fmt.Errorf("%w: nil session under %q", ErrSessionTable, key))
		case sess.ID != key:
			errs = append(errs, fmt.Errorf("%w: session %q filed under %q", ErrSessionTable, sess.ID, key))
		case sess.closed.Load():
			delete(s.sessions, key)
			evicted++
		}
	}
	active := len(s.sessions)
	s.gauged = active
	s.sessionsMu.Unlock()

	observability.SetSessions(active)
	if evicted > 0 {
		log.Warn().Int("evicted", evicted).Int("active", active).Msg("server.CheckStructure evicted closed sessions")
	}
	return errors.Join(errs...)
}

// RequestShutdown stops accepting, closes every session, waits for handlers
// to return or ctx to end, then closes the store. Later calls return the
// first call's result.
func (s *Service) RequestShutdown(ctx context.Context) error {
	s.shutdownOnce.Do(func() {
		s.shutdownErr = s.shutdown(ctx)
	})
	return s.shutdownErr
}

func (s *Service) shutdown(ctx context.Context) error {
	s.alive.Store(false)
	log.Info().Msg("server.RequestShutdown started")

	s.closeListeners()
	closed := s.closeAllSessions()

	drained := make(chan struct{})
	go func() {
		s.handlers.Wait()
		close(drained)
	}()

	var err error
	select {
	case <-drained:
	case <-ctx.Done():
		err = fmt.Errorf("server: drain sessions: %w", ctx.Err())
	}

	if s.store != nil {
		if cerr := s.store.Close(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("server: close store: %w", cerr))
		}
	}
	log.Info().Int("sessions_closed", closed).Err(err).Msg("server.RequestShutdown complete")
	return err
}
