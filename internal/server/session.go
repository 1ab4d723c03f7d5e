package server

import (
	"context"
	"errors"
	"io"
	"net"
	"sort"
	"sync/atomic"
	"time"

	"github.com/danmuck/marquee/internal/observability"
	"github.com/danmuck/marquee/internal/protocol"
	"github.com/danmuck/marquee/internal/store"
	"github.com/danmuck/marquee/internal/transport"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Session is one connected peer.
type Session struct {
	ID        string
	Remote    string
	Transport string
	OpenedAt  time.Time

	conn     transport.Conn
	name     atomic.Value
	messages atomic.Uint64
	closed   atomic.Bool
}

func (s *Session) Name() string {
	name, _ := s.name.Load().(string)
	return name
}

func (s *Session) close() {
	if s.closed.CompareAndSwap(false, true) {
		_ = s.conn.Close()
	}
}

// SessionInfo is a snapshot of one session.
type SessionInfo struct {
	ID        string    `json:"id"`
	Name      string    `json:"name,omitempty"`
	Remote    string    `json:"remote"`
	Transport string    `json:"transport"`
	OpenedAt  time.Time `json:"opened_at"`
	Messages  uint64    `json:"messages"`
}

// Sessions returns open sessions ordered by open time.
func (s *Service) Sessions() []SessionInfo {
	s.sessionsMu.Lock()
	out := make([]SessionInfo, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, SessionInfo{
			ID:        sess.ID,
			Name:      sess.Name(),
			Remote:    sess.Remote,
			Transport: sess.Transport,
			OpenedAt:  sess.OpenedAt,
			Messages:  sess.messages.Load(),
		})
	}
	s.sessionsMu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].OpenedAt.Before(out[j].OpenedAt) })
	return out
}

// ServeConn runs the read/dispatch/reply loop for conn and closes it on
// return. It refuses new sessions once shutdown has started.
func (s *Service) ServeConn(ctx context.Context, conn transport.Conn) {
	sess, ok := s.openSession(ctx, conn)
	if !ok {
		_ = conn.WriteMessage(protocol.NewError(0, protocol.CodeShuttingDown, "server shutting down"))
		_ = conn.Close()
		return
	}
	defer s.handlers.Done()
	defer s.closeSession(ctx, sess)

	for {
		if s.cfg.ReadTimeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		}
		msg, err := conn.ReadMessage()
		if err != nil {
			var decErr *protocol.DecodeError
			switch {
			case errors.As(err, &decErr):
				if !s.rejectMalformed(ctx, sess, decErr.MessageID, decErr) {
					return
				}
				continue
			case errors.Is(err, transport.ErrNonBinaryMessage):
				if !s.rejectMalformed(ctx, sess, 0, err) {
					return
				}
				continue
			case errors.Is(err, io.EOF), errors.Is(err, net.ErrClosed), sess.closed.Load():
				return
			default:
				log.Debug().Err(err).Str("session", sess.ID).Msg("server.ServeConn read ended")
				return
			}
		}

		s.messages.Add(1)
		sess.messages.Add(1)
		reply, done := s.dispatch(sess, msg)
		if reply != nil {
			if err := conn.WriteMessage(reply); err != nil {
				log.Debug().Err(err).Str("session", sess.ID).Msg("server.ServeConn write failed")
				return
			}
		}
		if done {
			return
		}
	}
}

func (s *Service) rejectMalformed(ctx context.Context, sess *Session, id uint64, cause error) bool {
	s.malformed.Add(1)
	observability.RecordMalformed(sess.Transport)
	log.Warn().Err(cause).Str("session", sess.ID).Msg("server.ServeConn malformed message")
	s.recordEvent(ctx, store.Event{
		SessionID: sess.ID,
		Kind:      store.EventMalformed,
		Remote:    sess.Remote,
		Detail:    cause.Error(),
	})
	if err := sess.conn.WriteMessage(protocol.NewError(id, protocol.CodeMalformed, cause.Error())); err != nil {
		return false
	}
	return true
}

func (s *Service) openSession(ctx context.Context, conn transport.Conn) (*Session, bool) {
	sess := &Session{
		ID:        uuid.NewString(),
		Remote:    conn.RemoteAddr(),
		Transport: conn.Transport(),
		OpenedAt:  time.Now(),
		conn:      conn,
	}

	s.sessionsMu.Lock()
	if !s.Alive() {
		s.sessionsMu.Unlock()
		return nil, false
	}
	s.sessions[sess.ID] = sess
	s.handlers.Add(1)
	active := len(s.sessions)
	s.gauged = active
	s.sessionsMu.Unlock()

	observability.SetSessions(active)
	log.Info().
		Str("session", sess.ID).
		Str("remote", sess.Remote).
		Str("transport", sess.Transport).
		Int("active", active).
		Msg("server.session opened")
	s.recordEvent(ctx, store.Event{SessionID: sess.ID, Kind: store.EventOpen, Remote: sess.Remote})
	return sess, true
}

func (s *Service) closeSession(ctx context.Context, sess *Session) {
	sess.close()
	s.recordEvent(ctx, store.Event{SessionID: sess.ID, Kind: store.EventClose, Remote: sess.Remote})

	s.sessionsMu.Lock()
	delete(s.sessions, sess.ID)
	active := len(s.sessions)
	s.gauged = active
	s.sessionsMu.Unlock()

	observability.SetSessions(active)
	log.Info().
		Str("session", sess.ID).
		Uint64("messages", sess.messages.Load()).
		Int("active", active).
		Msg("server.session closed")
}

func (s *Service) closeAllSessions() int {
	s.sessionsMu.Lock()
	open := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		open = append(open, sess)
	}
	s.sessionsMu.Unlock()

	for _, sess := range open {
		sess.close()
	}
	return len(open)
}

func (s *Service) recordEvent(ctx context.Context, ev store.Event) {
	if s.store == nil {
		return
	}
	if err := s.store.RecordEvent(context.WithoutCancel(ctx), ev); err != nil {
		log.Warn().Err(err).Str("session", ev.SessionID).Str("kind", string(ev.Kind)).Msg("server.recordEvent failed")
	}
}
