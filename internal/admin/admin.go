package admin

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/danmuck/marquee/internal/auth"
	"github.com/danmuck/marquee/internal/observability"
	"github.com/danmuck/marquee/internal/server"
	"github.com/danmuck/marquee/internal/store"
	"github.com/danmuck/marquee/internal/transport"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Backend is the server surface the admin API exposes.
type Backend interface {
	Alive() bool
	Stats() server.Stats
	Sessions() []server.SessionInfo
	ServeConn(ctx context.Context, conn transport.Conn)
}

// EventLister reads persisted session events.
type EventLister interface {
	Events(ctx context.Context, sessionID string, limit int) ([]store.Event, error)
}

type Config struct {
	Name        string
	Addr        string
	Version     string
	CORSOrigins []string
	// Token, when set, is required as a bearer token on POST /shutdown.
	Token string
}

type Option func(*Admin)

// WithShutdown sets the action behind POST /shutdown.
func WithShutdown(fn func()) Option {
	return func(a *Admin) {
		a.shutdown = fn
	}
}

func WithEvents(events EventLister) Option {
	return func(a *Admin) {
		a.events = events
	}
}

func WithUpgrader(up *transport.Upgrader) Option {
	return func(a *Admin) {
		a.upgrader = up
	}
}

// Admin serves health, metrics, session inspection, the websocket protocol
// endpoint and the shutdown trigger over HTTP.
type Admin struct {
	cfg      Config
	backend  Backend
	events   EventLister
	shutdown func()
	upgrader *transport.Upgrader
	router   *gin.Engine
	appeared time.Time
}

func New(cfg Config, backend Backend, opts ...Option) *Admin {
	observability.RegisterMetrics()
	if cfg.Name == "" {
		cfg.Name = "marquee"
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.AccessLog(log.Logger))
	r.Use(observability.RequestMetricsMiddleware())
	if len(cfg.CORSOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins: cfg.CORSOrigins,
			AllowMethods: []string{"GET", "POST"},
			AllowHeaders: []string{"Origin", "Content-Type"},
			MaxAge:       12 * time.Hour,
		}))
	}
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	a := &Admin{
		cfg:      cfg,
		backend:  backend,
		router:   r,
		appeared: time.Now(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.upgrader == nil {
		a.upgrader = transport.NewUpgrader(server.DefaultConfig().Codec)
	}
	a.registerRoutes()
	return a
}

func (a *Admin) Handler() http.Handler {
	return a.router
}

func (a *Admin) registerRoutes() {
	r := a.router
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"alive":   a.backend.Alive(),
			"uptime":  time.Since(a.appeared).String(),
			"service": a.cfg.Name,
			"version": a.cfg.Version,
		})
	})

	r.GET("/ready", func(c *gin.Context) {
		ready := a.backend.Alive()
		status := http.StatusOK
		if !ready {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{
			"ready":   ready,
			"service": a.cfg.Name,
			"version": a.cfg.Version,
		})
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/stats", func(c *gin.Context) {
		st := a.backend.Stats()
		c.JSON(http.StatusOK, gin.H{
			"sessions":       st.Sessions,
			"messages":       st.Messages,
			"malformed":      st.Malformed,
			"uptime_seconds": int64(st.Uptime.Seconds()),
		})
	})

	r.GET("/sessions", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"sessions": a.backend.Sessions()})
	})

	r.GET("/sessions/:id/events", a.handleEvents)
	r.GET("/ws", a.handleWebsocket)
	r.POST("/shutdown", a.handleShutdown)
}

func (a *Admin) handleEvents(c *gin.Context) {
	if a.events == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "event store not configured"})
		return
	}
	limit := 100
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}
	events, err := a.events.Events(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, store.ErrClosed) {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	out := make([]gin.H, 0, len(events))
	for _, ev := range events {
		out = append(out, gin.H{
			"kind":   ev.Kind,
			"remote": ev.Remote,
			"detail": ev.Detail,
			"at":     ev.At.UTC().Format(time.RFC3339Nano),
		})
	}
	c.JSON(http.StatusOK, gin.H{"session": c.Param("id"), "events": out})
}

func (a *Admin) handleWebsocket(c *gin.Context) {
	if !a.backend.Alive() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "server shutting down"})
		return
	}
	conn, err := a.upgrader.Upgrade(c.Writer, c.Request)
	if err != nil {
		log.Warn().Err(err).Msg("admin.ws upgrade failed")
		return
	}
	a.backend.ServeConn(context.WithoutCancel(c.Request.Context()), conn)
}

func (a *Admin) handleShutdown(c *gin.Context) {
	if a.shutdown == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "shutdown not configured"})
		return
	}
	if a.cfg.Token != "" {
		if err := auth.CheckHeader(auth.AdminToken{Token: a.cfg.Token}, c.GetHeader("Authorization")); err != nil {
			log.Warn().Str("client_ip", c.ClientIP()).Msg("admin.shutdown unauthorized")
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
	}
	log.Warn().Str("client_ip", c.ClientIP()).Msg("admin.shutdown requested")
	a.shutdown()
	c.JSON(http.StatusAccepted, gin.H{"status": "shutting down"})
}

// Serve runs the admin HTTP server on ln until ctx ends.
func (a *Admin) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           a.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", ln.Addr().String()).Msg("admin.Serve listening")
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}
