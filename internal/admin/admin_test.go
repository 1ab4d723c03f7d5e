package admin

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/danmuck/marquee/internal/protocol"
	"github.com/danmuck/marquee/internal/protocol/value"
	"github.com/danmuck/marquee/internal/server"
	"github.com/danmuck/marquee/internal/store"
	"github.com/danmuck/marquee/internal/testutil/testlog"
	"github.com/danmuck/marquee/internal/transport"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newAdmin(t *testing.T, opts ...Option) (*Admin, *server.Service, *store.Store) {
	t.Helper()
	testlog.Start(t)
	st, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "admin.db"))
	require.NoError(t, err)
	svc := server.New(server.DefaultConfig(), st)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = svc.RequestShutdown(ctx)
	})
	opts = append([]Option{WithEvents(st)}, opts...)
	return New(Config{Name: "marquee-test", Version: "test"}, svc, opts...), svc, st
}

func get(t *testing.T, a *Admin, path string) (int, map[string]any) {
	t.Helper()
	rr := httptest.NewRecorder()
	a.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
	var body map[string]any
	if strings.HasPrefix(rr.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	}
	return rr.Code, body
}

func TestHealthAndReady(t *testing.T) {
	a, svc, _ := newAdmin(t)

	code, body := get(t, a, "/health")
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "ok", body["status"])
	require.Equal(t, true, body["alive"])

	code, _ = get(t, a, "/ready")
	require.Equal(t, http.StatusOK, code)

	require.NoError(t, svc.RequestShutdown(context.Background()))
	code, body = get(t, a, "/ready")
	require.Equal(t, http.StatusServiceUnavailable, code)
	require.Equal(t, false, body["ready"])
}

func TestMetricsEndpoint(t *testing.T) {
	a, _, _ := newAdmin(t)
	get(t, a, "/health")

	rr := httptest.NewRecorder()
	a.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), "marquee_http_requests_total")
}

func TestShutdownTrigger(t *testing.T) {
	var fired atomic.Int32
	a, _, _ := newAdmin(t, WithShutdown(func() { fired.Add(1) }))

	rr := httptest.NewRecorder()
	a.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/shutdown", nil))
	require.Equal(t, http.StatusAccepted, rr.Code)
	require.Equal(t, int32(1), fired.Load())

	unset, _, _ := newAdmin(t)
	rr = httptest.NewRecorder()
	unset.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/shutdown", nil))
	require.Equal(t, http.StatusNotImplemented, rr.Code)
}

func TestShutdownRequiresToken(t *testing.T) {
	var fired atomic.Int32
	testlog.Start(t)
	svc := server.New(server.DefaultConfig(), nil)
	a := New(Config{Token: "s3cret"}, svc, WithShutdown(func() { fired.Add(1) }))

	rr := httptest.NewRecorder()
	a.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/shutdown", nil))
	require.Equal(t, http.StatusUnauthorized, rr.Code)

	req := httptest.NewRequest(http.MethodPost, "/shutdown", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	rr = httptest.NewRecorder()
	a.Handler().ServeHTTP(rr, req)
	require.Equal(t, http.StatusAccepted, rr.Code)
	require.Equal(t, int32(1), fired.Load())
}

func TestWebsocketSessionVisibleInAdmin(t *testing.T) {
	a, svc, _ := newAdmin(t)
	srv := httptest.NewServer(a.Handler())
	defer srv.Close()

	conn, err := transport.Dial(context.Background(), "ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", protocol.DefaultCodec())
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteMessage(protocol.NewMessage(1, protocol.MessageHello, value.String("browser"))))
	welcome, err := conn.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, protocol.MessageWelcome, welcome.Type)
	sessionID, err := value.AsString(welcome.Args[0])
	require.NoError(t, err)

	infos := svc.Sessions()
	require.Len(t, infos, 1)
	require.Equal(t, transport.NameWebsocket, infos[0].Transport)

	code, body := get(t, a, "/sessions")
	require.Equal(t, http.StatusOK, code)
	require.Len(t, body["sessions"], 1)

	code, body = get(t, a, "/sessions/"+sessionID+"/events")
	require.Equal(t, http.StatusOK, code)
	events := body["events"].([]any)
	require.NotEmpty(t, events)
	require.Equal(t, "open", events[0].(map[string]any)["kind"])

	code, _ = get(t, a, "/sessions/"+sessionID+"/events?limit=bogus")
	require.Equal(t, http.StatusBadRequest, code)
}

func TestServeStopsOnContextCancel(t *testing.T) {
	a, _, _ := newAdmin(t)
	ctx, cancel := context.WithCancel(context.Background())
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	errs := make(chan error, 1)
	go func() { errs <- a.Serve(ctx, ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/health")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-errs:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("admin server did not stop")
	}
}

type limitRecorder struct {
	limits []int
}

func (r *limitRecorder) Events(_ context.Context, _ string, limit int) ([]store.Event, error) {
	r.limits = append(r.limits, limit)
	return nil, nil
}

func TestEventsLimit(t *testing.T) {
	rec := &limitRecorder{}
	a, _, _ := newAdmin(t, WithEvents(rec))

	code, _ := get(t, a, "/sessions/s1/events")
	require.Equal(t, http.StatusOK, code)
	code, _ = get(t, a, "/sessions/s1/events?limit=7")
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, []int{100, 7}, rec.limits)

	for _, raw := range []string{"0", "-1", "bogus"} {
		code, body := get(t, a, "/sessions/s1/events?limit="+raw)
		require.Equal(t, http.StatusBadRequest, code, raw)
		require.Equal(t, "limit must be a positive integer", body["error"])
	}
	require.Len(t, rec.limits, 2)
}
