package observability

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func accessLogRouter(buf *bytes.Buffer) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(AccessLog(zerolog.New(buf).Level(zerolog.DebugLevel)))
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/sessions/:id/events", func(c *gin.Context) {
		if c.Query("limit") == "bad" {
			_ = c.Error(errors.New("limit must be a number"))
			c.Status(http.StatusBadRequest)
			return
		}
		c.Status(http.StatusOK)
	})
	return r
}

func lastLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	var entry map[string]any
	require.NoError(t, json.Unmarshal(lines[len(lines)-1], &entry))
	return entry
}

func TestAccessLogTagsSessionRoutes(t *testing.T) {
	var buf bytes.Buffer
	r := accessLogRouter(&buf)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/sessions/abc-123/events", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	entry := lastLine(t, &buf)
	require.Equal(t, "admin.request", entry["message"])
	require.Equal(t, "info", entry["level"])
	require.Equal(t, "/sessions/:id/events", entry["route"])
	require.Equal(t, "abc-123", entry["session"])
	require.EqualValues(t, http.StatusOK, entry["status"])
}

func TestAccessLogLevels(t *testing.T) {
	var buf bytes.Buffer
	r := accessLogRouter(&buf)

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))
	entry := lastLine(t, &buf)
	require.Equal(t, "debug", entry["level"])
	require.NotContains(t, entry, "session")

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/sessions/x/events?limit=bad", nil))
	entry = lastLine(t, &buf)
	require.Equal(t, "warn", entry["level"])
	require.Equal(t, "x", entry["session"])
	require.Contains(t, entry, "error")

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nowhere", nil))
	entry = lastLine(t, &buf)
	require.Equal(t, "warn", entry["level"])
	require.Equal(t, "/nowhere", entry["route"])
}
