package observability

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// pollRoutes are hit by probes and scrapers; they log at debug unless they fail.
var pollRoutes = map[string]bool{
	"/health":  true,
	"/ready":   true,
	"/metrics": true,
}

// AccessLog writes one line per admin request, tagged with the session id
// when the route addresses one.
func AccessLog(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		upgrade := c.IsWebsocket()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		status := c.Writer.Status()

		var event *zerolog.Event
		switch {
		case status >= 500:
			event = logger.Error()
		case status >= 400:
			event = logger.Warn()
		case pollRoutes[route]:
			event = logger.Debug()
		default:
			event = logger.Info()
		}

		event = event.
			Str("method", c.Request.Method).
			Str("route", route).
			Int("status", status).
			Dur("took", time.Since(start)).
			Str("remote", c.ClientIP())
		if id := c.Param("id"); id != "" {
			event = event.Str("session", id)
		}
		if upgrade {
			event = event.Bool("websocket", true)
		}
		if err := c.Errors.Last(); err != nil {
			event = event.Str("error", err.Error())
		}
		event.Msg("admin.request")
	}
}

func RequestMetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		RecordHTTPRequest(c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}
