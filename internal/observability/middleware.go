package observability

import (
	"time"

	"github.com/benk79tb/keripy/internal/logging"
	"github.com/benk79tb/keripy/kering"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RequestLogger logs one line per request. When the handler attached a
// taxonomy error with c.Error, the line carries its kind and ancestry and the
// occurrence is counted under component "http".
func RequestLogger(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()

		var event *zerolog.Event
		if last := c.Errors.Last(); last != nil {
			RecordError("http", last.Err)
			event = logging.Event(logger, last.Err)
		} else if status >= 500 {
			event = logger.Error()
		} else if status >= 400 {
			event = logger.Warn()
		} else {
			event = logger.Info()
		}

		event.
			Str("method", c.Request.Method).
			Str("path", routePath(c)).
			Int("status", status).
			Dur("duration", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Int("bytes", c.Writer.Size()).
			Msg("http_request")
	}
}

// RequestMetricsMiddleware counts requests per route, labelled with the
// kind of the error the handler attached, if any.
func RequestMetricsMiddleware(node string) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		kind := ""
		if last := c.Errors.Last(); last != nil {
			if k, ok := kering.KindOf(last.Err); ok {
				kind = k.String()
			} else {
				kind = "unclassified"
			}
		}
		RecordHTTPRequest(node, c.Request.Method, routePath(c), c.Writer.Status(), kind, time.Since(start))
	}
}

func routePath(c *gin.Context) string {
	if path := c.FullPath(); path != "" {
		return path
	}
	return c.Request.URL.Path
}
