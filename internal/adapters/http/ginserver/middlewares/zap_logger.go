// Package middlewares holds gin middlewares shared by the exporter's HTTP surface.
package middlewares

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ZapLogger logs every request once it is served. Successful requests to
// quietPaths are logged at debug so regular scrapes stay out of the info log.
func ZapLogger(l *zap.Logger, quietPaths ...string) gin.HandlerFunc {
	quiet := make(map[string]struct{}, len(quietPaths))
	for _, p := range quietPaths {
		quiet[p] = struct{}{}
	}
	return func(c *gin.Context) {
		start := time.Now()
		method := c.Request.Method
		path := c.Request.URL.Path

		c.Next()

		status := c.Writer.Status()
		size := max(c.Writer.Size(), 0)

		level := zapcore.InfoLevel
		switch {
		case status >= http.StatusInternalServerError:
			level = zapcore.ErrorLevel
		case status < http.StatusBadRequest:
			if _, ok := quiet[path]; ok {
				level = zapcore.DebugLevel
			}
		}
		if ce := l.Check(level, "http_request"); ce != nil {
			ce.Write(
				zap.String("method", method),
				zap.String("path", path),
				zap.Int("status", status),
				zap.Int("size", size),
				zap.Duration("duration", time.Since(start)),
				zap.String("remote", c.ClientIP()),
			)
		}
	}
}
