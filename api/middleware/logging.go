package middleware

import (
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/feichai0017/document-intake/pkg/logger"
)

// Logging attaches a request-scoped logger to the request context and logs
// one line per completed request.
func Logging(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		reqLog := log.With(logger.String("requestId", RequestIDFromContext(c)))
		c.Request = c.Request.WithContext(logger.IntoContext(c.Request.Context(), reqLog))

		c.Next()

		status := c.Writer.Status()
		fields := []logger.Field{
			logger.String("method", c.Request.Method),
			logger.String("path", c.Request.URL.Path),
			logger.Int("status", status),
			logger.Duration("latency", time.Since(start)),
			logger.String("clientIp", c.ClientIP()),
		}
		if p := PrincipalFrom(c); !p.IsAnonymous() {
			u, _ := p.User()
			fields = append(fields, logger.Int64("userId", u.ID))
		}

		switch {
		case status >= http.StatusInternalServerError:
			reqLog.Error("Request completed", fields...)
		case status >= http.StatusBadRequest:
			reqLog.Warn("Request completed", fields...)
		default:
			reqLog.Info("Request completed", fields...)
		}
	}
}

// Recovery turns a panic into a 500 with the usual error body.
func Recovery(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				log.Error("Panic recovered",
					logger.String("requestId", RequestIDFromContext(c)),
					logger.Any("panic", rec),
					logger.String("stack", string(debug.Stack())),
					logger.String("path", c.Request.URL.Path),
				)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"detail": http.StatusText(http.StatusInternalServerError),
				})
			}
		}()
		c.Next()
	}
}
