package server

import (
	"io"
	"net/http"

	"github.com/Real-Bird/upload-server/internal/apperr"
	"github.com/Real-Bird/upload-server/internal/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ErrorHandler turns the last error a handler reported with c.Error into a response.
// Only classified errors expose their message; everything else becomes a bare 500.
func ErrorHandler(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		err := c.Errors.Last().Err
		status := apperr.Status(err)

		l := logger.FromContext(c, log)
		fields := []zap.Field{
			zap.Int("status", status),
			zap.Stringer("kind", apperr.KindOf(err)),
			zap.Error(err),
		}
		if status >= http.StatusInternalServerError {
			l.Error("request failed", fields...)
		} else {
			l.Warn("request rejected", fields...)
		}

		if c.Writer.Written() {
			return
		}
		c.String(status, apperr.PublicMessage(err))
	}
}

// Recovery logs panics with zap and answers 500 without the panic value.
func Recovery(log *zap.Logger) gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(io.Discard, func(c *gin.Context, recovered any) {
		logger.FromContext(c, log).Error("panic recovered",
			zap.Any("panic", recovered),
			zap.String("path", c.Request.URL.Path),
			zap.Stack("stack"))
		c.Abort()
		c.String(http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
	})
}
