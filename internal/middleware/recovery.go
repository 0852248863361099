package middleware

import (
	"log/slog"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"github.com/simp-lee/catalog/internal/domain"
	"github.com/simp-lee/catalog/internal/pkg"
)

// Recovery returns a gin middleware that recovers from panics, logs the panic
// value with a stack trace and responds with the standard 500 envelope:
//
//	{"status": "error", "message": "internal error"}
//
// It replaces gin.Recovery() so panics go through structured logging.
func Recovery(logger *slog.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}

	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.ErrorContext(c.Request.Context(), "panic recovered",
					slog.Any("panic", r),
					slog.String("method", c.Request.Method),
					slog.String("path", c.Request.URL.Path),
					slog.String("stack", string(debug.Stack())),
				)

				c.Abort()
				if c.Writer.Written() {
					return
				}
				pkg.Error(c, domain.ErrInternal)
			}
		}()
		c.Next()
	}
}
