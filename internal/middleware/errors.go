package middleware

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/simp-lee/catalog/internal/domain"
	"github.com/simp-lee/catalog/internal/pkg"
)

// ErrorHandler renders the last error recorded with c.Error once the handler
// chain returns. Client errors are logged at debug level; server errors are
// logged with their cause, which is never sent to the client.
func ErrorHandler(logger *slog.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}

	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		err := c.Errors.Last().Err
		status := domain.HTTPStatusCode(err)

		ctx := c.Request.Context()
		if status >= http.StatusInternalServerError {
			logger.ErrorContext(ctx, "request failed",
				slog.String("method", c.Request.Method),
				slog.String("path", c.Request.URL.Path),
				slog.Any("error", err),
			)
		} else {
			logger.DebugContext(ctx, "request rejected",
				slog.Int("status", status),
				slog.String("error", err.Error()),
			)
		}

		pkg.Error(c, err)
	}
}

// NoRoute responds to unmatched routes with the standard error envelope.
func NoRoute(c *gin.Context) {
	pkg.Error(c, domain.NewAppError(domain.KindNotFound, "can't find "+c.Request.URL.Path+" on this server", nil))
}
