package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"docextract-backend/internal/shared/server/respond"
	"docextract-backend/internal/shared/telemetry"
)

// Recovery recovers from panics and returns a standardized error response
// carrying the panic message.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				telemetry.Error("panic", map[string]any{
					"request_id": RequestIDFromContext(c),
					"error":      fmt.Sprint(rec),
					"stack":      string(debug.Stack()),
					"path":       c.Request.URL.Path,
					"method":     c.Request.Method,
				})
				respond.Error(c, http.StatusInternalServerError, "internal_error", fmt.Sprint(rec), nil)
			}
		}()
		c.Next()
	}
}
