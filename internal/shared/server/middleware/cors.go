package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const corsMaxAge = "86400"

// CORS sets CORS headers and answers preflight requests with 204.
// A "*" entry allows every origin.
func CORS(allowedOrigins []string) gin.HandlerFunc {
	origins := make(map[string]struct{})
	wildcard := false
	for _, o := range allowedOrigins {
		trimmed := strings.TrimSpace(o)
		switch trimmed {
		case "":
		case "*":
			wildcard = true
		default:
			origins[trimmed] = struct{}{}
		}
	}

	return func(c *gin.Context) {
		h := c.Writer.Header()
		if allow := allowOrigin(c.GetHeader("Origin"), wildcard, origins); allow != "" {
			h.Set("Access-Control-Allow-Origin", allow)
			if allow != "*" {
				h.Add("Vary", "Origin")
			}
			h.Set("Access-Control-Expose-Headers", "X-Request-Id")
		}

		if c.Request.Method == http.MethodOptions {
			h.Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-Id")
			h.Set("Access-Control-Max-Age", corsMaxAge)
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func allowOrigin(origin string, wildcard bool, origins map[string]struct{}) string {
	if wildcard {
		return "*"
	}
	if origin == "" {
		return ""
	}
	if _, ok := origins[origin]; ok {
		return origin
	}
	return ""
}
