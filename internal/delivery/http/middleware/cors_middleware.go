package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// CORSMiddleware answers browser preflights for the configured origins.
// Origins may be exact ("https://app.example.com") or a "*." suffix
// pattern ("*.example.com"). Same-origin requests carry no Origin and pass.
func CORSMiddleware(allowedOrigins []string) gin.HandlerFunc {
	exact := make(map[string]bool, len(allowedOrigins))
	var suffixes []string
	for _, o := range allowedOrigins {
		o = strings.TrimSpace(o)
		if rest, ok := strings.CutPrefix(o, "*."); ok {
			suffixes = append(suffixes, "."+rest)
			continue
		}
		if o != "" {
			exact[o] = true
		}
	}

	allowed := func(origin string) bool {
		if origin == "" || exact[origin] {
			return true
		}
		for _, s := range suffixes {
			if strings.HasPrefix(origin, "https://") && strings.HasSuffix(origin, s) {
				return true
			}
		}
		return false
	}

	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		isAllowed := allowed(origin)

		// If not allowed, no CORS headers are sent - browser will block the request
		if isAllowed && origin != "" {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
			c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			c.Header("Access-Control-Expose-Headers", "X-Request-ID, Retry-After")
			c.Header("Access-Control-Max-Age", "86400") // 24 hours
		}
		c.Header("Vary", "Origin")

		if c.Request.Method == http.MethodOptions {
			if isAllowed {
				c.AbortWithStatus(http.StatusNoContent)
			} else {
				c.AbortWithStatus(http.StatusForbidden)
			}
			return
		}

		c.Next()
	}
}
