package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"windscapes-barcode/internal/logger"
)

// APIKeyHeader carries the shared key for mutating requests.
const APIKeyHeader = "X-API-Key"

// APIKeyAuth checks X-API-Key against a bcrypt hash. An empty hash disables
// the check.
func APIKeyAuth(hash string, log *logger.StructuredLogger) gin.HandlerFunc {
	if log == nil {
		log = logger.Nop()
	}
	return func(c *gin.Context) {
		if hash == "" {
			c.Next()
			return
		}

		key := c.GetHeader(APIKeyHeader)
		if key == "" || bcrypt.CompareHashAndPassword([]byte(hash), []byte(key)) != nil {
			log.LogSecurityEvent("API key rejected", "medium", map[string]interface{}{
				"path":    c.Request.URL.Path,
				"ip":      c.ClientIP(),
				"present": key != "",
			})
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or missing API key"})
			return
		}
		c.Next()
	}
}

// HashAPIKey produces the value stored in server.api_key_hash.
func HashAPIKey(key string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// SecurityHeadersMiddleware adds security headers
func SecurityHeadersMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Next()
	}
}

// RequestSizeLimitMiddleware limits request body size
func RequestSizeLimitMiddleware(maxSize int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxSize {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Request entity too large"})
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSize)
		c.Next()
	}
}

// RateLimitMiddleware allows requestsPerMinute per client IP over a
// sliding minute.
func RateLimitMiddleware(requestsPerMinute int) gin.HandlerFunc {
	var mu sync.Mutex
	clients := make(map[string][]time.Time)

	return func(c *gin.Context) {
		clientIP := c.ClientIP()
		now := time.Now()

		mu.Lock()
		recent := clients[clientIP][:0]
		for _, t := range clients[clientIP] {
			if now.Sub(t) < time.Minute {
				recent = append(recent, t)
			}
		}
		limited := len(recent) >= requestsPerMinute
		if !limited {
			recent = append(recent, now)
		}
		if len(recent) == 0 {
			delete(clients, clientIP)
		} else {
			clients[clientIP] = recent
		}
		mu.Unlock()

		if limited {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":   "RATE_LIMITED",
				"message": "Too many requests",
			})
			return
		}
		c.Next()
	}
}
