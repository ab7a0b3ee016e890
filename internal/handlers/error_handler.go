package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"windscapes-barcode/internal/logger"
)

// GlobalErrorHandler recovers panics into a JSON 500 carrying the request ID
func GlobalErrorHandler(log *logger.StructuredLogger) gin.HandlerFunc {
	if log == nil {
		log = logger.Nop()
	}
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		log.WithRequestContext(c).Error("Panic recovered", fmt.Errorf("%v", recovered))

		if c.Writer.Written() {
			c.Abort()
			return
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":      "Internal server error",
			"request_id": c.GetString("request_id"),
		})
	})
}

// NotFoundHandler answers unknown routes
func NotFoundHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Resource not found",
			"path":  c.Request.URL.Path,
		})
	}
}
