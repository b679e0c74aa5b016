// README: Recovery middleware; turns handler panics into 500s and logs them.
package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mihir-logicrays/drive-it/internal/logger"
)

func Recovery() gin.HandlerFunc {
	log := logger.For("http")
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.WithField("path", c.Request.URL.Path).Errorf("panic: %v", r)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			}
		}()
		c.Next()
	}
}
