package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/linkup/linkup/backend/go-services/internal/apperr"
	"github.com/linkup/linkup/backend/go-services/pkg/logger"
)

// Errors renders the last error recorded on the context as
// {success:false, message}. Outside production the body also carries the
// error name, status and stack.
func Errors(production bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		e := apperr.As(c.Errors.Last().Err)
		if e.Status >= http.StatusInternalServerError {
			logger.Errorw("request failed", "path", c.FullPath(), "err", e)
		}
		if production {
			c.JSON(e.Status, gin.H{"success": false, "message": e.Message})
			return
		}
		c.JSON(e.Status, gin.H{
			"success":    false,
			"name":       string(e.Kind),
			"statusCode": e.Status,
			"message":    e.Message,
			"stack":      e.Stack,
		})
	}
}
