package middleware

import (
	"net/http"

	"github.com/chachabrian/propnest-backend/internal/apperr"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// ErrorHandler renders the last error a handler attached with c.Error as
// {"error": message}. Internal errors are logged and, in production, replaced
// by a generic message.
func ErrorHandler(log logrus.FieldLogger, production bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		err := c.Errors.Last().Err
		status := apperr.HTTPStatus(err)
		if status >= http.StatusInternalServerError {
			log.WithFields(logrus.Fields{
				"method": c.Request.Method,
				"path":   c.FullPath(),
			}).WithError(err).Error("request failed")
		}
		if c.Writer.Written() {
			return
		}
		c.JSON(status, gin.H{"error": apperr.PublicMessage(err, production)})
	}
}

// Recovery turns a panic into a logged 500.
func Recovery(log logrus.FieldLogger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		log.WithFields(logrus.Fields{
			"method": c.Request.Method,
			"path":   c.Request.URL.Path,
			"panic":  recovered,
		}).Error("panic recovered")
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": apperr.GenericMessage})
	})
}
