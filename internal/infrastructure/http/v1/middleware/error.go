package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"purchasing/internal/core/apperror"
	"purchasing/pkg/logger"
)

// ErrorHandler middleware transforms errors into consistent JSON responses.
// Hides internal errors from clients while logging full details.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		err := c.Errors.Last().Err

		// If response already written by handler, do not override it.
		if c.Writer.Written() {
			return
		}

		if appErr, ok := apperror.AsAppError(err); ok {
			if appErr.Err != nil || appErr.HTTPStatus >= http.StatusInternalServerError {
				logger.Error(c.Request.Context(), "request error",
					"code", appErr.Code,
					"message", appErr.Message,
					"cause", appErr.Err,
				)
			}

			details := appErr.Details
			if appErr.Code == apperror.CodeInternal {
				details = map[string]any{"request_id": c.GetString("request_id")}
			}
			c.JSON(appErr.HTTPStatus, gin.H{
				"code":    appErr.Code,
				"message": appErr.Message,
				"details": details,
			})
			return
		}

		// Unknown error - log and return generic message
		logger.Error(c.Request.Context(), "unhandled error", "error", err)

		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    apperror.CodeInternal,
			"message": "Internal server error",
			"details": map[string]any{
				"request_id": c.GetString("request_id"),
			},
		})
	}
}
