package middleware

import (
	"errors"
	"log/slog"
	"net/http"

	"profile-registry/internal/delivery/http/response"
	"profile-registry/pkg/apperror"
	"profile-registry/pkg/logger"

	"github.com/gin-gonic/gin"
)

// ErrorHandler renders the last error a handler attached to the context.
// AppErrors keep their structured detail; anything else becomes a generic
// 500.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		err := c.Errors.Last().Err

		var appErr *apperror.AppError
		if !errors.As(err, &appErr) {
			appErr = apperror.Internal(err)
		}

		switch appErr.Kind {
		case apperror.KindInternal, apperror.KindStorageUnavailable:
			// SECURITY: Never expose internal error details to clients.
			logger.Log.Error("Request failed",
				slog.String("path", c.FullPath()),
				slog.String("request_id", response.RequestID(c)),
				slog.Any("error", err),
			)
		}
		if appErr.Kind == apperror.KindInternal {
			response.Error(c, http.StatusInternalServerError, "An unexpected error occurred. Please try again later.", nil)
			return
		}
		if appErr.Kind == apperror.KindStorageUnavailable {
			c.Header("Retry-After", "1")
		}
		response.Error(c, appErr.Code, appErr.Message, response.DetailOf(appErr))
	}
}
