package response

import (
	"profile-registry/internal/domain"
	"profile-registry/pkg/apperror"

	"github.com/gin-gonic/gin"
)

// Response standardizes the API JSON response
type Response struct {
	Success   bool        `json:"success"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data,omitempty"`
	Error     interface{} `json:"error,omitempty"`
	RequestID string      `json:"request_id,omitempty"`
}

// ErrorDetail is the structured part of a failed response, enough for a
// client to point at the offending field, constraint or state.
type ErrorDetail struct {
	Kind       apperror.Kind `json:"kind"`
	Field      string        `json:"field,omitempty"`
	Constraint string        `json:"constraint,omitempty"`
	State      string        `json:"state,omitempty"`
	Event      string        `json:"event,omitempty"`
	Details    []string      `json:"details,omitempty"`
}

func DetailOf(e *apperror.AppError) ErrorDetail {
	return ErrorDetail{
		Kind:       e.Kind,
		Field:      e.Field,
		Constraint: e.Constraint,
		State:      e.State,
		Event:      e.Event,
		Details:    e.Details,
	}
}

// RequestID returns the id assigned by the request id middleware.
func RequestID(c *gin.Context) string {
	return c.GetString(string(domain.KeyRequestID))
}

// Success sends a success response
func Success(c *gin.Context, code int, message string, data interface{}) {
	c.JSON(code, Response{
		Success:   true,
		Message:   message,
		Data:      data,
		RequestID: RequestID(c),
	})
}

// Error sends an error response
func Error(c *gin.Context, code int, message string, err interface{}) {
	c.JSON(code, Response{
		Success:   false,
		Message:   message,
		Error:     err,
		RequestID: RequestID(c),
	})
}
