package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an AppError independently of its transport mapping.
type Kind string

const (
	KindValidation         Kind = "validation"
	KindConflict           Kind = "conflict"
	KindInvalidTransition  Kind = "invalid_transition"
	KindImmutableState     Kind = "immutable_state"
	KindNotFound           Kind = "not_found"
	KindStorageUnavailable Kind = "storage_unavailable"
	KindForbidden          Kind = "forbidden"
	KindUnauthorized       Kind = "unauthorized"
	KindInternal           Kind = "internal"
)

var kindCodes = map[Kind]int{
	KindValidation:         http.StatusBadRequest,
	KindConflict:           http.StatusConflict,
	KindInvalidTransition:  http.StatusConflict,
	KindImmutableState:     http.StatusConflict,
	KindNotFound:           http.StatusNotFound,
	KindStorageUnavailable: http.StatusServiceUnavailable,
	KindForbidden:          http.StatusForbidden,
	KindUnauthorized:       http.StatusUnauthorized,
	KindInternal:           http.StatusInternalServerError,
}

type AppError struct {
	Kind       Kind     `json:"kind"`
	Code       int      `json:"code"`
	Message    string   `json:"message"`
	Field      string   `json:"field,omitempty"`
	Constraint string   `json:"constraint,omitempty"`
	State      string   `json:"state,omitempty"`
	Event      string   `json:"event,omitempty"`
	Details    []string `json:"details,omitempty"`
	Err        error    `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil && e.Kind == KindStorageUnavailable {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(kind Kind, message string, err error) *AppError {
	code, ok := kindCodes[kind]
	if !ok {
		code = http.StatusInternalServerError
	}
	return &AppError{
		Kind:    kind,
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Validation reports a malformed payload. field may be empty when the
// problem spans the whole payload.
func Validation(field, message string) *AppError {
	e := New(KindValidation, message, nil)
	e.Field = field
	return e
}

// Conflict reports a violated uniqueness constraint.
func Conflict(constraint, message string) *AppError {
	e := New(KindConflict, message, nil)
	e.Constraint = constraint
	return e
}

func InvalidTransition(state, event string) *AppError {
	e := New(KindInvalidTransition, fmt.Sprintf("cannot %s a profile in state %s", event, state), nil)
	e.State = state
	e.Event = event
	return e
}

func ImmutableState(state string) *AppError {
	e := New(KindImmutableState, fmt.Sprintf("profile in state %s cannot be edited; reopen it first", state), nil)
	e.State = state
	return e
}

func NotFound(message string) *AppError {
	return New(KindNotFound, message, nil)
}

func StorageUnavailable(err error) *AppError {
	return New(KindStorageUnavailable, "storage temporarily unavailable", err)
}

func Forbidden(message string) *AppError {
	return New(KindForbidden, message, nil)
}

func Unauthorized(message string) *AppError {
	return New(KindUnauthorized, message, nil)
}

func Internal(err error) *AppError {
	return New(KindInternal, "Internal Server Error", err)
}

// WithDetails attaches additional human readable messages.
func (e *AppError) WithDetails(details ...string) *AppError {
	e.Details = append(e.Details, details...)
	return e
}

// KindOf returns the kind of the first AppError in err's chain, or
// KindInternal when there is none.
func KindOf(err error) Kind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
