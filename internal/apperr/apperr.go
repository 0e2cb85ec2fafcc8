// Package apperr is the error taxonomy shared by every service. Handlers
// record an *Error on the gin context and the Errors middleware renders it.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
)

type Kind string

const (
	KindAuth       Kind = "AuthError"
	KindValidation Kind = "ValidationError"
	KindConflict   Kind = "ConflictError"
	KindNotFound   Kind = "NotFoundError"
	KindInternal   Kind = "InternalError"
)

type Error struct {
	Kind    Kind
	Status  int
	Message string
	Err     error
	Stack   string
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind Kind, status int, msg string, cause error) *Error {
	return &Error{Kind: kind, Status: status, Message: msg, Err: cause, Stack: string(debug.Stack())}
}

// Auth is a 401/403 failure: missing or invalid credentials, csrf mismatch, lockout.
func Auth(status int, msg string) *Error { return newError(KindAuth, status, msg, nil) }

func Validation(msg string) *Error {
	return newError(KindValidation, http.StatusBadRequest, msg, nil)
}

// Conflict covers duplicate resources; status is 400 or 403 depending on the route.
func Conflict(status int, msg string) *Error { return newError(KindConflict, status, msg, nil) }

func NotFound(msg string) *Error { return newError(KindNotFound, http.StatusNotFound, msg, nil) }

func Internal(msg string, cause error) *Error {
	return newError(KindInternal, http.StatusInternalServerError, msg, cause)
}

// As extracts an *Error from err; unknown errors become a generic InternalError.
func As(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Internal("Internal server error", err)
}

// Fail records err on the context and stops the handler chain.
func Fail(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}
