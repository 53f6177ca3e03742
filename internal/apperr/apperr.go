// Package apperr carries an HTTP status and a client-facing detail message
// alongside an underlying error.
package apperr

import (
	"errors"
	"net/http"
)

type Error struct {
	Status int
	Detail string
	// Authenticate asks the transport to send a Bearer challenge.
	Authenticate bool
	Err          error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Err.Error() != e.Detail {
		return e.Detail + ": " + e.Err.Error()
	}
	return e.Detail
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, detail string, err error) *Error {
	return &Error{Status: status, Detail: detail, Err: err}
}

func BadRequest(detail string, err error) *Error {
	return New(http.StatusBadRequest, detail, err)
}

func NotFound(detail string, err error) *Error {
	return New(http.StatusNotFound, detail, err)
}

// Unauthorized is a 401 carrying a Bearer challenge.
func Unauthorized(detail string, err error) *Error {
	e := New(http.StatusUnauthorized, detail, err)
	e.Authenticate = true
	return e
}

// Auth is a rejection raised while authenticating a user. It carries the
// Bearer challenge whatever its status.
func Auth(status int, detail string, err error) *Error {
	e := New(status, detail, err)
	e.Authenticate = true
	return e
}

// From extracts the *Error in err's chain. Anything else becomes a 500.
func From(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return New(http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError), err)
}
