// Package apperrors implements chainable application errors that carry an HTTP
// status code. Sentinel errors are declared once per package and derived with New,
// Msg or Err; errors.Is matches every error in the chain.
package apperrors

import (
	"errors"
	"strings"
)

// Error is an application error. All methods return a new Error and leave the
// receiver untouched, so package-level sentinels can be derived freely.
type Error interface {
	error
	Unwrap() error

	New(msg string) Error                  // new error derived from this one
	Msg(msg string) Error                  // new message, wraps this error
	MsgErr(msg string, err ...error) Error // new message, wraps this error and errs
	Err(err ...error) Error                // same message, attaches errs
	SetExpandError(bool) Error             // ErrorAll includes attached errors
	SetStatusCode(int) Error
	StatusCode() int
	ErrorAll() string
}

type appError struct {
	msg         string
	base        error
	attached    []error
	statusCode  int
	expandError bool
}

// New creates a root error.
func New(msg string) Error {
	return &appError{msg: msg}
}

func (e *appError) Error() string {
	return e.msg
}

// ErrorAll returns the message followed by attached errors when expansion is on.
func (e *appError) ErrorAll() string {
	if !e.expandError || len(e.attached) == 0 {
		return e.msg
	}
	var b strings.Builder
	b.WriteString(e.msg)
	for _, err := range e.attached {
		if err == nil || err == e.base {
			continue
		}
		b.WriteString(": ")
		b.WriteString(err.Error())
	}
	return b.String()
}

func (e *appError) Unwrap() error {
	return e.base
}

func (e *appError) New(msg string) Error {
	return &appError{
		msg:         msg,
		base:        e,
		statusCode:  e.statusCode,
		expandError: e.expandError,
	}
}

func (e *appError) Msg(msg string) Error {
	return &appError{
		msg:         msg,
		base:        e,
		attached:    e.attached,
		statusCode:  e.statusCode,
		expandError: e.expandError,
	}
}

func (e *appError) MsgErr(msg string, errs ...error) Error {
	return &appError{
		msg:         msg,
		base:        e,
		attached:    append(append([]error{}, e.attached...), errs...),
		statusCode:  e.statusCode,
		expandError: e.expandError,
	}
}

func (e *appError) Err(errs ...error) Error {
	return &appError{
		msg:         e.msg,
		base:        e,
		attached:    append(append([]error{}, e.attached...), errs...),
		statusCode:  e.statusCode,
		expandError: e.expandError,
	}
}

func (e *appError) SetExpandError(flag bool) Error {
	cp := *e
	cp.expandError = flag
	return &cp
}

func (e *appError) SetStatusCode(code int) Error {
	cp := *e
	cp.statusCode = code
	return &cp
}

func (e *appError) StatusCode() int {
	return e.statusCode
}

// Is reports whether target is this error, its base chain, or any attached error.
func (e *appError) Is(target error) bool {
	if target == nil {
		return false
	}
	if t, ok := target.(*appError); ok && t == e {
		return true
	}
	if e.base != nil && errors.Is(e.base, target) {
		return true
	}
	for _, err := range e.attached {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
