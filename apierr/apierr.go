// Package apierr is the error taxonomy shared by every service. Handlers never build
// status codes themselves; they return these and the server's error handler maps them.
package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindForbidden
	KindInvalidState
	KindAlreadyVoted
	KindValidation
)

type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func NotFound(format string, args ...interface{}) error {
	return &Error{KindNotFound, fmt.Sprintf(format, args...)}
}

func Forbidden(format string, args ...interface{}) error {
	return &Error{KindForbidden, fmt.Sprintf(format, args...)}
}

func InvalidState(format string, args ...interface{}) error {
	return &Error{KindInvalidState, fmt.Sprintf(format, args...)}
}

func AlreadyVoted() error {
	return &Error{KindAlreadyVoted, "You have already voted in this poll"}
}

func Validation(format string, args ...interface{}) error {
	return &Error{KindValidation, fmt.Sprintf(format, args...)}
}

// KindOf reports KindInternal for anything that is not an *Error, including database errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

func Status(err error) int {
	switch KindOf(err) {
	case KindNotFound:
		return http.StatusNotFound
	case KindForbidden:
		return http.StatusForbidden
	case KindInvalidState, KindAlreadyVoted, KindValidation:
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
