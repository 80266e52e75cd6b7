// Package apperr defines the error kinds returned by services and how each
// one is rendered over HTTP.
package apperr

import (
	"errors"
	"net/http"
)

type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindAuthentication
	KindAuthorization
	KindNotFound
	KindConflict
	KindDuplicate
	KindSignatureMismatch
)

// GenericMessage is what clients see for internal failures in production.
const GenericMessage = "Internal server error"

type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func Validation(message string) *Error { return New(KindValidation, message) }

func Authentication(message string) *Error { return New(KindAuthentication, message) }

func Authorization(message string) *Error { return New(KindAuthorization, message) }

func NotFound(message string) *Error { return New(KindNotFound, message) }

func Conflict(message string) *Error { return New(KindConflict, message) }

func Duplicate(message string) *Error { return New(KindDuplicate, message) }

func SignatureMismatch(message string) *Error { return New(KindSignatureMismatch, message) }

func Internal(message string, err error) *Error { return Wrap(KindInternal, message, err) }

// KindOf returns the kind of the first *Error in the chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func Is(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

// HTTPStatus maps an error to its response code. Booking conflicts such as
// self-booking and overlap render as 400; duplicates of unique resources as 409.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation, KindConflict, KindSignatureMismatch:
		return http.StatusBadRequest
	case KindAuthentication:
		return http.StatusUnauthorized
	case KindAuthorization:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindDuplicate:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage is the text safe to return to a client.
func PublicMessage(err error, production bool) string {
	var e *Error
	if !errors.As(err, &e) {
		if production {
			return GenericMessage
		}
		return err.Error()
	}
	if e.Kind == KindInternal {
		if production {
			return GenericMessage
		}
		return e.Error()
	}
	return e.Message
}
