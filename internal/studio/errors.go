package studio

import (
	"context"
	"errors"
	"net/http"
)

// Error kinds. Use errors.Is against these to branch on a failure.
var (
	ErrValidation   = errors.New("validation failed")
	ErrNotFound     = errors.New("not found")
	ErrNetwork      = errors.New("network failure")
	ErrServer       = errors.New("server failure")
	ErrTimeout      = errors.New("request timed out")
	ErrUnauthorized = errors.New("unauthorized")
	ErrNoSession    = errors.New("no current session")
)

const (
	msgSessionNotFound = "Session not found"
	msgGeneric         = "Something went wrong. Please try again."
	msgTimeout         = "The request timed out. Please try again."
	msgUnauthorized    = "Please sign in again."
)

// Error is a classified remote failure. Message is safe to show to the user;
// Err carries the underlying detail for logs.
type Error struct {
	Kind    error
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Kind.Error()
}

func (e *Error) Is(target error) bool {
	return target == e.Kind
}

func (e *Error) Unwrap() error {
	return e.Err
}

func NewError(kind error, status int, message string, cause error) *Error {
	if message == "" {
		message = defaultMessage(kind)
	}
	return &Error{Kind: kind, Status: status, Message: message, Err: cause}
}

// KindForStatus maps an HTTP status to an error kind.
func KindForStatus(status int) error {
	switch {
	case status == http.StatusBadRequest, status == http.StatusUnprocessableEntity, status == http.StatusConflict:
		return ErrValidation
	case status == http.StatusNotFound:
		return ErrNotFound
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return ErrUnauthorized
	case status == http.StatusRequestTimeout, status == http.StatusGatewayTimeout:
		return ErrTimeout
	default:
		return ErrServer
	}
}

// Classify converts any error into an *Error. Unclassified errors become
// network failures, except deadline expiry which becomes a timeout.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}
	var se *Error
	if errors.As(err, &se) {
		return se
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NewError(ErrTimeout, 0, "", err)
	}
	return NewError(ErrNetwork, 0, "", err)
}

// Retryable reports whether a background write should be attempted again.
func Retryable(err error) bool {
	return !errors.Is(err, ErrValidation) &&
		!errors.Is(err, ErrNotFound) &&
		!errors.Is(err, ErrUnauthorized) &&
		!errors.Is(err, context.Canceled)
}

func defaultMessage(kind error) string {
	switch kind {
	case ErrNotFound:
		return msgSessionNotFound
	case ErrTimeout:
		return msgTimeout
	case ErrUnauthorized:
		return msgUnauthorized
	case ErrValidation:
		return "Invalid input"
	case ErrNoSession:
		return "No session selected"
	default:
		return msgGeneric
	}
}
