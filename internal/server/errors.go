package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/applytrak/applytrak/internal/email"
	"github.com/applytrak/applytrak/internal/notify"
	"github.com/applytrak/applytrak/internal/validation"
)

// ErrUserNotFound indicates no user matches the request.
type ErrUserNotFound struct {
	Email string
}

func (e *ErrUserNotFound) Error() string {
	return fmt.Sprintf("user not found: %s", e.Email)
}

// ErrForbidden indicates an authenticated caller lacks the admin role.
type ErrForbidden struct{}

func (e *ErrForbidden) Error() string {
	return "admin role required"
}

// ErrBadRequest indicates a body or query that cannot be read.
type ErrBadRequest struct {
	Message string
}

func (e *ErrBadRequest) Error() string {
	return e.Message
}

// ErrUpstream indicates the email API rejected or failed a send.
type ErrUpstream struct {
	Cause error
}

func (e *ErrUpstream) Error() string {
	return fmt.Sprintf("email delivery failed: %v", e.Cause)
}

func (e *ErrUpstream) Unwrap() error {
	return e.Cause
}

// HTTPStatus returns the HTTP status code for an error.
func HTTPStatus(err error) int {
	var (
		notFound   *ErrUserNotFound
		forbidden  *ErrForbidden
		badRequest *ErrBadRequest
		upstream   *ErrUpstream
		invalid    *validation.Error
		sendErr    *email.SendError
	)
	switch {
	case errors.As(err, &notFound), errors.Is(err, notify.ErrUserNotFound):
		return http.StatusNotFound
	case errors.As(err, &forbidden):
		return http.StatusForbidden
	case errors.As(err, &badRequest), errors.As(err, &invalid), errors.Is(err, notify.ErrInvalidLink):
		return http.StatusBadRequest
	case errors.As(err, &upstream), errors.As(err, &sendErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
