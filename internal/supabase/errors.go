package supabase

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Error is an error response from the backend.
type Error struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Details    string `json:"details,omitempty"`
	Hint       string `json:"hint,omitempty"`
	StatusCode int    `json:"-"`
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("supabase error %d (%s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("supabase error %d: %s", e.StatusCode, e.Message)
}

// UserMessage returns a message fit for showing to the user.
func (e *Error) UserMessage() string {
	switch {
	case e.StatusCode == http.StatusTooManyRequests:
		return "Too many attempts. Please wait a moment and try again."
	case e.Message != "":
		return e.Message
	default:
		return "Something went wrong. Please try again."
	}
}

// IsStatus reports whether err is a backend error with the given HTTP status.
func IsStatus(err error, status int) bool {
	var se *Error
	return errors.As(err, &se) && se.StatusCode == status
}

// parseError converts an error body into *Error. PostgREST uses message/details/hint,
// GoTrue uses msg or error/error_description.
func parseError(body []byte, statusCode int) error {
	var resp struct {
		Code             any    `json:"code"`
		Message          string `json:"message"`
		Msg              string `json:"msg"`
		Details          string `json:"details"`
		Hint             string `json:"hint"`
		Error            string `json:"error"`
		ErrorDescription string `json:"error_description"`
		ErrorCode        string `json:"error_code"`
	}

	if err := json.Unmarshal(body, &resp); err != nil {
		return &Error{Code: "unknown", Message: string(body), StatusCode: statusCode}
	}

	msg := resp.Message
	for _, alt := range []string{resp.Msg, resp.ErrorDescription, resp.Error} {
		if msg == "" {
			msg = alt
		}
	}

	code := resp.ErrorCode
	if s, ok := resp.Code.(string); ok && code == "" {
		code = s
	}

	return &Error{
		Code:       code,
		Message:    msg,
		Details:    resp.Details,
		Hint:       resp.Hint,
		StatusCode: statusCode,
	}
}
