package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// StatusError is returned when the backend answers with a non-2xx status
// or a {success:false} envelope.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf(
		"api error (%d) on %s %s: %s",
		e.StatusCode, e.Method, e.Path, e.Message,
	)
}

func newStatusError(method, path string, status int, body []byte) *StatusError {
	msg := string(body)

	var env envelope
	if json.Unmarshal(body, &env) == nil {
		if m := env.errorMessage(); m != "" {
			msg = m
		}
	}
	if msg == "" {
		msg = http.StatusText(status)
	}

	return &StatusError{
		Method:     method,
		Path:       path,
		StatusCode: status,
		Message:    msg,
	}
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode
	}
	return 0
}

// IsAuthError reports whether err (or any error in its chain) is a 401.
func IsAuthError(err error) bool {
	return StatusCode(err) == http.StatusUnauthorized
}

// IsNotFound reports whether err (or any error in its chain) is a 404.
func IsNotFound(err error) bool {
	return StatusCode(err) == http.StatusNotFound
}

// IsForbidden reports whether err (or any error in its chain) is a 403.
func IsForbidden(err error) bool {
	return StatusCode(err) == http.StatusForbidden
}
