package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrUnauthorized is wrapped by every 401 response.
	ErrUnauthorized = errors.New("api: unauthorized")
	// ErrEmptyResponse is returned when a required field is missing from a response.
	ErrEmptyResponse = errors.New("api: empty response")
	// ErrNotAcknowledged is returned when the backend answers without an ok flag.
	ErrNotAcknowledged = errors.New("api: request not acknowledged")
)

// Error is a non-2xx response from the backend.
type Error struct {
	Method  string
	Path    string
	Status  int
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api: %s %s: %d %s", e.Method, e.Path, e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("api: %s %s: %d %s", e.Method, e.Path, e.Status, e.Message)
}

// Unwrap exposes ErrUnauthorized for 401 responses.
func (e *Error) Unwrap() error {
	if e.Status == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	return nil
}

// IsUnauthorized reports whether err came from a 401 response.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

// errorMessage extracts a human message from an error body. Both the fiber
// default ({"error": ...}) and {"message": ...} shapes are understood.
func errorMessage(body []byte) string {
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		if len(body) > 0 && len(body) < 256 {
			return string(body)
		}
		return ""
	}
	if payload.Error != "" {
		return payload.Error
	}
	return payload.Message
}
