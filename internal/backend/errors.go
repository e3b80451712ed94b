package backend

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrUnauthorized matches 401 and 403 responses.
	ErrUnauthorized = errors.New("fleet api: unauthorized")

	// ErrNotFound matches 404 responses.
	ErrNotFound = errors.New("fleet api: not found")

	// ErrUnknownResource is returned for a resource name the API does not serve.
	ErrUnknownResource = errors.New("fleet api: unknown resource")
)

// APIError is a non-2xx response from the fleet API.
type APIError struct {
	Status  int
	Method  string
	Path    string
	Message string
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	return fmt.Sprintf("fleet api: %s %s: %d %s", e.Method, e.Path, e.Status, msg)
}

// Is lets errors.Is match the status-class sentinels.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden
	case ErrNotFound:
		return e.Status == http.StatusNotFound
	}
	return false
}

// Temporary reports whether retrying later may succeed.
func (e *APIError) Temporary() bool {
	return e.Status == http.StatusTooManyRequests || e.Status >= 500
}
