package taskcluster

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrNotFound matches a missing task or index entry, whether reported by
// the remote service or by the local one.
var ErrNotFound = errors.New("not found")

// APIError is a non-2xx answer from the Queue or Index.
type APIError struct {
	StatusCode int
	Method     string
	URL        string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s %s: HTTP %d", e.Method, e.URL, e.StatusCode)
	}
	return fmt.Sprintf("%s %s: HTTP %d: %s", e.Method, e.URL, e.StatusCode, e.Message)
}

// Is makes a 404 APIError match ErrNotFound.
func (e *APIError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}

// IsNotFound reports whether err means the task or index entry does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
