package workpools

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

// ErrNotFound is returned when the backend has no work pool with the requested name.
var ErrNotFound = errors.New("work pool not found")

// APIError is a non-2xx answer from the backend other than 404.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s %s: HTTP %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

// truncate cuts s to at most maxLen bytes without splitting a UTF-8 sequence.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
