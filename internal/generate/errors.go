package generate

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrEmptyResponse means the backend answered with no text.
	ErrEmptyResponse = errors.New("generate: empty response")
	// ErrNoItems means the text held no parsable items.
	ErrNoItems = errors.New("generate: no items in response")
	// ErrQuotaExhausted means the local daily budget for a model is spent.
	ErrQuotaExhausted = errors.New("generate: local quota exhausted")
)

// APIError is a non-2xx answer from the generation API.
type APIError struct {
	Status  int    // HTTP status
	Code    string // provider status string, e.g. RESOURCE_EXHAUSTED
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("generation api status %d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("generation api status %d: %s", e.Status, e.Message)
}

// IsRetryable reports whether err should move the chain to the next model:
// rate limits, overload and local budget exhaustion.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrQuotaExhausted) {
		return true
	}
	var ae *APIError
	if errors.As(err, &ae) {
		switch {
		case ae.Status == http.StatusTooManyRequests, ae.Status == http.StatusServiceUnavailable:
			return true
		case ae.Code == "RESOURCE_EXHAUSTED", ae.Code == "UNAVAILABLE":
			return true
		}
		return strings.Contains(strings.ToLower(ae.Message), "overloaded")
	}
	// backends that only surface text
	msg := err.Error()
	for _, s := range []string{"429", "RESOURCE_EXHAUSTED", "503", "UNAVAILABLE", "overloaded"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
