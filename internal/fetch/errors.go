// Package fetch acquires page content through an ordered chain of backends.
package fetch

import (
	"errors"
	"fmt"
	"strings"
)

// FailureKind classifies why a backend could not produce content.
type FailureKind string

// Failure kinds. Only RateLimited is retried against the same backend;
// everything else falls through to the next backend immediately.
const (
	FailureRateLimited FailureKind = "rate_limited"
	FailureBlocked     FailureKind = "blocked"
	FailureTimeout     FailureKind = "timeout"
	FailureNotFound    FailureKind = "not_found"
	FailureUnknown     FailureKind = "unknown"
)

// Error wraps a backend failure with its classification.
type Error struct {
	Kind    FailureKind
	Backend string
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s fetch failed (%s): %v", e.Backend, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf extracts the failure kind from err, defaulting to unknown.
func KindOf(err error) FailureKind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return FailureUnknown
}

// classifyStatus maps an HTTP status code to a failure kind.
func classifyStatus(status int) FailureKind {
	switch {
	case status == 429:
		return FailureRateLimited
	case status == 403 || status == 401:
		return FailureBlocked
	case status == 404 || status == 410:
		return FailureNotFound
	case status >= 500:
		return FailureUnknown
	default:
		return FailureUnknown
	}
}

// classifyMessage looks for rate-limit and timeout hints in error text from
// backends that do not surface status codes.
func classifyMessage(msg string) FailureKind {
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "rate limit") || strings.Contains(lower, "too many requests") || strings.Contains(lower, "429"):
		return FailureRateLimited
	case strings.Contains(lower, "timeout") || strings.Contains(lower, "deadline exceeded"):
		return FailureTimeout
	case strings.Contains(lower, "forbidden") || strings.Contains(lower, "blocked"):
		return FailureBlocked
	default:
		return FailureUnknown
	}
}
