package worker

import (
	"context"
	"errors"

	"github.com/kariro/kariro/internal/fetch"
)

// errNoDescription means the task had no job description text to work from:
// nothing was supplied, the fetch returned an empty page, or the application
// row has no description.
var errNoDescription = errors.New("no job description text available")

// Sanitized failure messages stored on the tracking record and shown to the
// polling client. Raw error detail stays in the server logs only; provider and
// infrastructure internals must never reach the user.
const (
	msgFetchFailed    = "Failed to fetch the job posting URL"
	msgTimeout        = "Request timed out while processing"
	msgNoDescription  = "No job description text available"
	msgURLBlocked     = "The provided URL is not accessible"
	msgGenericFailure = "Analysis failed. Please try again later."
)

// sanitizeError maps an internal failure to its user-facing message.
func sanitizeError(err error) string {
	switch {
	case errors.Is(err, fetch.ErrBlocked):
		return msgURLBlocked
	case errors.Is(err, fetch.ErrInvalidURL), errors.Is(err, fetch.ErrUpstream), errors.Is(err, fetch.ErrTooLarge):
		return msgFetchFailed
	case errors.Is(err, context.DeadlineExceeded):
		return msgTimeout
	case errors.Is(err, errNoDescription):
		return msgNoDescription
	default:
		return msgGenericFailure
	}
}
