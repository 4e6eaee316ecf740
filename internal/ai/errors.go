package ai

import "errors"

var (
	// ErrInvalidInput means the request is missing required fields
	// (e.g. neither jobDescription nor jobUrl on an analyze request).
	ErrInvalidInput = errors.New("invalid input")

	// ErrTooManyPending is the global per-user pending-job cap.
	ErrTooManyPending = errors.New("too many pending jobs")

	// Per-application artifact caps.
	ErrCoverLetterLimit   = errors.New("cover letter limit reached for application")
	ErrInterviewPrepLimit = errors.New("interview prep limit reached for application")
	ErrResumeGapLimit     = errors.New("resume gap analysis limit reached for application")

	// ErrQueueUnavailable means queue submission failed and the tracking
	// record was compensated (deleted).
	ErrQueueUnavailable = errors.New("job queue unavailable")

	// Provider-level errors surfaced by implementations of models.AIProvider.
	ErrProviderUnavailable = errors.New("ai provider unavailable")
	ErrInvalidResponse     = errors.New("ai provider returned invalid response")
)
