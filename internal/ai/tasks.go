package ai

import "github.com/google/uuid"

// Queue task payloads. The task type string (models.JobType*) selects which
// of these the worker decodes; together they form the tagged union carried by
// the single ai-jobs queue.

// AnalyzeJobPayload runs an ad-hoc job posting analysis. Exactly one of
// JobDescription or JobURL must be set; the worker fetches JobURL through the
// hardened outbound fetcher.
type AnalyzeJobPayload struct {
	UserID                uuid.UUID  `json:"user_id"`
	JobID                 string     `json:"job_id"`
	JobDescription        string     `json:"job_description,omitempty"`
	JobURL                string     `json:"job_url,omitempty"`
	ApplicationID         *uuid.UUID `json:"application_id,omitempty"`
	AutoCreateApplication bool       `json:"auto_create_application,omitempty"`
}

// CoverLetterPayload generates a cover letter for an owned application.
type CoverLetterPayload struct {
	UserID        uuid.UUID `json:"user_id"`
	JobID         string    `json:"job_id"`
	ApplicationID uuid.UUID `json:"application_id"`
	Tone          string    `json:"tone"`
}

// InterviewPrepPayload generates interview preparation materials.
type InterviewPrepPayload struct {
	UserID        uuid.UUID `json:"user_id"`
	JobID         string    `json:"job_id"`
	ApplicationID uuid.UUID `json:"application_id"`
}

// ResumeGapPayload compares the candidate profile against the application's
// job description.
type ResumeGapPayload struct {
	UserID        uuid.UUID `json:"user_id"`
	JobID         string    `json:"job_id"`
	ApplicationID uuid.UUID `json:"application_id"`
}
