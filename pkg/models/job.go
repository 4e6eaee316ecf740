package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	JobStatusProcessing = "processing"
	JobStatusCompleted  = "completed"
	JobStatusFailed     = "failed"
)

// Job type discriminants. One queue carries all four; the worker dispatches
// on this value.
const (
	JobTypeAnalyze       = "analyze-job"
	JobTypeCoverLetter   = "generate-cover-letter"
	JobTypeInterviewPrep = "generate-interview-prep"
	JobTypeResumeGap     = "analyze-resume-gap"
)

// AIJob is the tracking record for an async AI job. The API returns job_id on
// submission; the client polls GET /api/v1/ai/jobs/{job_id} until status is
// completed or failed. JobID is the correlation key shared with the queue
// entry and is generated before either write.
//
// A poll answered from the status cache carries only user_id, job_id, and
// status; the zero-valued row fields are omitted from the JSON.
type AIJob struct {
	ID            uuid.UUID       `db:"id"             json:"id,omitzero"`
	UserID        uuid.UUID       `db:"user_id"        json:"user_id"`
	ApplicationID *uuid.UUID      `db:"application_id" json:"application_id,omitempty"`
	JobID         string          `db:"job_id"         json:"job_id"`
	Type          string          `db:"type"           json:"type,omitempty"`
	Status        string          `db:"status"         json:"status"`
	Input         json.RawMessage `db:"input"          json:"-"`
	Result        json.RawMessage `db:"result"         json:"result,omitempty"`
	Error         *string         `db:"error"          json:"error,omitempty"`
	CreatedAt     time.Time       `db:"created_at"     json:"created_at,omitzero"`
	UpdatedAt     time.Time       `db:"updated_at"     json:"updated_at,omitzero"`
}

// Terminal reports whether the job has reached a state that never changes.
func (j *AIJob) Terminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}

// EnqueuedJob is the admission response: the correlation id plus the initial
// status, always "processing".
type EnqueuedJob struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}
