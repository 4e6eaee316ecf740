package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Cover letter tones.
const (
	ToneFormal         = "formal"
	ToneConversational = "conversational"
	ToneConfident      = "confident"
)

// ValidTone reports whether t is a supported cover letter tone.
func ValidTone(t string) bool {
	return t == ToneFormal || t == ToneConversational || t == ToneConfident
}

// CoverLetter is a persisted generated letter for an application.
type CoverLetter struct {
	ID            uuid.UUID `db:"id"             json:"id"`
	UserID        uuid.UUID `db:"user_id"        json:"user_id"`
	ApplicationID uuid.UUID `db:"application_id" json:"application_id"`
	Tone          string    `db:"tone"           json:"tone"`
	Content       string    `db:"content"        json:"content"`
	CreatedAt     time.Time `db:"created_at"     json:"created_at"`
}

// InterviewPrep is a persisted interview preparation kit for an application.
type InterviewPrep struct {
	ID            uuid.UUID       `db:"id"             json:"id"`
	UserID        uuid.UUID       `db:"user_id"        json:"user_id"`
	ApplicationID uuid.UUID       `db:"application_id" json:"application_id"`
	Content       json.RawMessage `db:"content"        json:"content"`
	CreatedAt     time.Time       `db:"created_at"     json:"created_at"`
}

// ResumeGapAnalysis is a persisted resume gap report for an application.
type ResumeGapAnalysis struct {
	ID            uuid.UUID       `db:"id"             json:"id"`
	UserID        uuid.UUID       `db:"user_id"        json:"user_id"`
	ApplicationID uuid.UUID       `db:"application_id" json:"application_id"`
	Content       json.RawMessage `db:"content"        json:"content"`
	CreatedAt     time.Time       `db:"created_at"     json:"created_at"`
}
