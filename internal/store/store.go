package store

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/kariro/kariro/pkg/models"
)

var ErrNotFound = errors.New("resource not found")
var ErrDuplicateKey = errors.New("duplicate key violation")

// Store is the data access interface. All database operations go through here.
// Ownership-scoped reads take the caller's user id and report a row owned by
// someone else as ErrNotFound, never as a permission error.
type Store interface {
	Ping(ctx context.Context) error

	GetSessionsByPrefix(ctx context.Context, prefix string) ([]*models.Session, error)
	TouchSession(ctx context.Context, id uuid.UUID) error

	GetApplication(ctx context.Context, userID, id uuid.UUID) (*models.Application, error)
	CreateApplication(ctx context.Context, app *models.Application) error

	GetProfile(ctx context.Context, userID uuid.UUID) (*models.Profile, error)

	CreateAIJob(ctx context.Context, job *models.AIJob) error
	GetAIJobByJobID(ctx context.Context, userID uuid.UUID, jobID string) (*models.AIJob, error)
	DeleteAIJobByJobID(ctx context.Context, jobID string) error
	MarkAIJobCompleted(ctx context.Context, jobID string, result json.RawMessage, applicationID *uuid.UUID) error
	MarkAIJobFailed(ctx context.Context, jobID string, errMsg string) error

	CountProcessingJobs(ctx context.Context, userID uuid.UUID) (int, error)
	CountCoverLetters(ctx context.Context, userID, applicationID uuid.UUID) (int, error)
	CountInterviewPreps(ctx context.Context, userID, applicationID uuid.UUID) (int, error)
	CountResumeGaps(ctx context.Context, userID, applicationID uuid.UUID) (int, error)

	GetLatestAnalysisResult(ctx context.Context, applicationID uuid.UUID) (json.RawMessage, error)

	CreateCoverLetter(ctx context.Context, letter *models.CoverLetter) error
	CreateInterviewPrep(ctx context.Context, prep *models.InterviewPrep) error
	CreateResumeGapAnalysis(ctx context.Context, analysis *models.ResumeGapAnalysis) error
}
