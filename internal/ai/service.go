package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/kariro/kariro/internal/cache"
	"github.com/kariro/kariro/internal/config"
	"github.com/kariro/kariro/internal/queue"
	"github.com/kariro/kariro/internal/store"
	"github.com/kariro/kariro/pkg/models"
)

const jobStatusTTL = 30 * time.Minute

// Enqueuer is the queue surface admission depends on.
type Enqueuer interface {
	Enqueue(ctx context.Context, taskType string, payload any, opts queue.Options) error
}

// AnalyzeJobRequest is a validated ad-hoc analysis submission.
type AnalyzeJobRequest struct {
	JobDescription        string
	JobURL                string
	ApplicationID         *uuid.UUID
	AutoCreateApplication bool
}

// CoverLetterRequest is a validated cover letter submission.
type CoverLetterRequest struct {
	ApplicationID uuid.UUID
	Tone          string
}

// Service handles job admission: ownership and quota checks, the tracking
// record insert, and queue submission with compensation on failure.
type Service struct {
	store  store.Store
	queue  Enqueuer
	cache  cache.Cache
	limits config.LimitsConfig
	qcfg   config.QueueConfig
}

// NewService creates a new admission Service.
func NewService(st store.Store, q Enqueuer, ca cache.Cache, limits config.LimitsConfig, qcfg config.QueueConfig) *Service {
	return &Service{store: st, queue: q, cache: ca, limits: limits, qcfg: qcfg}
}

// EnqueueAnalyzeJob admits an ad-hoc job analysis. When ApplicationID is set
// the caller must own it; unlike the application-scoped types there is no
// per-application artifact cap for analyses.
func (s *Service) EnqueueAnalyzeJob(ctx context.Context, userID uuid.UUID, req AnalyzeJobRequest) (*models.EnqueuedJob, error) {
	if req.JobDescription == "" && req.JobURL == "" {
		return nil, fmt.Errorf("%w: either jobDescription or jobUrl must be provided", ErrInvalidInput)
	}

	if req.ApplicationID != nil {
		if _, err := s.store.GetApplication(ctx, userID, *req.ApplicationID); err != nil {
			return nil, err
		}
	}

	if err := s.enforcePendingCap(ctx, userID); err != nil {
		return nil, err
	}

	jobID := uuid.NewString()
	payload := AnalyzeJobPayload{
		UserID:                userID,
		JobID:                 jobID,
		JobDescription:        req.JobDescription,
		JobURL:                req.JobURL,
		ApplicationID:         req.ApplicationID,
		AutoCreateApplication: req.AutoCreateApplication,
	}
	return s.admit(ctx, userID, req.ApplicationID, jobID, models.JobTypeAnalyze, payload)
}

// EnqueueCoverLetterJob admits a cover letter generation for an owned
// application, capped per application.
func (s *Service) EnqueueCoverLetterJob(ctx context.Context, userID uuid.UUID, req CoverLetterRequest) (*models.EnqueuedJob, error) {
	if !models.ValidTone(req.Tone) {
		return nil, fmt.Errorf("%w: unknown tone %q", ErrInvalidInput, req.Tone)
	}

	if _, err := s.store.GetApplication(ctx, userID, req.ApplicationID); err != nil {
		return nil, err
	}

	n, err := s.store.CountCoverLetters(ctx, userID, req.ApplicationID)
	if err != nil {
		return nil, fmt.Errorf("count cover letters: %w", err)
	}
	if n >= s.limits.MaxCoverLetters {
		return nil, ErrCoverLetterLimit
	}

	if err := s.enforcePendingCap(ctx, userID); err != nil {
		return nil, err
	}

	jobID := uuid.NewString()
	payload := CoverLetterPayload{
		UserID:        userID,
		JobID:         jobID,
		ApplicationID: req.ApplicationID,
		Tone:          req.Tone,
	}
	appID := req.ApplicationID
	return s.admit(ctx, userID, &appID, jobID, models.JobTypeCoverLetter, payload)
}

// EnqueueInterviewPrepJob admits interview prep generation for an owned
// application, capped per application.
func (s *Service) EnqueueInterviewPrepJob(ctx context.Context, userID, applicationID uuid.UUID) (*models.EnqueuedJob, error) {
	if _, err := s.store.GetApplication(ctx, userID, applicationID); err != nil {
		return nil, err
	}

	n, err := s.store.CountInterviewPreps(ctx, userID, applicationID)
	if err != nil {
		return nil, fmt.Errorf("count interview preps: %w", err)
	}
	if n >= s.limits.MaxInterviewPreps {
		return nil, ErrInterviewPrepLimit
	}

	if err := s.enforcePendingCap(ctx, userID); err != nil {
		return nil, err
	}

	jobID := uuid.NewString()
	payload := InterviewPrepPayload{UserID: userID, JobID: jobID, ApplicationID: applicationID}
	return s.admit(ctx, userID, &applicationID, jobID, models.JobTypeInterviewPrep, payload)
}

// EnqueueResumeGapJob admits a resume gap analysis for an owned application,
// capped per application.
func (s *Service) EnqueueResumeGapJob(ctx context.Context, userID, applicationID uuid.UUID) (*models.EnqueuedJob, error) {
	if _, err := s.store.GetApplication(ctx, userID, applicationID); err != nil {
		return nil, err
	}

	n, err := s.store.CountResumeGaps(ctx, userID, applicationID)
	if err != nil {
		return nil, fmt.Errorf("count resume gaps: %w", err)
	}
	if n >= s.limits.MaxResumeGaps {
		return nil, ErrResumeGapLimit
	}

	if err := s.enforcePendingCap(ctx, userID); err != nil {
		return nil, err
	}

	jobID := uuid.NewString()
	payload := ResumeGapPayload{UserID: userID, JobID: jobID, ApplicationID: applicationID}
	return s.admit(ctx, userID, &applicationID, jobID, models.JobTypeResumeGap, payload)
}

// GetJobByID returns the tracking record for a correlation id, scoped to the
// caller. A record owned by another user reads as not found.
//
// A cached "processing" status answers the poll without touching Postgres;
// clients poll every two seconds and almost every poll lands here. Terminal
// statuses fall through to the store, which holds the result and error
// columns the cache does not.
func (s *Service) GetJobByID(ctx context.Context, userID uuid.UUID, jobID string) (*models.AIJob, error) {
	status, ok, err := s.cache.GetJobStatus(ctx, userID, jobID)
	if err == nil && ok && status == models.JobStatusProcessing {
		return &models.AIJob{UserID: userID, JobID: jobID, Status: models.JobStatusProcessing}, nil
	}
	return s.store.GetAIJobByJobID(ctx, userID, jobID)
}

// enforcePendingCap counts the caller's processing jobs across all types.
// Read-then-decide without a lock: two racing admissions may both pass a cap
// by one, which the design tolerates.
func (s *Service) enforcePendingCap(ctx context.Context, userID uuid.UUID) error {
	n, err := s.store.CountProcessingJobs(ctx, userID)
	if err != nil {
		return fmt.Errorf("count processing jobs: %w", err)
	}
	if n >= s.limits.MaxPendingJobs {
		return ErrTooManyPending
	}
	return nil
}

// admit writes the tracking record, then submits to the queue. If submission
// fails the record is deleted; it must never be left in processing state
// with no queued work, or the polling client would wait on it forever.
func (s *Service) admit(ctx context.Context, userID uuid.UUID, applicationID *uuid.UUID, jobID, jobType string, payload any) (*models.EnqueuedJob, error) {
	input, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal job input: %w", err)
	}

	now := time.Now().UTC()
	job := &models.AIJob{
		ID:            uuid.New(),
		UserID:        userID,
		ApplicationID: applicationID,
		JobID:         jobID,
		Type:          jobType,
		Status:        models.JobStatusProcessing,
		Input:         input,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.store.CreateAIJob(ctx, job); err != nil {
		return nil, fmt.Errorf("create tracking record: %w", err)
	}

	err = s.queue.Enqueue(ctx, jobType, payload, queue.Options{
		JobID:    jobID,
		Attempts: s.qcfg.Attempts,
		Backoff:  s.qcfg.Backoff,
	})
	if err != nil {
		slog.Error("queue submission failed, compensating tracking record",
			"job_id", jobID, "type", jobType, "error", err)
		if delErr := s.store.DeleteAIJobByJobID(context.WithoutCancel(ctx), jobID); delErr != nil {
			// Best-effort once; a leaked row is logged, not retried.
			slog.Error("compensating delete failed", "job_id", jobID, "error", delErr)
		}
		return nil, ErrQueueUnavailable
	}

	_ = s.cache.SetJobStatus(ctx, userID, jobID, models.JobStatusProcessing, jobStatusTTL)

	return &models.EnqueuedJob{JobID: jobID, Status: models.JobStatusProcessing}, nil
}
