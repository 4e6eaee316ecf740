package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/kariro/kariro/internal/ai"
	mw "github.com/kariro/kariro/internal/api/middleware"
	"github.com/kariro/kariro/internal/api/response"
	"github.com/kariro/kariro/internal/store"
	"github.com/kariro/kariro/pkg/models"
)

// AIService defines the admission surface the AI handlers depend on.
type AIService interface {
	EnqueueAnalyzeJob(ctx context.Context, userID uuid.UUID, req ai.AnalyzeJobRequest) (*models.EnqueuedJob, error)
	EnqueueCoverLetterJob(ctx context.Context, userID uuid.UUID, req ai.CoverLetterRequest) (*models.EnqueuedJob, error)
	EnqueueInterviewPrepJob(ctx context.Context, userID, applicationID uuid.UUID) (*models.EnqueuedJob, error)
	EnqueueResumeGapJob(ctx context.Context, userID, applicationID uuid.UUID) (*models.EnqueuedJob, error)
	GetJobByID(ctx context.Context, userID uuid.UUID, jobID string) (*models.AIJob, error)
}

// NewAnalyzeJobHandler returns an http.HandlerFunc for POST /api/v1/ai/analyze-job.
func NewAnalyzeJobHandler(svc AIService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := mw.GetUserID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing user", nil)
			return
		}

		var req struct {
			JobDescription        string `json:"jobDescription"`
			JobURL                string `json:"jobUrl"`
			ApplicationID         string `json:"applicationId"`
			AutoCreateApplication bool   `json:"autoCreateApplication"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_INPUT", "Invalid JSON body", nil)
			return
		}

		svcReq := ai.AnalyzeJobRequest{
			JobDescription:        req.JobDescription,
			JobURL:                req.JobURL,
			AutoCreateApplication: req.AutoCreateApplication,
		}
		if req.ApplicationID != "" {
			appID, err := uuid.Parse(req.ApplicationID)
			if err != nil {
				response.Error(w, http.StatusBadRequest, "INVALID_INPUT", "applicationId must be a valid UUID", nil)
				return
			}
			svcReq.ApplicationID = &appID
		}

		job, err := svc.EnqueueAnalyzeJob(r.Context(), userID, svcReq)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		response.Accepted(w, job)
	}
}

// NewCoverLetterHandler returns an http.HandlerFunc for POST /api/v1/ai/cover-letter.
func NewCoverLetterHandler(svc AIService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := mw.GetUserID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing user", nil)
			return
		}

		var req struct {
			ApplicationID string `json:"applicationId"`
			Tone          string `json:"tone"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_INPUT", "Invalid JSON body", nil)
			return
		}

		appID, err := uuid.Parse(req.ApplicationID)
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_INPUT", "applicationId must be a valid UUID", nil)
			return
		}
		tone := req.Tone
		if tone == "" {
			tone = models.ToneConversational
		}

		job, err := svc.EnqueueCoverLetterJob(r.Context(), userID, ai.CoverLetterRequest{
			ApplicationID: appID,
			Tone:          tone,
		})
		if err != nil {
			writeServiceError(w, err)
			return
		}
		response.Accepted(w, job)
	}
}

// NewInterviewPrepHandler returns an http.HandlerFunc for POST /api/v1/ai/interview-prep.
func NewInterviewPrepHandler(svc AIService) http.HandlerFunc {
	return applicationScopedHandler(svc.EnqueueInterviewPrepJob)
}

// NewResumeGapHandler returns an http.HandlerFunc for POST /api/v1/ai/resume-gap.
func NewResumeGapHandler(svc AIService) http.HandlerFunc {
	return applicationScopedHandler(svc.EnqueueResumeGapJob)
}

// applicationScopedHandler covers the submissions whose only input is an
// application id.
func applicationScopedHandler(enqueue func(ctx context.Context, userID, applicationID uuid.UUID) (*models.EnqueuedJob, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := mw.GetUserID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing user", nil)
			return
		}

		var req struct {
			ApplicationID string `json:"applicationId"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_INPUT", "Invalid JSON body", nil)
			return
		}

		appID, err := uuid.Parse(req.ApplicationID)
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_INPUT", "applicationId must be a valid UUID", nil)
			return
		}

		job, err := enqueue(r.Context(), userID, appID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		response.Accepted(w, job)
	}
}

// NewPollJobHandler returns an http.HandlerFunc for GET /api/v1/ai/jobs/{jobID}.
// The response carries the full tracking record minus its input payload.
func NewPollJobHandler(svc AIService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := mw.GetUserID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing user", nil)
			return
		}

		jobID := chi.URLParam(r, "jobID")
		if jobID == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_INPUT", "jobID is required", nil)
			return
		}

		job, err := svc.GetJobByID(r.Context(), userID, jobID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		response.JSON(w, job)
	}
}

// writeServiceError maps admission errors to HTTP codes. Unknown errors never
// leak detail to the client.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ai.ErrInvalidInput):
		response.Error(w, http.StatusBadRequest, "INVALID_INPUT", err.Error(), nil)
	case errors.Is(err, store.ErrNotFound):
		response.Error(w, http.StatusNotFound, "NOT_FOUND", "Resource not found", nil)
	case errors.Is(err, ai.ErrTooManyPending):
		response.Error(w, http.StatusTooManyRequests, "QUEUE_LIMIT",
			"Too many jobs are still processing, wait for them to finish", nil)
	case errors.Is(err, ai.ErrCoverLetterLimit):
		response.Error(w, http.StatusTooManyRequests, "COVER_LETTER_LIMIT",
			"Cover letter limit reached for this application", nil)
	case errors.Is(err, ai.ErrInterviewPrepLimit):
		response.Error(w, http.StatusTooManyRequests, "INTERVIEW_PREP_LIMIT",
			"Interview prep limit reached for this application", nil)
	case errors.Is(err, ai.ErrResumeGapLimit):
		response.Error(w, http.StatusTooManyRequests, "RESUME_GAP_LIMIT",
			"Resume gap analysis limit reached for this application", nil)
	case errors.Is(err, ai.ErrQueueUnavailable):
		response.Error(w, http.StatusServiceUnavailable, "QUEUE_UNAVAILABLE",
			"Job queue is unavailable, please try again later", nil)
	default:
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
			"An unexpected error occurred", nil)
	}
}
