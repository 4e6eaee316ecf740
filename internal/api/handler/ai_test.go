package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/kariro/kariro/internal/ai"
	mw "github.com/kariro/kariro/internal/api/middleware"
	"github.com/kariro/kariro/internal/store"
	"github.com/kariro/kariro/pkg/models"
)

// --- mock AIService ---

type mockService struct {
	job *models.AIJob
	err error

	analyzeReq *ai.AnalyzeJobRequest
	letterReq  *ai.CoverLetterRequest
}

func (m *mockService) enqueued() (*models.EnqueuedJob, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &models.EnqueuedJob{JobID: "job-123", Status: models.JobStatusProcessing}, nil
}

func (m *mockService) EnqueueAnalyzeJob(_ context.Context, _ uuid.UUID, req ai.AnalyzeJobRequest) (*models.EnqueuedJob, error) {
	m.analyzeReq = &req
	return m.enqueued()
}
func (m *mockService) EnqueueCoverLetterJob(_ context.Context, _ uuid.UUID, req ai.CoverLetterRequest) (*models.EnqueuedJob, error) {
	m.letterReq = &req
	return m.enqueued()
}
func (m *mockService) EnqueueInterviewPrepJob(_ context.Context, _, _ uuid.UUID) (*models.EnqueuedJob, error) {
	return m.enqueued()
}
func (m *mockService) EnqueueResumeGapJob(_ context.Context, _, _ uuid.UUID) (*models.EnqueuedJob, error) {
	return m.enqueued()
}
func (m *mockService) GetJobByID(_ context.Context, _ uuid.UUID, _ string) (*models.AIJob, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.job, nil
}

// --- helpers ---

func postReq(t *testing.T, path string, body any, userID uuid.UUID) *http.Request {
	t.Helper()
	b, _ := json.Marshal(body)
	r := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(b))
	r.Header.Set("Content-Type", "application/json")
	return r.WithContext(mw.SetUserID(r.Context(), userID))
}

func errCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var env struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return env.Error.Code
}

// --- tests ---

func TestAnalyzeJobHandler_Accepted(t *testing.T) {
	svc := &mockService{}
	h := NewAnalyzeJobHandler(svc)
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, postReq(t, "/api/v1/ai/analyze-job", map[string]any{
		"jobDescription": "We are hiring a Go engineer.",
	}, uuid.New()))

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	var env struct {
		Data models.EnqueuedJob `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Data.JobID != "job-123" {
		t.Errorf("unexpected job id: %q", env.Data.JobID)
	}
	if env.Data.Status != models.JobStatusProcessing {
		t.Errorf("unexpected status: %q", env.Data.Status)
	}
}

func TestAnalyzeJobHandler_BadApplicationID(t *testing.T) {
	h := NewAnalyzeJobHandler(&mockService{})
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, postReq(t, "/api/v1/ai/analyze-job", map[string]any{
		"jobDescription": "desc",
		"applicationId":  "not-a-uuid",
	}, uuid.New()))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if code := errCode(t, rec); code != "INVALID_INPUT" {
		t.Errorf("unexpected code: %q", code)
	}
}

func TestAnalyzeJobHandler_MissingUser(t *testing.T) {
	h := NewAnalyzeJobHandler(&mockService{})
	rec := httptest.NewRecorder()

	b, _ := json.Marshal(map[string]any{"jobDescription": "desc"})
	r := httptest.NewRequest(http.MethodPost, "/api/v1/ai/analyze-job", bytes.NewReader(b))
	h.ServeHTTP(rec, r)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestCoverLetterHandler_DefaultsTone(t *testing.T) {
	svc := &mockService{}
	h := NewCoverLetterHandler(svc)
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, postReq(t, "/api/v1/ai/cover-letter", map[string]any{
		"applicationId": uuid.NewString(),
	}, uuid.New()))

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	if svc.letterReq == nil || svc.letterReq.Tone != models.ToneConversational {
		t.Errorf("expected default tone, got %+v", svc.letterReq)
	}
}

func TestServiceErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"invalid input", ai.ErrInvalidInput, http.StatusBadRequest, "INVALID_INPUT"},
		{"not found", store.ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
		{"pending cap", ai.ErrTooManyPending, http.StatusTooManyRequests, "QUEUE_LIMIT"},
		{"cover letter cap", ai.ErrCoverLetterLimit, http.StatusTooManyRequests, "COVER_LETTER_LIMIT"},
		{"interview prep cap", ai.ErrInterviewPrepLimit, http.StatusTooManyRequests, "INTERVIEW_PREP_LIMIT"},
		{"resume gap cap", ai.ErrResumeGapLimit, http.StatusTooManyRequests, "RESUME_GAP_LIMIT"},
		{"queue down", ai.ErrQueueUnavailable, http.StatusServiceUnavailable, "QUEUE_UNAVAILABLE"},
		{"unexpected", errors.New("pq: connection reset"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewResumeGapHandler(&mockService{err: tt.err})
			rec := httptest.NewRecorder()

			h.ServeHTTP(rec, postReq(t, "/api/v1/ai/resume-gap", map[string]any{
				"applicationId": uuid.NewString(),
			}, uuid.New()))

			if rec.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d", tt.wantStatus, rec.Code)
			}
			if code := errCode(t, rec); code != tt.wantCode {
				t.Errorf("expected code %q, got %q", tt.wantCode, code)
			}
		})
	}
}

func TestPollJobHandler_ReturnsJobWithoutInput(t *testing.T) {
	userID := uuid.New()
	msg := "Failed to fetch the job posting URL"
	svc := &mockService{job: &models.AIJob{
		ID:     uuid.New(),
		UserID: userID,
		JobID:  "job-123",
		Type:   models.JobTypeAnalyze,
		Status: models.JobStatusFailed,
		Input:  json.RawMessage(`{"job_url":"http://secret.internal"}`),
		Error:  &msg,
	}}

	router := chi.NewRouter()
	router.Get("/api/v1/ai/jobs/{jobID}", NewPollJobHandler(svc))

	r := httptest.NewRequest(http.MethodGet, "/api/v1/ai/jobs/job-123", nil)
	r = r.WithContext(mw.SetUserID(r.Context(), userID))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, r)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var env struct {
		Data map[string]any `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Data["status"] != models.JobStatusFailed {
		t.Errorf("unexpected status: %v", env.Data["status"])
	}
	if env.Data["error"] != msg {
		t.Errorf("unexpected error message: %v", env.Data["error"])
	}
	if _, ok := env.Data["input"]; ok {
		t.Error("input payload must not be exposed to the client")
	}
}

func TestPollJobHandler_NotFound(t *testing.T) {
	router := chi.NewRouter()
	router.Get("/api/v1/ai/jobs/{jobID}", NewPollJobHandler(&mockService{err: store.ErrNotFound}))

	r := httptest.NewRequest(http.MethodGet, "/api/v1/ai/jobs/nope", nil)
	r = r.WithContext(mw.SetUserID(r.Context(), uuid.New()))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, r)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if code := errCode(t, rec); code != "NOT_FOUND" {
		t.Errorf("unexpected code: %q", code)
	}
}
