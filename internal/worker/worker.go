// Package worker executes queued AI tasks: it resolves the job description,
// gathers candidate context, calls the AI provider, persists artifacts, and
// moves the tracking record to its terminal state.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kariro/kariro/internal/ai"
	"github.com/kariro/kariro/internal/cache"
	"github.com/kariro/kariro/internal/fetch"
	"github.com/kariro/kariro/internal/queue"
	"github.com/kariro/kariro/internal/store"
	"github.com/kariro/kariro/pkg/models"
)

const (
	// maxContentChars caps generated text stored as an artifact.
	maxContentChars = 50_000
	statusTTL       = 30 * time.Minute
)

// Worker handles tasks from the ai-jobs queue.
type Worker struct {
	store    store.Store
	cache    cache.Cache
	provider models.AIProvider
	fetcher  *fetch.Fetcher
	timeout  time.Duration
	logger   *slog.Logger
}

// New creates a Worker. timeout bounds each provider call.
func New(st store.Store, ca cache.Cache, provider models.AIProvider, fetcher *fetch.Fetcher, timeout time.Duration, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{store: st, cache: ca, provider: provider, fetcher: fetcher, timeout: timeout, logger: logger}
}

// Handle is the queue handler. A returned error means the attempt failed and
// the queue should retry; permanent failures are absorbed after the tracking
// record is finalized so the queue does not redeliver them.
func (w *Worker) Handle(ctx context.Context, task *queue.Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v", r)
			w.logger.Error("worker panic", "job_id", task.ID, "type", task.Type, "panic", r)
			w.finalizeFailure(ctx, task, err)
		}
	}()

	w.logger.Info("processing task", "job_id", task.ID, "type", task.Type,
		"attempt", task.Attempt, "max_attempts", task.MaxAttempts)

	switch task.Type {
	case models.JobTypeAnalyze:
		err = w.processAnalyzeJob(ctx, task.Payload)
	case models.JobTypeCoverLetter:
		err = w.processCoverLetter(ctx, task.Payload)
	case models.JobTypeInterviewPrep:
		err = w.processInterviewPrep(ctx, task.Payload)
	case models.JobTypeResumeGap:
		err = w.processResumeGap(ctx, task.Payload)
	default:
		err = fmt.Errorf("unknown task type %q", task.Type)
	}

	if err == nil {
		w.logger.Info("task completed", "job_id", task.ID, "type", task.Type)
		return nil
	}

	w.logger.Error("task failed", "job_id", task.ID, "type", task.Type,
		"attempt", task.Attempt, "error", err)

	if permanent(err) || task.Attempt >= task.MaxAttempts {
		w.finalizeFailure(ctx, task, err)
		if permanent(err) {
			// Retrying cannot help; tell the queue the task is done.
			return nil
		}
	}
	return err
}

// permanent reports whether retrying the task could not change the outcome.
func permanent(err error) bool {
	return errorIsAny(err, errNoDescription, fetch.ErrBlocked, fetch.ErrInvalidURL, ai.ErrInvalidResponse)
}

// finalizeFailure moves the tracking record to failed with a sanitized
// message. Detached from ctx so shutdown cannot leave the record in limbo.
// The cache write evicts the "processing" entry the poll fast path serves;
// without it a poll could report processing until the TTL expires.
func (w *Worker) finalizeFailure(ctx context.Context, task *queue.Task, cause error) {
	ctx = context.WithoutCancel(ctx)
	if err := w.store.MarkAIJobFailed(ctx, task.ID, sanitizeError(cause)); err != nil {
		w.logger.Error("mark job failed", "job_id", task.ID, "error", err)
		return
	}
	// Every payload in the union carries the owner's id.
	var meta struct {
		UserID uuid.UUID `json:"user_id"`
	}
	_ = json.Unmarshal(task.Payload, &meta)
	_ = w.cache.SetJobStatus(ctx, meta.UserID, task.ID, models.JobStatusFailed, statusTTL)
}

// finalizeSuccess moves the tracking record to completed with the result
// payload, back-filling the application id when the task created one.
func (w *Worker) finalizeSuccess(ctx context.Context, userID uuid.UUID, jobID string, result any, applicationID *uuid.UUID) error {
	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	ctx = context.WithoutCancel(ctx)
	if err := w.store.MarkAIJobCompleted(ctx, jobID, raw, applicationID); err != nil {
		return err
	}
	_ = w.cache.SetJobStatus(ctx, userID, jobID, models.JobStatusCompleted, statusTTL)
	return nil
}

func (w *Worker) processAnalyzeJob(ctx context.Context, raw json.RawMessage) error {
	var p ai.AnalyzeJobPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return fmt.Errorf("%w: decode analyze payload: %v", ai.ErrInvalidResponse, err)
	}

	description := p.JobDescription
	if description == "" && p.JobURL != "" {
		fetched, err := w.fetcher.FetchText(ctx, p.JobURL)
		if err != nil {
			return err
		}
		description = fetched
	}
	if strings.TrimSpace(description) == "" {
		return errNoDescription
	}

	profile := w.profileOrNil(ctx, p.UserID)
	pr := buildAnalyzePrompt(description, profile)

	result, err := generateObject[models.JobAnalysisResult](ctx, w, pr, jobAnalysisSchema)
	if err != nil {
		return err
	}
	if result.FitScore < 0 {
		result.FitScore = 0
	} else if result.FitScore > 100 {
		result.FitScore = 100
	}

	applicationID := p.ApplicationID
	if p.AutoCreateApplication && applicationID == nil {
		app, err := w.createApplicationFromAnalysis(ctx, p, result, description)
		if err != nil {
			// Analysis succeeded; a failed auto-create downgrades to an
			// unattached result rather than failing the whole job.
			w.logger.Error("auto-create application failed", "job_id", p.JobID, "error", err)
		} else {
			applicationID = &app.ID
		}
	}

	return w.finalizeSuccess(ctx, p.UserID, p.JobID, result, applicationID)
}

func (w *Worker) processCoverLetter(ctx context.Context, raw json.RawMessage) error {
	var p ai.CoverLetterPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return fmt.Errorf("%w: decode cover letter payload: %v", ai.ErrInvalidResponse, err)
	}

	app, err := w.store.GetApplication(ctx, p.UserID, p.ApplicationID)
	if err != nil {
		return fmt.Errorf("load application: %w", err)
	}
	if app.JobDescription == nil || strings.TrimSpace(*app.JobDescription) == "" {
		return errNoDescription
	}

	profile := w.profileOrNil(ctx, p.UserID)
	analysis := w.analysisOrNil(ctx, p.ApplicationID)
	pr := buildCoverLetterPrompt(*app.JobDescription, profile, p.Tone, analysis)

	ictx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()
	text, err := w.provider.GenerateText(ictx, models.GenerateRequest{System: pr.System, Prompt: pr.User})
	if err != nil {
		return fmt.Errorf("generate cover letter: %w", err)
	}
	text = fetch.TruncateChars(strings.TrimSpace(text), maxContentChars)
	if text == "" {
		return fmt.Errorf("%w: provider returned empty letter", ai.ErrInvalidResponse)
	}

	letter := &models.CoverLetter{
		ID:            uuid.New(),
		UserID:        p.UserID,
		ApplicationID: p.ApplicationID,
		Tone:          p.Tone,
		Content:       text,
	}
	if err := w.store.CreateCoverLetter(context.WithoutCancel(ctx), letter); err != nil {
		return fmt.Errorf("save cover letter: %w", err)
	}

	result := models.CoverLetterResult{
		Content:       text,
		Tone:          p.Tone,
		ApplicationID: p.ApplicationID.String(),
	}
	return w.finalizeSuccess(ctx, p.UserID, p.JobID, result, nil)
}

func (w *Worker) processInterviewPrep(ctx context.Context, raw json.RawMessage) error {
	var p ai.InterviewPrepPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return fmt.Errorf("%w: decode interview prep payload: %v", ai.ErrInvalidResponse, err)
	}

	app, err := w.store.GetApplication(ctx, p.UserID, p.ApplicationID)
	if err != nil {
		return fmt.Errorf("load application: %w", err)
	}
	if app.JobDescription == nil || strings.TrimSpace(*app.JobDescription) == "" {
		return errNoDescription
	}

	profile := w.profileOrNil(ctx, p.UserID)
	analysis := w.analysisOrNil(ctx, p.ApplicationID)
	pr := buildInterviewPrepPrompt(*app.JobDescription, profile, analysis)

	result, err := generateObject[models.InterviewPrepResult](ctx, w, pr, interviewPrepSchema)
	if err != nil {
		return err
	}

	content, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal interview prep: %w", err)
	}
	prep := &models.InterviewPrep{
		ID:            uuid.New(),
		UserID:        p.UserID,
		ApplicationID: p.ApplicationID,
		Content:       content,
	}
	if err := w.store.CreateInterviewPrep(context.WithoutCancel(ctx), prep); err != nil {
		return fmt.Errorf("save interview prep: %w", err)
	}

	return w.finalizeSuccess(ctx, p.UserID, p.JobID, result, nil)
}

func (w *Worker) processResumeGap(ctx context.Context, raw json.RawMessage) error {
	var p ai.ResumeGapPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return fmt.Errorf("%w: decode resume gap payload: %v", ai.ErrInvalidResponse, err)
	}

	app, err := w.store.GetApplication(ctx, p.UserID, p.ApplicationID)
	if err != nil {
		return fmt.Errorf("load application: %w", err)
	}
	if app.JobDescription == nil || strings.TrimSpace(*app.JobDescription) == "" {
		return errNoDescription
	}

	profile := w.profileOrNil(ctx, p.UserID)
	analysis := w.analysisOrNil(ctx, p.ApplicationID)
	pr := buildResumeGapPrompt(*app.JobDescription, profile, analysis)

	result, err := generateObject[models.ResumeGapResult](ctx, w, pr, resumeGapSchema)
	if err != nil {
		return err
	}

	content, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal resume gap analysis: %w", err)
	}
	gap := &models.ResumeGapAnalysis{
		ID:            uuid.New(),
		UserID:        p.UserID,
		ApplicationID: p.ApplicationID,
		Content:       content,
	}
	if err := w.store.CreateResumeGapAnalysis(context.WithoutCancel(ctx), gap); err != nil {
		return fmt.Errorf("save resume gap analysis: %w", err)
	}

	return w.finalizeSuccess(ctx, p.UserID, p.JobID, result, nil)
}

// generateObject runs a structured provider call under the worker's timeout
// and decodes the response into T.
func generateObject[T any](ctx context.Context, w *Worker, pr prompt, schema json.RawMessage) (*T, error) {
	ictx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	raw, err := w.provider.GenerateObject(ictx, models.GenerateRequest{
		System: pr.System,
		Prompt: pr.User,
		Schema: schema,
	})
	if err != nil {
		return nil, fmt.Errorf("generate object: %w", err)
	}

	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ai.ErrInvalidResponse, err)
	}
	return &out, nil
}

// createApplicationFromAnalysis seeds an application row from extracted fields
// so the analysis stays attached to something the user can track.
func (w *Worker) createApplicationFromAnalysis(ctx context.Context, p ai.AnalyzeJobPayload, result *models.JobAnalysisResult, description string) (*models.Application, error) {
	companyName := result.CompanyName
	if companyName == "" {
		companyName = "Unknown Company"
	}
	roleTitle := result.RoleTitle
	if roleTitle == "" {
		roleTitle = "Unknown Role"
	}

	app := &models.Application{
		ID:          uuid.New(),
		UserID:      p.UserID,
		CompanyName: companyName,
		RoleTitle:   roleTitle,
		Status:      "saved",
		Location:    result.Location,
		WorkMode:    result.WorkMode,
	}
	if p.JobURL != "" {
		app.JobURL = &p.JobURL
	}
	if description != "" {
		desc := fetch.TruncateChars(description, maxContentChars)
		app.JobDescription = &desc
	}
	if result.SalaryRange != nil {
		app.SalaryMin = &result.SalaryRange.Min
		app.SalaryMax = &result.SalaryRange.Max
		app.SalaryCurrency = &result.SalaryRange.Currency
	}

	if err := w.store.CreateApplication(context.WithoutCancel(ctx), app); err != nil {
		return nil, err
	}
	return app, nil
}

// profileOrNil loads the candidate profile; absence is not an error.
func (w *Worker) profileOrNil(ctx context.Context, userID uuid.UUID) *models.Profile {
	profile, err := w.store.GetProfile(ctx, userID)
	if err != nil {
		return nil
	}
	return profile
}

// analysisOrNil loads the latest completed analysis for the application to
// ground follow-up tasks; absence is not an error.
func (w *Worker) analysisOrNil(ctx context.Context, applicationID uuid.UUID) *models.JobAnalysisResult {
	raw, err := w.store.GetLatestAnalysisResult(ctx, applicationID)
	if err != nil {
		return nil
	}
	var result models.JobAnalysisResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil
	}
	return &result
}

func errorIsAny(err error, targets ...error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
