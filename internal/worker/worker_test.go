package worker

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/kariro/kariro/internal/ai"
	"github.com/kariro/kariro/internal/ai/mock"
	"github.com/kariro/kariro/internal/fetch"
	"github.com/kariro/kariro/internal/queue"
	"github.com/kariro/kariro/internal/store"
	"github.com/kariro/kariro/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Mock Store ---

type mockStore struct {
	applications map[uuid.UUID]*models.Application
	profile      *models.Profile

	completed       map[string]json.RawMessage
	completedAppIDs map[string]*uuid.UUID
	failed          map[string]string

	createdApps   []*models.Application
	coverLetters  []*models.CoverLetter
	interviewPrep []*models.InterviewPrep
	resumeGaps    []*models.ResumeGapAnalysis

	latestAnalysis json.RawMessage
}

func newMockStore() *mockStore {
	return &mockStore{
		applications:    make(map[uuid.UUID]*models.Application),
		completed:       make(map[string]json.RawMessage),
		completedAppIDs: make(map[string]*uuid.UUID),
		failed:          make(map[string]string),
	}
}

func (m *mockStore) Ping(_ context.Context) error { return nil }
func (m *mockStore) GetSessionsByPrefix(_ context.Context, _ string) ([]*models.Session, error) {
	return nil, nil
}
func (m *mockStore) TouchSession(_ context.Context, _ uuid.UUID) error { return nil }

func (m *mockStore) GetApplication(_ context.Context, userID, id uuid.UUID) (*models.Application, error) {
	app, ok := m.applications[id]
	if !ok || app.UserID != userID {
		return nil, store.ErrNotFound
	}
	return app, nil
}
func (m *mockStore) CreateApplication(_ context.Context, app *models.Application) error {
	m.createdApps = append(m.createdApps, app)
	return nil
}

func (m *mockStore) GetProfile(_ context.Context, _ uuid.UUID) (*models.Profile, error) {
	if m.profile == nil {
		return nil, store.ErrNotFound
	}
	return m.profile, nil
}

func (m *mockStore) CreateAIJob(_ context.Context, _ *models.AIJob) error { return nil }
func (m *mockStore) GetAIJobByJobID(_ context.Context, _ uuid.UUID, _ string) (*models.AIJob, error) {
	return nil, store.ErrNotFound
}
func (m *mockStore) DeleteAIJobByJobID(_ context.Context, _ string) error { return nil }
func (m *mockStore) MarkAIJobCompleted(_ context.Context, jobID string, result json.RawMessage, applicationID *uuid.UUID) error {
	m.completed[jobID] = result
	m.completedAppIDs[jobID] = applicationID
	return nil
}
func (m *mockStore) MarkAIJobFailed(_ context.Context, jobID string, errMsg string) error {
	m.failed[jobID] = errMsg
	return nil
}

func (m *mockStore) CountProcessingJobs(_ context.Context, _ uuid.UUID) (int, error)  { return 0, nil }
func (m *mockStore) CountCoverLetters(_ context.Context, _, _ uuid.UUID) (int, error) { return 0, nil }
func (m *mockStore) CountInterviewPreps(_ context.Context, _, _ uuid.UUID) (int, error) {
	return 0, nil
}
func (m *mockStore) CountResumeGaps(_ context.Context, _, _ uuid.UUID) (int, error) { return 0, nil }

func (m *mockStore) GetLatestAnalysisResult(_ context.Context, _ uuid.UUID) (json.RawMessage, error) {
	if m.latestAnalysis == nil {
		return nil, store.ErrNotFound
	}
	return m.latestAnalysis, nil
}

func (m *mockStore) CreateCoverLetter(_ context.Context, letter *models.CoverLetter) error {
	m.coverLetters = append(m.coverLetters, letter)
	return nil
}
func (m *mockStore) CreateInterviewPrep(_ context.Context, prep *models.InterviewPrep) error {
	m.interviewPrep = append(m.interviewPrep, prep)
	return nil
}
func (m *mockStore) CreateResumeGapAnalysis(_ context.Context, gap *models.ResumeGapAnalysis) error {
	m.resumeGaps = append(m.resumeGaps, gap)
	return nil
}

// --- Mock Cache ---

type mockCache struct {
	statuses map[string]string
	owners   map[string]uuid.UUID
}

func newMockCache() *mockCache {
	return &mockCache{statuses: make(map[string]string), owners: make(map[string]uuid.UUID)}
}

func (m *mockCache) Ping(_ context.Context) error { return nil }
func (m *mockCache) SetJobStatus(_ context.Context, userID uuid.UUID, jobID, status string, _ time.Duration) error {
	m.statuses[jobID] = status
	m.owners[jobID] = userID
	return nil
}
func (m *mockCache) GetJobStatus(_ context.Context, userID uuid.UUID, jobID string) (string, bool, error) {
	if m.owners[jobID] != userID {
		return "", false, nil
	}
	s, ok := m.statuses[jobID]
	return s, ok, nil
}
func (m *mockCache) Close() error { return nil }

// --- helpers ---

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func newTestWorker(st *mockStore, ca *mockCache, provider models.AIProvider) *Worker {
	fetcher := fetch.New(time.Second, 1_000_000, 50_000, nil)
	return New(st, ca, provider, fetcher, time.Second, discardLogger())
}

func analyzeTask(t *testing.T, payload ai.AnalyzeJobPayload, attempt, maxAttempts int) *queue.Task {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	return &queue.Task{
		ID:          payload.JobID,
		Type:        models.JobTypeAnalyze,
		Payload:     raw,
		Attempt:     attempt,
		MaxAttempts: maxAttempts,
	}
}

func taskFor(t *testing.T, taskType, jobID string, payload any, attempt, maxAttempts int) *queue.Task {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	return &queue.Task{ID: jobID, Type: taskType, Payload: raw, Attempt: attempt, MaxAttempts: maxAttempts}
}

func addApplication(st *mockStore, userID uuid.UUID, description string) uuid.UUID {
	id := uuid.New()
	app := &models.Application{
		ID:          id,
		UserID:      userID,
		CompanyName: "Acme Corp",
		RoleTitle:   "Software Engineer",
		Status:      "saved",
	}
	if description != "" {
		app.JobDescription = &description
	}
	st.applications[id] = app
	return id
}

// --- tests ---

func TestHandle_AnalyzeCompletes(t *testing.T) {
	st := newMockStore()
	ca := newMockCache()
	w := newTestWorker(st, ca, mock.NewProvider())

	userID := uuid.New()
	jobID := uuid.NewString()
	task := analyzeTask(t, ai.AnalyzeJobPayload{
		UserID:         userID,
		JobID:          jobID,
		JobDescription: "We are hiring a Go engineer in Berlin.",
	}, 1, 3)

	require.NoError(t, w.Handle(context.Background(), task))

	raw, ok := st.completed[jobID]
	require.True(t, ok, "job should be marked completed")

	var result models.JobAnalysisResult
	require.NoError(t, json.Unmarshal(raw, &result))
	assert.Equal(t, "Acme Corp", result.CompanyName)
	assert.Equal(t, 50, result.FitScore)

	assert.Equal(t, models.JobStatusCompleted, ca.statuses[jobID])
	assert.Equal(t, userID, ca.owners[jobID])
	assert.Empty(t, st.failed)
}

func TestHandle_AnalyzeAutoCreatesApplication(t *testing.T) {
	st := newMockStore()
	w := newTestWorker(st, newMockCache(), mock.NewProvider())

	jobID := uuid.NewString()
	task := analyzeTask(t, ai.AnalyzeJobPayload{
		UserID:                uuid.New(),
		JobID:                 jobID,
		JobDescription:        "We are hiring a Go engineer.",
		AutoCreateApplication: true,
	}, 1, 3)

	require.NoError(t, w.Handle(context.Background(), task))

	require.Len(t, st.createdApps, 1)
	created := st.createdApps[0]
	assert.Equal(t, "Acme Corp", created.CompanyName)
	assert.Equal(t, "Software Engineer", created.RoleTitle)
	require.NotNil(t, created.JobDescription)

	// The tracking record gets the new application id back-filled.
	appID := st.completedAppIDs[jobID]
	require.NotNil(t, appID)
	assert.Equal(t, created.ID, *appID)
}

func TestHandle_NoDescriptionFailsPermanently(t *testing.T) {
	st := newMockStore()
	ca := newMockCache()
	w := newTestWorker(st, ca, mock.NewProvider())

	userID := uuid.New()
	jobID := uuid.NewString()
	task := analyzeTask(t, ai.AnalyzeJobPayload{UserID: userID, JobID: jobID}, 1, 3)

	// Permanent failures are absorbed so the queue does not retry.
	require.NoError(t, w.Handle(context.Background(), task))
	assert.Equal(t, msgNoDescription, st.failed[jobID])
	assert.Equal(t, models.JobStatusFailed, ca.statuses[jobID])
	assert.Equal(t, userID, ca.owners[jobID], "failure status cached under the job owner")
	assert.Empty(t, st.completed)
}

func TestHandle_BlockedURLFailsPermanently(t *testing.T) {
	st := newMockStore()
	w := newTestWorker(st, newMockCache(), mock.NewProvider())

	jobID := uuid.NewString()
	task := analyzeTask(t, ai.AnalyzeJobPayload{
		UserID: uuid.New(),
		JobID:  jobID,
		JobURL: "http://169.254.169.254/latest/meta-data/",
	}, 1, 3)

	require.NoError(t, w.Handle(context.Background(), task))
	assert.Equal(t, msgURLBlocked, st.failed[jobID])
}

func TestHandle_TransientFailureLeavesRecordForRetry(t *testing.T) {
	st := newMockStore()
	w := newTestWorker(st, newMockCache(), mock.NewFailingProvider(errors.New("upstream 500")))

	jobID := uuid.NewString()
	task := analyzeTask(t, ai.AnalyzeJobPayload{
		UserID:         uuid.New(),
		JobID:          jobID,
		JobDescription: "desc",
	}, 1, 3)

	err := w.Handle(context.Background(), task)
	require.Error(t, err)

	// Attempts remain; the record must stay in processing.
	assert.Empty(t, st.failed)
	assert.Empty(t, st.completed)
}

func TestHandle_TransientFailureFinalAttemptFinalizes(t *testing.T) {
	st := newMockStore()
	ca := newMockCache()
	w := newTestWorker(st, ca, mock.NewFailingProvider(errors.New("upstream 500")))

	jobID := uuid.NewString()
	task := analyzeTask(t, ai.AnalyzeJobPayload{
		UserID:         uuid.New(),
		JobID:          jobID,
		JobDescription: "desc",
	}, 3, 3)

	err := w.Handle(context.Background(), task)
	require.Error(t, err)

	assert.Equal(t, msgGenericFailure, st.failed[jobID])
	assert.Equal(t, models.JobStatusFailed, ca.statuses[jobID])
}

func TestHandle_TimeoutSanitized(t *testing.T) {
	st := newMockStore()
	fetcher := fetch.New(time.Second, 1_000_000, 50_000, nil)
	w := New(st, newMockCache(), mock.NewTimeoutProvider(), fetcher, 10*time.Millisecond, discardLogger())

	jobID := uuid.NewString()
	task := analyzeTask(t, ai.AnalyzeJobPayload{
		UserID:         uuid.New(),
		JobID:          jobID,
		JobDescription: "desc",
	}, 3, 3)

	err := w.Handle(context.Background(), task)
	require.Error(t, err)
	assert.Equal(t, msgTimeout, st.failed[jobID])
}

func TestHandle_CoverLetterPersistsArtifact(t *testing.T) {
	st := newMockStore()
	w := newTestWorker(st, newMockCache(), mock.NewProvider())

	userID := uuid.New()
	appID := addApplication(st, userID, "We are hiring a Go engineer.")
	jobID := uuid.NewString()

	task := taskFor(t, models.JobTypeCoverLetter, jobID, ai.CoverLetterPayload{
		UserID:        userID,
		JobID:         jobID,
		ApplicationID: appID,
		Tone:          models.ToneFormal,
	}, 1, 3)

	require.NoError(t, w.Handle(context.Background(), task))

	require.Len(t, st.coverLetters, 1)
	letter := st.coverLetters[0]
	assert.Equal(t, appID, letter.ApplicationID)
	assert.Equal(t, models.ToneFormal, letter.Tone)
	assert.True(t, strings.HasPrefix(letter.Content, "Dear Hiring Manager,"))

	var result models.CoverLetterResult
	require.NoError(t, json.Unmarshal(st.completed[jobID], &result))
	assert.Equal(t, models.ToneFormal, result.Tone)
	assert.Equal(t, appID.String(), result.ApplicationID)
}

func TestHandle_CoverLetterTruncatesLongOutput(t *testing.T) {
	st := newMockStore()
	provider := &mock.Provider{
		Name_: "mock",
		GenerateTextFunc: func(_ context.Context, _ models.GenerateRequest) (string, error) {
			// Multi-byte runes: the cap counts characters, not bytes.
			return strings.Repeat("é", maxContentChars+5_000), nil
		},
	}
	w := newTestWorker(st, newMockCache(), provider)

	userID := uuid.New()
	appID := addApplication(st, userID, "desc")
	jobID := uuid.NewString()

	task := taskFor(t, models.JobTypeCoverLetter, jobID, ai.CoverLetterPayload{
		UserID:        userID,
		JobID:         jobID,
		ApplicationID: appID,
		Tone:          models.ToneConversational,
	}, 1, 3)

	require.NoError(t, w.Handle(context.Background(), task))
	require.Len(t, st.coverLetters, 1)
	assert.Equal(t, maxContentChars, utf8.RuneCountInString(st.coverLetters[0].Content))
}

func TestHandle_CoverLetterWithoutDescriptionFails(t *testing.T) {
	st := newMockStore()
	w := newTestWorker(st, newMockCache(), mock.NewProvider())

	userID := uuid.New()
	appID := addApplication(st, userID, "")
	jobID := uuid.NewString()

	task := taskFor(t, models.JobTypeCoverLetter, jobID, ai.CoverLetterPayload{
		UserID:        userID,
		JobID:         jobID,
		ApplicationID: appID,
		Tone:          models.ToneFormal,
	}, 1, 3)

	require.NoError(t, w.Handle(context.Background(), task))
	assert.Equal(t, msgNoDescription, st.failed[jobID])
}

func TestHandle_InterviewPrepPersistsArtifact(t *testing.T) {
	st := newMockStore()
	provider := &mock.Provider{
		Name_: "mock",
		GenerateObjectFunc: func(_ context.Context, _ models.GenerateRequest) (json.RawMessage, error) {
			return json.RawMessage(`{
				"technicalQuestions": [{"question": "Explain goroutines", "suggestedAnswer": "…", "difficulty": "medium"}],
				"behavioralQuestions": [],
				"companyResearchTips": ["Read the engineering blog"],
				"questionsToAsk": [],
				"preparationChecklist": ["Review Go concurrency"]
			}`), nil
		},
	}
	w := newTestWorker(st, newMockCache(), provider)

	userID := uuid.New()
	appID := addApplication(st, userID, "We are hiring a Go engineer.")
	jobID := uuid.NewString()

	task := taskFor(t, models.JobTypeInterviewPrep, jobID, ai.InterviewPrepPayload{
		UserID:        userID,
		JobID:         jobID,
		ApplicationID: appID,
	}, 1, 3)

	require.NoError(t, w.Handle(context.Background(), task))

	require.Len(t, st.interviewPrep, 1)
	var result models.InterviewPrepResult
	require.NoError(t, json.Unmarshal(st.interviewPrep[0].Content, &result))
	require.Len(t, result.TechnicalQuestions, 1)
	assert.Equal(t, "Explain goroutines", result.TechnicalQuestions[0].Question)
}

func TestHandle_ResumeGapPersistsArtifact(t *testing.T) {
	st := newMockStore()
	resume := "Ten years of Go."
	st.profile = &models.Profile{UserID: uuid.New(), ResumeText: &resume, Skills: []string{"Go"}}
	provider := &mock.Provider{
		Name_: "mock",
		GenerateObjectFunc: func(_ context.Context, _ models.GenerateRequest) (json.RawMessage, error) {
			return json.RawMessage(`{
				"matchedSkills": [{"skill": "Go", "evidenceFromResume": "Ten years of Go."}],
				"missingSkills": [{"skill": "Kubernetes", "importance": "important", "suggestion": "Add any cluster experience"}],
				"overallMatch": 70,
				"resumeSuggestions": [],
				"talkingPoints": []
			}`), nil
		},
	}
	w := newTestWorker(st, newMockCache(), provider)

	userID := uuid.New()
	appID := addApplication(st, userID, "Go and Kubernetes role.")
	jobID := uuid.NewString()

	task := taskFor(t, models.JobTypeResumeGap, jobID, ai.ResumeGapPayload{
		UserID:        userID,
		JobID:         jobID,
		ApplicationID: appID,
	}, 1, 3)

	require.NoError(t, w.Handle(context.Background(), task))

	require.Len(t, st.resumeGaps, 1)
	var result models.ResumeGapResult
	require.NoError(t, json.Unmarshal(st.resumeGaps[0].Content, &result))
	assert.Equal(t, 70, result.OverallMatch)
}

func TestHandle_InvalidProviderResponseFailsPermanently(t *testing.T) {
	st := newMockStore()
	provider := &mock.Provider{
		Name_: "mock",
		GenerateObjectFunc: func(_ context.Context, _ models.GenerateRequest) (json.RawMessage, error) {
			return json.RawMessage(`{"fitScore": "not a number"}`), nil
		},
	}
	w := newTestWorker(st, newMockCache(), provider)

	jobID := uuid.NewString()
	task := analyzeTask(t, ai.AnalyzeJobPayload{
		UserID:         uuid.New(),
		JobID:          jobID,
		JobDescription: "desc",
	}, 1, 3)

	require.NoError(t, w.Handle(context.Background(), task))
	assert.Equal(t, msgGenericFailure, st.failed[jobID])
}

func TestHandle_PanicIsRecoveredAndFinalized(t *testing.T) {
	st := newMockStore()
	provider := &mock.Provider{
		Name_: "mock",
		GenerateObjectFunc: func(_ context.Context, _ models.GenerateRequest) (json.RawMessage, error) {
			panic("boom")
		},
	}
	w := newTestWorker(st, newMockCache(), provider)

	jobID := uuid.NewString()
	task := analyzeTask(t, ai.AnalyzeJobPayload{
		UserID:         uuid.New(),
		JobID:          jobID,
		JobDescription: "desc",
	}, 1, 3)

	err := w.Handle(context.Background(), task)
	require.Error(t, err)
	assert.Equal(t, msgGenericFailure, st.failed[jobID])
}

func TestSanitizeError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"blocked url", fetch.ErrBlocked, msgURLBlocked},
		{"invalid url", fetch.ErrInvalidURL, msgFetchFailed},
		{"upstream error", fetch.ErrUpstream, msgFetchFailed},
		{"too large", fetch.ErrTooLarge, msgFetchFailed},
		{"timeout", context.DeadlineExceeded, msgTimeout},
		{"no description", errNoDescription, msgNoDescription},
		{"wrapped provider error", errors.New("openai API error: HTTP 500"), msgGenericFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sanitizeError(tt.err))
		})
	}
}
