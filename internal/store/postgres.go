package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kariro/kariro/pkg/models"
)

// PostgresStore implements the Store interface using pgx/v5.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// --- Sessions ---

func (s *PostgresStore) GetSessionsByPrefix(ctx context.Context, prefix string) ([]*models.Session, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, token_prefix, token_hash, expires_at, last_used_at, created_at
		 FROM sessions WHERE token_prefix = $1 AND expires_at > NOW()`, prefix)
	if err != nil {
		return nil, fmt.Errorf("get sessions by prefix: %w", err)
	}
	defer rows.Close()

	var sessions []*models.Session
	for rows.Next() {
		var sess models.Session
		if err := rows.Scan(&sess.ID, &sess.UserID, &sess.TokenPrefix, &sess.TokenHash,
			&sess.ExpiresAt, &sess.LastUsedAt, &sess.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, &sess)
	}
	return sessions, rows.Err()
}

func (s *PostgresStore) TouchSession(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE sessions SET last_used_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	return nil
}

// --- Applications ---

func (s *PostgresStore) GetApplication(ctx context.Context, userID, id uuid.UUID) (*models.Application, error) {
	var a models.Application
	err := s.pool.QueryRow(ctx,
		`SELECT id, user_id, company_name, role_title, job_url, job_description, status,
		        salary_min, salary_max, salary_currency, location, work_mode, notes,
		        applied_at, created_at, updated_at
		 FROM applications WHERE id = $1 AND user_id = $2`, id, userID,
	).Scan(&a.ID, &a.UserID, &a.CompanyName, &a.RoleTitle, &a.JobURL, &a.JobDescription,
		&a.Status, &a.SalaryMin, &a.SalaryMax, &a.SalaryCurrency, &a.Location,
		&a.WorkMode, &a.Notes, &a.AppliedAt, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get application: %w", err)
	}
	return &a, nil
}

func (s *PostgresStore) CreateApplication(ctx context.Context, app *models.Application) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO applications (id, user_id, company_name, role_title, job_url, job_description,
		                           status, salary_min, salary_max, salary_currency, location,
		                           work_mode, notes, applied_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, NOW(), NOW())
		 RETURNING created_at, updated_at`,
		app.ID, app.UserID, app.CompanyName, app.RoleTitle, app.JobURL, app.JobDescription,
		app.Status, app.SalaryMin, app.SalaryMax, app.SalaryCurrency, app.Location,
		app.WorkMode, app.Notes, app.AppliedAt,
	).Scan(&app.CreatedAt, &app.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create application: %w", err)
	}
	return nil
}

// --- Profiles ---

func (s *PostgresStore) GetProfile(ctx context.Context, userID uuid.UUID) (*models.Profile, error) {
	var p models.Profile
	err := s.pool.QueryRow(ctx,
		`SELECT user_id, resume_text, skills, preferred_roles, preferred_locations, created_at, updated_at
		 FROM profiles WHERE user_id = $1`, userID,
	).Scan(&p.UserID, &p.ResumeText, &p.Skills, &p.PreferredRoles, &p.PreferredLocations,
		&p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return &p, nil
}

// --- AI jobs ---

func (s *PostgresStore) CreateAIJob(ctx context.Context, job *models.AIJob) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO ai_jobs (id, user_id, application_id, job_id, type, status, input, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		job.ID, job.UserID, job.ApplicationID, job.JobID, job.Type, job.Status, job.Input,
		job.CreatedAt, job.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create ai job: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetAIJobByJobID(ctx context.Context, userID uuid.UUID, jobID string) (*models.AIJob, error) {
	var j models.AIJob
	err := s.pool.QueryRow(ctx,
		`SELECT id, user_id, application_id, job_id, type, status, input, result, error, created_at, updated_at
		 FROM ai_jobs WHERE job_id = $1 AND user_id = $2`, jobID, userID,
	).Scan(&j.ID, &j.UserID, &j.ApplicationID, &j.JobID, &j.Type, &j.Status, &j.Input,
		&j.Result, &j.Error, &j.CreatedAt, &j.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get ai job: %w", err)
	}
	return &j, nil
}

// DeleteAIJobByJobID removes a tracking record. Only used as compensation when
// queue submission fails right after the insert; the queue never accepted the
// work, so the row is deleted rather than marked failed.
func (s *PostgresStore) DeleteAIJobByJobID(ctx context.Context, jobID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM ai_jobs WHERE job_id = $1`, jobID)
	if err != nil {
		return fmt.Errorf("delete ai job: %w", err)
	}
	return nil
}

// MarkAIJobCompleted transitions a processing record to completed. The status
// guard makes the terminal transition idempotent under queue redelivery: a
// record that already reached a terminal state is never rewritten.
func (s *PostgresStore) MarkAIJobCompleted(ctx context.Context, jobID string, result json.RawMessage, applicationID *uuid.UUID) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE ai_jobs
		 SET status = $2, result = $3, application_id = COALESCE($4, application_id), updated_at = NOW()
		 WHERE job_id = $1 AND status = $5`,
		jobID, models.JobStatusCompleted, result, applicationID, models.JobStatusProcessing)
	if err != nil {
		return fmt.Errorf("mark ai job completed: %w", err)
	}
	return nil
}

func (s *PostgresStore) MarkAIJobFailed(ctx context.Context, jobID string, errMsg string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE ai_jobs SET status = $2, error = $3, updated_at = NOW()
		 WHERE job_id = $1 AND status = $4`,
		jobID, models.JobStatusFailed, errMsg, models.JobStatusProcessing)
	if err != nil {
		return fmt.Errorf("mark ai job failed: %w", err)
	}
	return nil
}

// --- Quota counts ---
// Recomputed on every admission call rather than cached; staleness under
// concurrent submissions is tolerated (abuse guard, not a correctness invariant).

func (s *PostgresStore) CountProcessingJobs(ctx context.Context, userID uuid.UUID) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM ai_jobs WHERE user_id = $1 AND status = $2`,
		userID, models.JobStatusProcessing).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count processing jobs: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) CountCoverLetters(ctx context.Context, userID, applicationID uuid.UUID) (int, error) {
	return s.countArtifacts(ctx, "cover_letters", userID, applicationID)
}

func (s *PostgresStore) CountInterviewPreps(ctx context.Context, userID, applicationID uuid.UUID) (int, error) {
	return s.countArtifacts(ctx, "interview_preps", userID, applicationID)
}

func (s *PostgresStore) CountResumeGaps(ctx context.Context, userID, applicationID uuid.UUID) (int, error) {
	return s.countArtifacts(ctx, "resume_gap_analyses", userID, applicationID)
}

func (s *PostgresStore) countArtifacts(ctx context.Context, table string, userID, applicationID uuid.UUID) (int, error) {
	var n int
	// table is one of three compile-time constants, never user input
	err := s.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE user_id = $1 AND application_id = $2`, table),
		userID, applicationID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return n, nil
}

// --- Analysis grounding ---

// GetLatestAnalysisResult returns the most recent completed analyze-job result
// for an application, used to ground cover letter, interview prep, and resume
// gap generation.
func (s *PostgresStore) GetLatestAnalysisResult(ctx context.Context, applicationID uuid.UUID) (json.RawMessage, error) {
	var result json.RawMessage
	err := s.pool.QueryRow(ctx,
		`SELECT result FROM ai_jobs
		 WHERE application_id = $1 AND type = $2 AND status = $3
		 ORDER BY created_at DESC LIMIT 1`,
		applicationID, models.JobTypeAnalyze, models.JobStatusCompleted).Scan(&result)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get latest analysis result: %w", err)
	}
	return result, nil
}

// --- Artifacts ---

func (s *PostgresStore) CreateCoverLetter(ctx context.Context, letter *models.CoverLetter) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO cover_letters (id, user_id, application_id, tone, content, created_at)
		 VALUES ($1, $2, $3, $4, $5, NOW()) RETURNING created_at`,
		letter.ID, letter.UserID, letter.ApplicationID, letter.Tone, letter.Content,
	).Scan(&letter.CreatedAt)
	if err != nil {
		return fmt.Errorf("create cover letter: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreateInterviewPrep(ctx context.Context, prep *models.InterviewPrep) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO interview_preps (id, user_id, application_id, content, created_at)
		 VALUES ($1, $2, $3, $4, NOW()) RETURNING created_at`,
		prep.ID, prep.UserID, prep.ApplicationID, prep.Content,
	).Scan(&prep.CreatedAt)
	if err != nil {
		return fmt.Errorf("create interview prep: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreateResumeGapAnalysis(ctx context.Context, analysis *models.ResumeGapAnalysis) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO resume_gap_analyses (id, user_id, application_id, content, created_at)
		 VALUES ($1, $2, $3, $4, NOW()) RETURNING created_at`,
		analysis.ID, analysis.UserID, analysis.ApplicationID, analysis.Content,
	).Scan(&analysis.CreatedAt)
	if err != nil {
		return fmt.Errorf("create resume gap analysis: %w", err)
	}
	return nil
}

// isDuplicateKeyError checks if a pgx error is a unique constraint violation.
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" // unique_violation
	}
	return false
}

var _ Store = (*PostgresStore)(nil)
