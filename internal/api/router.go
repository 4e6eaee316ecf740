package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	mw "github.com/kariro/kariro/internal/api/middleware"
	"github.com/kariro/kariro/internal/api/response"
)

// Dependencies holds all handler and middleware dependencies for the router.
type Dependencies struct {
	Auth    *mw.Auth
	Limiter *mw.Limiter

	HealthHandler        http.HandlerFunc
	AnalyzeJobHandler    http.HandlerFunc
	CoverLetterHandler   http.HandlerFunc
	InterviewPrepHandler http.HandlerFunc
	ResumeGapHandler     http.HandlerFunc
	PollJobHandler       http.HandlerFunc
}

// NewRouter builds the Chi router with middleware stack and all routes.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.Logger)
	r.Use(mw.Recovery)

	// Public health check
	r.Get("/api/v1/health", orNotImplemented(deps.HealthHandler))

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(deps.Auth.Authenticate)

		// Submissions are rate limited; polling is not, or a client polling
		// every two seconds would starve its own submissions.
		r.Group(func(r chi.Router) {
			r.Use(deps.Limiter.Limit)

			r.Post("/api/v1/ai/analyze-job", orNotImplemented(deps.AnalyzeJobHandler))
			r.Post("/api/v1/ai/cover-letter", orNotImplemented(deps.CoverLetterHandler))
			r.Post("/api/v1/ai/interview-prep", orNotImplemented(deps.InterviewPrepHandler))
			r.Post("/api/v1/ai/resume-gap", orNotImplemented(deps.ResumeGapHandler))
		})

		r.Get("/api/v1/ai/jobs/{jobID}", orNotImplemented(deps.PollJobHandler))
	})

	return r
}

// orNotImplemented returns the handler if non-nil, or a 501 placeholder.
func orNotImplemented(h http.HandlerFunc) http.HandlerFunc {
	if h != nil {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "Endpoint not yet implemented", nil)
	}
}
