// Package mock provides a models.AIProvider for tests and local development.
package mock

import (
	"context"
	"encoding/json"

	"github.com/kariro/kariro/pkg/models"
)

// Provider satisfies models.AIProvider for testing.
type Provider struct {
	Name_              string
	GenerateObjectFunc func(ctx context.Context, req models.GenerateRequest) (json.RawMessage, error)
	GenerateTextFunc   func(ctx context.Context, req models.GenerateRequest) (string, error)
}

func (m *Provider) Name() string { return m.Name_ }

func (m *Provider) GenerateObject(ctx context.Context, req models.GenerateRequest) (json.RawMessage, error) {
	if m.GenerateObjectFunc != nil {
		return m.GenerateObjectFunc(ctx, req)
	}
	return json.RawMessage(`{}`), nil
}

func (m *Provider) GenerateText(ctx context.Context, req models.GenerateRequest) (string, error) {
	if m.GenerateTextFunc != nil {
		return m.GenerateTextFunc(ctx, req)
	}
	return "", nil
}

// NewProvider returns a Provider with sensible default responses: a plausible
// job analysis object and a short letter body.
func NewProvider() *Provider {
	return &Provider{
		Name_: "mock",
		GenerateObjectFunc: func(_ context.Context, _ models.GenerateRequest) (json.RawMessage, error) {
			return json.RawMessage(`{
				"companyName": "Acme Corp",
				"roleTitle": "Software Engineer",
				"location": null,
				"workMode": "remote",
				"salaryRange": null,
				"requiredSkills": ["Go", "PostgreSQL"],
				"niceToHaveSkills": ["Redis"],
				"experienceLevel": "mid",
				"keyResponsibilities": ["Build backend services"],
				"redFlags": [],
				"fitScore": 50,
				"fitExplanation": "No user profile provided for comparison.",
				"missingSkills": [],
				"summary": "Mock analysis for testing"
			}`), nil
		},
		GenerateTextFunc: func(_ context.Context, _ models.GenerateRequest) (string, error) {
			return "Dear Hiring Manager,\n\nMock cover letter body for testing.", nil
		},
	}
}

// NewFailingProvider returns a Provider that always returns the given error.
func NewFailingProvider(err error) *Provider {
	return &Provider{
		Name_: "mock-failing",
		GenerateObjectFunc: func(_ context.Context, _ models.GenerateRequest) (json.RawMessage, error) {
			return nil, err
		},
		GenerateTextFunc: func(_ context.Context, _ models.GenerateRequest) (string, error) {
			return "", err
		},
	}
}

// NewTimeoutProvider returns a Provider that blocks until context is cancelled.
func NewTimeoutProvider() *Provider {
	return &Provider{
		Name_: "mock-timeout",
		GenerateObjectFunc: func(ctx context.Context, _ models.GenerateRequest) (json.RawMessage, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
		GenerateTextFunc: func(ctx context.Context, _ models.GenerateRequest) (string, error) {
			<-ctx.Done()
			return "", ctx.Err()
		},
	}
}

// Compile-time check that Provider implements AIProvider.
var _ models.AIProvider = (*Provider)(nil)
