// Package models contains shared data models used across the Kariro codebase.
package models

import (
	"context"
	"encoding/json"
)

// AIProvider is the core interface that all AI integrations must implement.
// Never call specific AI providers directly; always inject this interface.
type AIProvider interface {
	// GenerateObject asks the model for output conforming to the given JSON
	// schema and returns the raw JSON object.
	GenerateObject(ctx context.Context, req GenerateRequest) (json.RawMessage, error)
	// GenerateText asks the model for free-form text.
	GenerateText(ctx context.Context, req GenerateRequest) (string, error)
	// Name returns the provider identifier (e.g., "openai", "anthropic").
	Name() string
}

// GenerateRequest is the input to a provider call. Schema is only consulted
// by GenerateObject.
type GenerateRequest struct {
	System string
	Prompt string
	Schema json.RawMessage
}
