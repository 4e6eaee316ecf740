// Package anthropic implements models.AIProvider against the Anthropic
// messages API. Structured output is obtained by forcing a single tool whose
// input schema is the requested result schema.
package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/kariro/kariro/internal/config"
	"github.com/kariro/kariro/pkg/models"
)

const (
	apiVersion = "2023-06-01"
	maxTokens  = 8192
	resultTool = "emit_result"
)

// Provider implements models.AIProvider using Anthropic.
type Provider struct {
	cfg    config.AnthropicConfig
	client *http.Client
}

func NewProvider(cfg config.AnthropicConfig) *Provider {
	return &Provider{cfg: cfg, client: &http.Client{}}
}

func (p *Provider) Name() string { return "anthropic" }

type messagesRequest struct {
	Model      string          `json:"model"`
	MaxTokens  int             `json:"max_tokens"`
	System     string          `json:"system,omitempty"`
	Messages   []message       `json:"messages"`
	Tools      []tool          `json:"tools,omitempty"`
	ToolChoice *toolChoice     `json:"tool_choice,omitempty"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"input_schema"`
}

type toolChoice struct {
	Type string `json:"type"`
	Name string `json:"name"`
}

type messagesResponse struct {
	Content []struct {
		Type  string          `json:"type"`
		Text  string          `json:"text"`
		Name  string          `json:"name"`
		Input json.RawMessage `json:"input"`
	} `json:"content"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (p *Provider) GenerateObject(ctx context.Context, req models.GenerateRequest) (json.RawMessage, error) {
	body := messagesRequest{
		Model:     p.cfg.Model,
		MaxTokens: maxTokens,
		System:    req.System,
		Messages:  []message{{Role: "user", Content: req.Prompt}},
		Tools: []tool{{
			Name:        resultTool,
			Description: "Record the structured result of the analysis.",
			InputSchema: req.Schema,
		}},
		ToolChoice: &toolChoice{Type: "tool", Name: resultTool},
	}

	parsed, err := p.send(ctx, body)
	if err != nil {
		return nil, err
	}
	for _, block := range parsed.Content {
		if block.Type == "tool_use" && block.Name == resultTool {
			return block.Input, nil
		}
	}
	return nil, fmt.Errorf("anthropic returned no tool_use block")
}

func (p *Provider) GenerateText(ctx context.Context, req models.GenerateRequest) (string, error) {
	body := messagesRequest{
		Model:     p.cfg.Model,
		MaxTokens: maxTokens,
		System:    req.System,
		Messages:  []message{{Role: "user", Content: req.Prompt}},
	}

	parsed, err := p.send(ctx, body)
	if err != nil {
		return "", err
	}
	for _, block := range parsed.Content {
		if block.Type == "text" {
			return block.Text, nil
		}
	}
	return "", fmt.Errorf("anthropic returned no text block")
}

func (p *Provider) send(ctx context.Context, body messagesRequest) (*messagesResponse, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.cfg.BaseURL+"/v1/messages", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", p.cfg.APIKey)
	httpReq.Header.Set("anthropic-version", apiVersion)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("anthropic request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, fmt.Errorf("read anthropic response: %w", err)
	}

	var parsed messagesResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("decode anthropic response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		if parsed.Error != nil {
			return nil, fmt.Errorf("anthropic API error (HTTP %d): %s", resp.StatusCode, parsed.Error.Message)
		}
		return nil, fmt.Errorf("anthropic API error: HTTP %d", resp.StatusCode)
	}
	return &parsed, nil
}

var _ models.AIProvider = (*Provider)(nil)
