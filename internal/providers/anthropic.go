package providers

import (
	"context"
	"strings"
)

const (
	anthropicAPIURL     = "https://api.anthropic.com/v1/messages"
	anthropicAPIVersion = "2023-06-01"
)

// Anthropic talks to the Messages API, which has a dedicated system-prompt
// field and answers with typed content blocks.
type Anthropic struct {
	httpBackend
	apiKey string
	model  string
	url    string
}

// NewAnthropic resolves the credential from cfg.APIKey or ANTHROPIC_API_KEY.
func NewAnthropic(cfg Config) (*Anthropic, error) {
	key := resolveKey(cfg.APIKey, "ANTHROPIC_API_KEY")
	if key == "" {
		return nil, &ConfigError{Msg: "Anthropic API key not configured (set apiKey or ANTHROPIC_API_KEY)"}
	}
	url := cfg.BaseURL
	if url == "" {
		url = anthropicAPIURL
	}
	return &Anthropic{
		httpBackend: newHTTPBackend("anthropic"),
		apiKey:      key,
		model:       modelOrDefault(cfg, "anthropic"),
		url:         url,
	}, nil
}

func (a *Anthropic) Name() string { return "anthropic" }

func (a *Anthropic) Review(ctx context.Context, req Request) (string, error) {
	return a.send(ctx, req, req.SystemPrompt, req.UserPrompt)
}

func (a *Anthropic) Generate(ctx context.Context, req Request) (string, error) {
	return a.send(ctx, req, req.SystemPrompt, req.UserPrompt)
}

func (a *Anthropic) send(ctx context.Context, req Request, system, user string) (string, error) {
	model := req.Model
	if model == "" {
		model = a.model
	}
	body := anthropicRequest{
		Model:     model,
		MaxTokens: maxTokensOrDefault(req.MaxTokens),
		System:    system,
		Messages:  []anthropicMessage{{Role: "user", Content: user}},
	}
	t := req.Temperature
	body.Temperature = &t

	var result anthropicResponse
	err := a.postJSON(ctx, a.url, map[string]string{
		"x-api-key":         a.apiKey,
		"anthropic-version": anthropicAPIVersion,
	}, body, &result)
	if err != nil {
		return "", err
	}
	return result.text(), nil
}

// text returns the concatenated text blocks. A response that leads with a
// non-text block (tool use, thinking) yields "".
func (r anthropicResponse) text() string {
	if len(r.Content) == 0 || r.Content[0].Type != "text" {
		return ""
	}
	var b strings.Builder
	for _, block := range r.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	return b.String()
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	System      string             `json:"system,omitempty"`
	Temperature *float64           `json:"temperature,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content []anthropicBlock `json:"content"`
	Usage   anthropicUsage   `json:"usage"`
}

type anthropicBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type anthropicUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}
