package providers

import (
	"context"
	"fmt"
	"strings"
)

const geminiAPIURL = "https://generativelanguage.googleapis.com/v1beta/models"

// Gemini uses the single-prompt generateContent API. It has no system/user
// role split, so Review folds the system prompt into the one user part.
type Gemini struct {
	httpBackend
	apiKey  string
	model   string
	baseURL string
}

// NewGemini resolves the credential from cfg.APIKey, GEMINI_API_KEY, then
// GOOGLE_API_KEY.
func NewGemini(cfg Config) (*Gemini, error) {
	key := resolveKey(cfg.APIKey, "GEMINI_API_KEY", "GOOGLE_API_KEY")
	if key == "" {
		return nil, &ConfigError{Msg: "Gemini API key not configured (set apiKey, GEMINI_API_KEY or GOOGLE_API_KEY)"}
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = geminiAPIURL
	}
	return &Gemini{
		httpBackend: newHTTPBackend("gemini"),
		apiKey:      key,
		model:       modelOrDefault(cfg, "gemini"),
		baseURL:     strings.TrimRight(baseURL, "/"),
	}, nil
}

func (g *Gemini) Name() string { return "gemini" }

func (g *Gemini) Review(ctx context.Context, req Request) (string, error) {
	return g.send(ctx, req, req.SystemPrompt+"\n\n"+req.UserPrompt)
}

func (g *Gemini) Generate(ctx context.Context, req Request) (string, error) {
	prompt := req.UserPrompt
	if req.SystemPrompt != "" {
		prompt = req.SystemPrompt + "\n\n" + prompt
	}
	return g.send(ctx, req, prompt)
}

func (g *Gemini) send(ctx context.Context, req Request, prompt string) (string, error) {
	model := req.Model
	if model == "" {
		model = g.model
	}
	url := fmt.Sprintf("%s/%s:generateContent", g.baseURL, strings.TrimPrefix(model, "models/"))

	body := geminiRequest{
		Contents: []geminiContent{
			{Role: "user", Parts: []geminiPart{{Text: prompt}}},
		},
		GenerationConfig: &geminiGenConfig{
			MaxOutputTokens: maxTokensOrDefault(req.MaxTokens),
		},
	}
	t := req.Temperature
	body.GenerationConfig.Temperature = &t

	var result geminiResponse
	if err := g.postJSON(ctx, url, map[string]string{"x-goog-api-key": g.apiKey}, body, &result); err != nil {
		return "", err
	}
	if len(result.Candidates) == 0 {
		return "", nil
	}
	var b strings.Builder
	for _, part := range result.Candidates[0].Content.Parts {
		b.WriteString(part.Text)
	}
	return b.String(), nil
}

type geminiRequest struct {
	Contents         []geminiContent  `json:"contents"`
	GenerationConfig *geminiGenConfig `json:"generationConfig,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGenConfig struct {
	MaxOutputTokens int      `json:"maxOutputTokens,omitempty"`
	Temperature     *float64 `json:"temperature,omitempty"`
}

type geminiResponse struct {
	Candidates    []geminiCandidate `json:"candidates"`
	UsageMetadata geminiUsage       `json:"usageMetadata"`
}

type geminiCandidate struct {
	Content geminiContent `json:"content"`
}

type geminiUsage struct {
	TotalTokenCount int `json:"totalTokenCount"`
}
