package providers

import (
	"context"
)

const defaultOpenAIURL = "https://api.openai.com/v1/chat/completions"

// OpenAI talks to the chat-completions API. Review requests use the
// structured-output JSON mode.
type OpenAI struct {
	httpBackend
	apiKey  string
	model   string
	baseURL string
}

// NewOpenAI resolves the credential from cfg.APIKey or OPENAI_API_KEY.
func NewOpenAI(cfg Config) (*OpenAI, error) {
	key := resolveKey(cfg.APIKey, "OPENAI_API_KEY")
	if key == "" {
		return nil, &ConfigError{Msg: "OpenAI API key not configured (set apiKey or OPENAI_API_KEY)"}
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultOpenAIURL
	}
	return &OpenAI{
		httpBackend: newHTTPBackend("openai"),
		apiKey:      key,
		model:       modelOrDefault(cfg, "openai"),
		baseURL:     baseURL,
	}, nil
}

func (o *OpenAI) Name() string { return "openai" }

func (o *OpenAI) Review(ctx context.Context, req Request) (string, error) {
	body := o.request(req, []openaiMessage{
		{Role: "system", Content: req.SystemPrompt},
		{Role: "user", Content: req.UserPrompt},
	})
	if req.JSONMode {
		body.ResponseFormat = &openaiResponseFormat{Type: "json_object"}
	}
	return o.complete(ctx, body)
}

// Generate sends the prompt as a single user turn.
func (o *OpenAI) Generate(ctx context.Context, req Request) (string, error) {
	prompt := req.UserPrompt
	if req.SystemPrompt != "" {
		prompt = req.SystemPrompt + "\n\n" + prompt
	}
	return o.complete(ctx, o.request(req, []openaiMessage{{Role: "user", Content: prompt}}))
}

func (o *OpenAI) request(req Request, messages []openaiMessage) openaiRequest {
	model := req.Model
	if model == "" {
		model = o.model
	}
	body := openaiRequest{
		Model:     model,
		Messages:  messages,
		MaxTokens: maxTokensOrDefault(req.MaxTokens),
	}
	t := req.Temperature
	body.Temperature = &t
	return body
}

func (o *OpenAI) complete(ctx context.Context, body openaiRequest) (string, error) {
	var result openaiResponse
	err := o.postJSON(ctx, o.baseURL, map[string]string{
		"Authorization": "Bearer " + o.apiKey,
		"api-key":       o.apiKey,
	}, body, &result)
	if err != nil {
		return "", err
	}
	if len(result.Choices) == 0 {
		return "", nil
	}
	return result.Choices[0].Message.Content, nil
}

type openaiRequest struct {
	Model          string                `json:"model"`
	Messages       []openaiMessage       `json:"messages"`
	MaxTokens      int                   `json:"max_tokens"`
	Temperature    *float64              `json:"temperature,omitempty"`
	ResponseFormat *openaiResponseFormat `json:"response_format,omitempty"`
}

type openaiResponseFormat struct {
	Type string `json:"type"`
}

type openaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openaiResponse struct {
	Choices []openaiChoice `json:"choices"`
	Usage   openaiUsage    `json:"usage"`
}

type openaiChoice struct {
	Message openaiMessage `json:"message"`
}

type openaiUsage struct {
	TotalTokens int `json:"total_tokens"`
}
