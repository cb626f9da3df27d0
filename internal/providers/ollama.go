package providers

import (
	"context"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/schema"
	"golang.org/x/time/rate"
)

const defaultOllamaURL = "http://localhost:11434"

// Ollama drives a local Ollama server through langchaingo. No credential is
// needed.
type Ollama struct {
	llm     llms.Model
	model   string
	limiter *rate.Limiter
}

// NewOllama connects to cfg.BaseURL, then OLLAMA_HOST, then localhost.
func NewOllama(cfg Config) (*Ollama, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = os.Getenv("OLLAMA_HOST")
	}
	if baseURL == "" {
		baseURL = defaultOllamaURL
	}
	baseURL = normalizeOllamaURL(baseURL)

	model := modelOrDefault(cfg, "ollama")
	llm, err := ollama.New(
		ollama.WithServerURL(baseURL),
		ollama.WithModel(model),
		ollama.WithHTTPClient(&http.Client{Timeout: 300 * time.Second}),
	)
	if err != nil {
		return nil, &ConfigError{Msg: "creating ollama client: " + err.Error()}
	}
	return &Ollama{llm: llm, model: model, limiter: newLimiter()}, nil
}

func normalizeOllamaURL(u string) string {
	u = strings.TrimRight(u, "/")
	u = strings.TrimSuffix(u, "/v1/chat/completions")
	u = strings.TrimSuffix(u, "/api/chat")
	u = strings.TrimSuffix(u, "/v1")
	return u
}

func (o *Ollama) Name() string { return "ollama" }

func (o *Ollama) Review(ctx context.Context, req Request) (string, error) {
	msgs := []llms.MessageContent{
		llms.TextParts(schema.ChatMessageTypeSystem, req.SystemPrompt),
		llms.TextParts(schema.ChatMessageTypeHuman, req.UserPrompt),
	}
	return o.call(ctx, req, msgs)
}

func (o *Ollama) Generate(ctx context.Context, req Request) (string, error) {
	prompt := req.UserPrompt
	if req.SystemPrompt != "" {
		prompt = req.SystemPrompt + "\n\n" + prompt
	}
	return o.call(ctx, req, []llms.MessageContent{llms.TextParts(schema.ChatMessageTypeHuman, prompt)})
}

func (o *Ollama) call(ctx context.Context, req Request, msgs []llms.MessageContent) (string, error) {
	if err := o.limiter.Wait(ctx); err != nil {
		return "", callError("ollama", err)
	}

	opts := []llms.CallOption{
		llms.WithMaxTokens(maxTokensOrDefault(req.MaxTokens)),
		llms.WithTemperature(req.Temperature),
	}
	if req.Model != "" {
		opts = append(opts, llms.WithModel(req.Model))
	}
	if req.JSONMode {
		opts = append(opts, llms.WithJSONMode())
	}

	start := time.Now()
	resp, err := o.llm.GenerateContent(ctx, msgs, opts...)
	log.Debug().
		Str("provider", "ollama").
		Str("model", o.model).
		Dur("elapsed", time.Since(start)).
		Err(err).
		Msg("provider call")
	if err != nil {
		return "", callError("ollama", err)
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Content, nil
}
