package providers

import (
	"context"
	"sync"
)

// Session binds one configuration snapshot to the adapter built from it.
// The caller owns the session and replaces it when configuration changes;
// there is no shared client cache.
//
// The adapter is resolved on first use, so an unknown provider or missing
// credential surfaces as a *ConfigError from Review or Generate.
type Session struct {
	cfg  Config
	once sync.Once
	p    Provider
	err  error

	// build is New unless a test swaps it.
	build func(Config) (Provider, error)
}

// NewSession captures cfg by value.
func NewSession(cfg Config) *Session {
	return &Session{cfg: cfg, build: New}
}

// NewSessionWith wraps an already constructed provider.
func NewSessionWith(cfg Config, p Provider) *Session {
	return &Session{cfg: cfg, build: func(Config) (Provider, error) { return p, nil }}
}

// Config returns the snapshot the session was created with.
func (s *Session) Config() Config { return s.cfg }

func (s *Session) provider() (Provider, error) {
	s.once.Do(func() {
		s.p, s.err = s.build(s.cfg)
	})
	return s.p, s.err
}

// Name reports the configured provider.
func (s *Session) Name() string {
	return Canonical(s.cfg.Provider)
}

// Review sends a structured review request in JSON mode.
func (s *Session) Review(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	p, err := s.provider()
	if err != nil {
		return "", err
	}
	temp := ReviewTemperature
	if s.cfg.Temperature != nil {
		temp = *s.cfg.Temperature
	}
	return p.Review(ctx, Request{
		Model:        s.cfg.Model,
		SystemPrompt: systemPrompt,
		UserPrompt:   userPrompt,
		MaxTokens:    s.cfg.MaxTokens,
		Temperature:  temp,
		JSONMode:     true,
	})
}

// Generate sends a free-form prompt.
func (s *Session) Generate(ctx context.Context, prompt string) (string, error) {
	p, err := s.provider()
	if err != nil {
		return "", err
	}
	return p.Generate(ctx, Request{
		Model:       s.cfg.Model,
		UserPrompt:  prompt,
		MaxTokens:   s.cfg.MaxTokens,
		Temperature: GenerateTemperature,
	})
}
