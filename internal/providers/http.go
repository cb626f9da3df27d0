package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// httpBackend holds what the JSON-over-HTTPS adapters share.
type httpBackend struct {
	name    string
	client  *http.Client
	limiter *rate.Limiter
}

func newHTTPBackend(name string) httpBackend {
	return httpBackend{
		name:    name,
		client:  &http.Client{Timeout: 120 * time.Second},
		limiter: newLimiter(),
	}
}

// postJSON sends body to url and decodes a 200 response into out. Non-200
// statuses are classified for the retry loop.
func (b httpBackend) postJSON(ctx context.Context, url string, headers map[string]string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}

	start := time.Now()
	err = retryWithBackoff(ctx, maxRetries, func() error {
		if err := b.limiter.Wait(ctx); err != nil {
			return err
		}
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("creating request: %w", err)
		}
		httpReq.Header.Set("Content-Type", "application/json")
		for k, v := range headers {
			httpReq.Header.Set(k, v)
		}

		httpResp, err := b.client.Do(httpReq)
		if err != nil {
			return err
		}
		defer httpResp.Body.Close()

		respBody, err := io.ReadAll(httpResp.Body)
		if err != nil {
			return fmt.Errorf("reading response: %w", err)
		}

		switch {
		case httpResp.StatusCode == http.StatusTooManyRequests:
			return &rateLimitError{message: backendMessage(respBody)}
		case httpResp.StatusCode == http.StatusUnauthorized || httpResp.StatusCode == http.StatusForbidden:
			return &authError{message: backendMessage(respBody)}
		case httpResp.StatusCode != http.StatusOK:
			return &statusError{status: httpResp.StatusCode, message: backendMessage(respBody)}
		}

		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("parsing response: %w", err)
		}
		return nil
	})

	log.Debug().
		Str("provider", b.name).
		Int("prompt_bytes", len(payload)).
		Dur("elapsed", time.Since(start)).
		Err(err).
		Msg("provider call")

	return callError(b.name, err)
}

// backendMessage pulls the human message out of the common
// {"error":{"message":...}} envelope, falling back to the raw body.
func backendMessage(body []byte) string {
	var env struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &env); err == nil && env.Error.Message != "" {
		return env.Error.Message
	}
	return string(body)
}
