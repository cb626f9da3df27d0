package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestAnthropic(serverURL string) *Anthropic {
	a := &Anthropic{
		httpBackend: newHTTPBackend("anthropic"),
		apiKey:      "test-key",
		model:       "claude-3-opus-20240229",
		url:         anthropicAPIURL,
	}
	a.client = &http.Client{Transport: &rewriteTransport{baseURL: serverURL}}
	return a
}

func TestAnthropic_Review(t *testing.T) {
	var got anthropicRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") != "test-key" {
			t.Error("Missing API key header")
		}
		if r.Header.Get("anthropic-version") != anthropicAPIVersion {
			t.Error("Missing anthropic-version header")
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decoding request: %v", err)
		}

		resp := anthropicResponse{
			Content: []anthropicBlock{
				{Type: "text", Text: `{"riskLevel":`},
				{Type: "text", Text: `"LOW"}`},
			},
			Usage: anthropicUsage{InputTokens: 100, OutputTokens: 10},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	a := newTestAnthropic(server.URL)
	content, err := a.Review(context.Background(), Request{
		SystemPrompt: "system",
		UserPrompt:   "user",
		MaxTokens:    10,
		Temperature:  0.3,
	})
	if err != nil {
		t.Fatalf("Review error: %v", err)
	}
	if content != `{"riskLevel":"LOW"}` {
		t.Errorf("content = %q", content)
	}
	if got.System != "system" {
		t.Errorf("system channel = %q, want %q", got.System, "system")
	}
	if len(got.Messages) != 1 || got.Messages[0].Content != "user" {
		t.Errorf("messages = %+v, want a single user turn", got.Messages)
	}
	if got.Temperature == nil || *got.Temperature != 0.3 {
		t.Errorf("temperature = %v, want 0.3", got.Temperature)
	}
}

func TestAnthropic_NonTextBlockReturnsEmpty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(anthropicResponse{
			Content: []anthropicBlock{{Type: "tool_use"}, {Type: "text", Text: "ignored"}},
		})
	}))
	defer server.Close()

	content, err := newTestAnthropic(server.URL).Review(context.Background(), Request{UserPrompt: "x"})
	if err != nil {
		t.Fatalf("Review error: %v", err)
	}
	if content != "" {
		t.Errorf("content = %q, want empty", content)
	}
}

func TestAnthropic_DefaultMaxTokens(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req anthropicRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.MaxTokens != defaultMaxTokens {
			t.Errorf("max_tokens = %d, want %d", req.MaxTokens, defaultMaxTokens)
		}
		json.NewEncoder(w).Encode(anthropicResponse{Content: []anthropicBlock{{Type: "text", Text: "ok"}}})
	}))
	defer server.Close()

	if _, err := newTestAnthropic(server.URL).Generate(context.Background(), Request{UserPrompt: "x"}); err != nil {
		t.Fatalf("Generate error: %v", err)
	}
}

func TestAnthropic_AuthError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(401)
		w.Write([]byte(`{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`))
	}))
	defer server.Close()

	_, err := newTestAnthropic(server.URL).Review(context.Background(), Request{UserPrompt: "test"})
	if err == nil {
		t.Fatal("Expected auth error")
	}
	if !IsAuthError(err) {
		t.Errorf("Expected auth error, got: %v", err)
	}
	if err.Error() != "invalid x-api-key" {
		t.Errorf("message = %q, want backend message unchanged", err.Error())
	}
}

// rewriteTransport rewrites all request URLs to point at the test server.
type rewriteTransport struct {
	base    http.RoundTripper
	baseURL string
}

func (t *rewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.URL.Scheme = "http"
	req.URL.Host = t.baseURL[len("http://"):]
	if t.base != nil {
		return t.base.RoundTrip(req)
	}
	return http.DefaultTransport.RoundTrip(req)
}
