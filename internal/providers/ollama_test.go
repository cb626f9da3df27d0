package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

const ollamaChatReply = `{"model":"llama3","created_at":"2024-05-01T10:00:00Z","message":{"role":"assistant","content":"{\"riskLevel\":\"LOW\"}"},"done":true}`

func TestOllama_Review(t *testing.T) {
	var got map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("path = %q, want /api/chat", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "" {
			t.Error("Expected no Authorization header for keyless Ollama")
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(ollamaChatReply + "\n"))
	}))
	defer server.Close()

	o, err := NewOllama(Config{Provider: "ollama", Model: "llama3", BaseURL: server.URL})
	if err != nil {
		t.Fatalf("NewOllama: %v", err)
	}

	content, err := o.Review(context.Background(), Request{
		SystemPrompt: "system",
		UserPrompt:   "user",
		JSONMode:     true,
	})
	if err != nil {
		t.Fatalf("Review error: %v", err)
	}
	if content != `{"riskLevel":"LOW"}` {
		t.Errorf("content = %q", content)
	}
	msgs, _ := got["messages"].([]any)
	if len(msgs) != 2 {
		t.Errorf("sent %d messages, want system and user", len(msgs))
	}
}

func TestOllama_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(500)
		w.Write([]byte(`{"error":"model not loaded"}`))
	}))
	defer server.Close()

	o, err := NewOllama(Config{BaseURL: server.URL})
	if err != nil {
		t.Fatalf("NewOllama: %v", err)
	}
	_, err = o.Generate(context.Background(), Request{UserPrompt: "x"})
	if err == nil {
		t.Fatal("expected error for 500 response")
	}
	var ce *CallError
	if !asCallError(err, &ce) {
		t.Errorf("err = %T, want *CallError", err)
	}
}

func TestNormalizeOllamaURL(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"http://localhost:11434", "http://localhost:11434"},
		{"http://localhost:11434/", "http://localhost:11434"},
		{"http://localhost:1234/v1", "http://localhost:1234"},
		{"http://localhost:1234/v1/chat/completions", "http://localhost:1234"},
		{"http://gpu-box:11434/api/chat", "http://gpu-box:11434"},
	}
	for _, tt := range tests {
		if got := normalizeOllamaURL(tt.in); got != tt.want {
			t.Errorf("normalizeOllamaURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
