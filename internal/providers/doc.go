// Package providers puts the supported AI backends behind one Provider
// interface.
//
// Supported backends: OpenAI (chat completions with JSON mode), Anthropic
// (Messages API with a separate system channel), Google Gemini (single-prompt
// generateContent) and a local Ollama server via langchaingo.
//
// The HTTP adapters share a rate limiter and a retry helper that backs off
// exponentially on 429 responses. Clients are plain fields so tests can point
// them at httptest servers.
//
// Use [NewSession] with a configuration snapshot; the adapter is selected
// with [New] on first use.
package providers
