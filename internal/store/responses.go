package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// cachedResponse is one raw provider response on disk.
type cachedResponse struct {
	Key       string    `json:"key"`
	Response  string    `json:"response"`
	CreatedAt time.Time `json:"createdAt"`
}

// Responses caches raw provider responses keyed by the exact request, so an
// unchanged diff is not sent twice. Only redacted prompts ever reach it.
type Responses struct {
	dir string
	ttl time.Duration
}

// OpenResponses returns a response cache under dir (default: the user cache
// directory). A zero ttl keeps entries forever.
func OpenResponses(dir string, ttl time.Duration) (*Responses, error) {
	if dir == "" {
		d, err := DefaultDir()
		if err != nil {
			return nil, err
		}
		dir = filepath.Join(d, "responses")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}
	return &Responses{dir: dir, ttl: ttl}, nil
}

// Get returns the cached response for key. Expired entries are removed.
func (r *Responses) Get(key string) (string, bool) {
	path := r.path(key)
	data, err := os.ReadFile(path)
	if err != nil {
		return "", false
	}
	var entry cachedResponse
	if err := json.Unmarshal(data, &entry); err != nil {
		return "", false
	}
	if r.ttl > 0 && time.Since(entry.CreatedAt) > r.ttl {
		os.Remove(path)
		return "", false
	}
	return entry.Response, true
}

// Put stores response under key.
func (r *Responses) Put(key, response string) error {
	data, err := json.Marshal(cachedResponse{
		Key:       HashKey(key),
		Response:  response,
		CreatedAt: time.Now(),
	})
	if err != nil {
		return fmt.Errorf("marshaling cache entry: %w", err)
	}
	return writeAtomic(r.path(key), data)
}

// Dir returns the cache directory path.
func (r *Responses) Dir() string { return r.dir }

func (r *Responses) path(key string) string {
	return filepath.Join(r.dir, HashKey(key)+".json")
}
