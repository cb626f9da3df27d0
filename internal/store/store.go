package store

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/dshills/prreview/internal/gitctx"
	"github.com/dshills/prreview/internal/review"
)

// Record is the last review produced for a workspace.
type Record struct {
	RunID     string               `json:"runId"`
	Workspace string               `json:"workspace"`
	Branch    string               `json:"branch"`
	Base      string               `json:"base"`
	Head      string               `json:"head,omitempty"`
	Provider  string               `json:"provider"`
	Model     string               `json:"model,omitempty"`
	CreatedAt time.Time            `json:"createdAt"`
	Result    review.Result        `json:"result"`
	Files     []gitctx.ChangedFile `json:"files"`
}

// Store keeps one Record per workspace root as a JSON file.
type Store struct {
	dir string
}

// Open returns a Store rooted at dir, creating it if needed. If dir is empty,
// uses the default cache directory.
func Open(dir string) (*Store, error) {
	if dir == "" {
		d, err := DefaultDir()
		if err != nil {
			return nil, err
		}
		dir = filepath.Join(d, "reviews")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating store directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the store directory path.
func (s *Store) Dir() string { return s.dir }

// Save replaces the record for rec.Workspace.
func (s *Store) Save(rec Record) error {
	if rec.Workspace == "" {
		return errors.New("record has no workspace")
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling review record: %w", err)
	}
	return writeAtomic(s.path(rec.Workspace), data)
}

// Load returns the record for workspace. ok is false when none exists.
func (s *Store) Load(workspace string) (rec Record, ok bool, err error) {
	data, err := os.ReadFile(s.path(workspace))
	if errors.Is(err, os.ErrNotExist) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("reading review record: %w", err)
	}
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, false, fmt.Errorf("decoding review record %s: %w", s.path(workspace), err)
	}
	return rec, true, nil
}

// Delete removes the record for workspace. Missing records are not an error.
func (s *Store) Delete(workspace string) error {
	err := os.Remove(s.path(workspace))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// Clear removes every stored record and returns how many were removed.
func (s *Store) Clear() (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("reading store directory: %w", err)
	}
	var removed int
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".json" {
			if err := os.Remove(filepath.Join(s.dir, e.Name())); err == nil {
				removed++
			}
		}
	}
	return removed, nil
}

// Stats describes the store contents.
type Stats struct {
	Dir        string `json:"dir"`
	Entries    int    `json:"entries"`
	TotalBytes int64  `json:"totalBytes"`
}

// Stats returns information about the store.
func (s *Store) Stats() (Stats, error) {
	stats := Stats{Dir: s.dir}
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return stats, nil
		}
		return stats, fmt.Errorf("reading store directory: %w", err)
	}
	for _, e := range entries {
		if filepath.Ext(e.Name()) != ".json" {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		stats.Entries++
		stats.TotalBytes += info.Size()
	}
	return stats, nil
}

// HashKey creates a SHA-256 hash of the given key material.
func HashKey(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

func (s *Store) path(workspace string) string {
	return filepath.Join(s.dir, HashKey(filepath.Clean(workspace))+".json")
}

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replacing %s: %w", path, err)
	}
	return nil
}

// DefaultDir returns the per-user cache directory for prreview.
func DefaultDir() (string, error) {
	if xdg := os.Getenv("XDG_CACHE_HOME"); xdg != "" {
		return filepath.Join(xdg, "prreview"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Caches", "prreview"), nil
	case "windows":
		if localAppData := os.Getenv("LOCALAPPDATA"); localAppData != "" {
			return filepath.Join(localAppData, "prreview", "cache"), nil
		}
		return filepath.Join(home, "AppData", "Local", "prreview", "cache"), nil
	default:
		return filepath.Join(home, ".cache", "prreview"), nil
	}
}
