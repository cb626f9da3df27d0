package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/dshills/prreview/internal/checklist"
	"github.com/dshills/prreview/internal/logging"
	"github.com/dshills/prreview/internal/providers"
	"github.com/dshills/prreview/internal/redact"
)

const (
	appName = "prreview"
	// ProjectFile is looked up in the repository root.
	ProjectFile = ".prreview.toml"
	envPrefix   = "PRREVIEW_"
)

// Config represents the prreview configuration.
type Config struct {
	Provider            string            `koanf:"provider"`
	APIKey              string            `koanf:"apiKey"`
	BaseBranch          string            `koanf:"baseBranch"`
	MaxFiles            int               `koanf:"maxFiles"`
	MaxTokens           int               `koanf:"maxTokens"`
	Temperature         float64           `koanf:"temperature"`
	CustomPrompt        string            `koanf:"customPrompt"`
	InlineAnnotations   bool              `koanf:"inlineAnnotations"`
	AutoRunChecklist    bool              `koanf:"autoRunChecklist"`
	BlockCommitOnIssues bool              `koanf:"blockCommitOnIssues"`
	Models              map[string]string `koanf:"models"`
	OllamaURL           string            `koanf:"ollamaURL"`
	RepairJSON          bool              `koanf:"repairJSON"`
	Redact              bool              `koanf:"redact"`
	RedactPaths         []string          `koanf:"redactPaths"`
	Exclude             []string          `koanf:"exclude"`
	RulesFile           string            `koanf:"rulesFile"`

	Checklist checklist.Candidates `koanf:"checklist"`
	Runner    RunnerConfig         `koanf:"runner"`
	Cache     CacheConfig          `koanf:"cache"`
	Log       LogConfig            `koanf:"log"`
}

// RunnerConfig controls checklist command execution.
type RunnerConfig struct {
	Timeout time.Duration `koanf:"timeout"`
	// Grace switches to the fixed-window executor for tools that never exit
	// (watch modes, dev servers).
	Grace       bool          `koanf:"grace"`
	GraceWindow time.Duration `koanf:"graceWindow"`
}

// CacheConfig controls the raw response cache.
type CacheConfig struct {
	Enabled bool          `koanf:"enabled"`
	Dir     string        `koanf:"dir"`
	TTL     time.Duration `koanf:"ttl"`
}

// LogConfig controls logging.
type LogConfig struct {
	Level string `koanf:"level"`
}

// defaults is the lowest-precedence layer. Durations are strings so the
// TOML written by Set stays readable.
func defaults() map[string]any {
	c := checklist.DefaultCandidates()
	return map[string]any{
		"provider":            "openai",
		"apiKey":              "",
		"baseBranch":          "development",
		"maxFiles":            10,
		"maxTokens":           4000,
		"temperature":         providers.ReviewTemperature,
		"customPrompt":        "",
		"inlineAnnotations":   true,
		"autoRunChecklist":    false,
		"blockCommitOnIssues": true,
		"models.openai":       providers.DefaultModels["openai"],
		"models.anthropic":    providers.DefaultModels["anthropic"],
		"models.gemini":       providers.DefaultModels["gemini"],
		"models.ollama":       providers.DefaultModels["ollama"],
		"ollamaURL":           "",
		"repairJSON":          false,
		"redact":              true,
		"redactPaths":         append([]string(nil), redact.DefaultPaths...),
		"exclude":             []string{"vendor/**", "**/*.gen.go", "**/dist/**", "package-lock.json", "yarn.lock"},
		"rulesFile":           "",
		"checklist.lint":      c.Lint,
		"checklist.build":     c.Build,
		"checklist.tests":     c.Tests,
		"runner.timeout":      "5m",
		"runner.grace":        false,
		"runner.graceWindow":  "5s",
		"cache.enabled":       true,
		"cache.dir":           "",
		"cache.ttl":           "24h",
		"log.level":           "warn",
	}
}

// envKeys maps PRREVIEW_* suffixes to config keys. Unlisted variables are
// ignored.
var envKeys = map[string]string{
	"PROVIDER":               "provider",
	"API_KEY":                "apiKey",
	"BASE_BRANCH":            "baseBranch",
	"MAX_FILES":              "maxFiles",
	"MAX_TOKENS":             "maxTokens",
	"TEMPERATURE":            "temperature",
	"CUSTOM_PROMPT":          "customPrompt",
	"INLINE_ANNOTATIONS":     "inlineAnnotations",
	"AUTO_RUN_CHECKLIST":     "autoRunChecklist",
	"BLOCK_COMMIT_ON_ISSUES": "blockCommitOnIssues",
	"MODELS_OPENAI":          "models.openai",
	"MODELS_ANTHROPIC":       "models.anthropic",
	"MODELS_GEMINI":          "models.gemini",
	"MODELS_OLLAMA":          "models.ollama",
	"OLLAMA_URL":             "ollamaURL",
	"REPAIR_JSON":            "repairJSON",
	"REDACT":                 "redact",
	"RULES_FILE":             "rulesFile",
	"CACHE_ENABLED":          "cache.enabled",
	"CACHE_DIR":              "cache.dir",
	"CACHE_TTL":              "cache.ttl",
	"RUNNER_TIMEOUT":         "runner.timeout",
	"RUNNER_GRACE":           "runner.grace",
	"LOG_LEVEL":              "log.level",
}

func envKey(s string) string {
	return envKeys[strings.TrimPrefix(s, envPrefix)]
}

// Default returns a Config with all defaults applied.
func Default() Config {
	k := koanf.New(".")
	k.Load(confmap.Provider(defaults(), "."), nil)
	var cfg Config
	k.Unmarshal("", &cfg)
	return cfg
}

// LoadOptions selects the layers merged by Load.
type LoadOptions struct {
	// ProjectDir is searched for ProjectFile. Empty skips the project layer.
	ProjectDir string
	// UserFile overrides the user config path. Empty uses Path().
	UserFile string
	// Overrides come from CLI flags and win over everything else.
	Overrides map[string]any
}

// Load builds the effective config by merging:
// defaults <- user file <- project file <- env <- overrides.
func Load(opts LoadOptions) (Config, error) {
	k := koanf.New(".")
	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return Config{}, err
	}

	userFile := opts.UserFile
	if userFile == "" {
		p, err := Path()
		if err != nil {
			return Config{}, err
		}
		userFile = p
	}
	if err := loadFile(k, userFile); err != nil {
		return Config{}, err
	}
	if opts.ProjectDir != "" {
		if err := loadFile(k, filepath.Join(opts.ProjectDir, ProjectFile)); err != nil {
			return Config{}, err
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envKey), nil); err != nil {
		return Config{}, fmt.Errorf("loading environment: %w", err)
	}
	if len(opts.Overrides) > 0 {
		if err := k.Load(confmap.Provider(opts.Overrides, "."), nil); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}
	return cfg, nil
}

func loadFile(k *koanf.Koanf, path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
		return fmt.Errorf("reading config file %s: %w", path, err)
	}
	return nil
}

// ValidationError lists every invalid setting.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid configuration: " + strings.Join(e.Problems, "; ")
}

var knownProviders = []string{"openai", "anthropic", "gemini", "ollama"}

// Validate checks value ranges. It does not check credentials; those are
// resolved when the provider is built.
func (c Config) Validate() error {
	var problems []string
	p := providers.Canonical(c.Provider)
	if !contains(knownProviders, p) {
		problems = append(problems, fmt.Sprintf("unknown provider %q (want one of %s)", c.Provider, strings.Join(knownProviders, ", ")))
	}
	if c.BaseBranch == "" {
		problems = append(problems, "baseBranch must not be empty")
	}
	if c.MaxFiles < 1 {
		problems = append(problems, "maxFiles must be at least 1")
	}
	if c.MaxTokens < 1 {
		problems = append(problems, "maxTokens must be positive")
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		problems = append(problems, "temperature must be between 0 and 2")
	}
	if c.Runner.Timeout < 0 || c.Runner.GraceWindow < 0 || c.Cache.TTL < 0 {
		problems = append(problems, "durations must not be negative")
	}
	if lvl := strings.TrimSpace(c.Log.Level); lvl != "" && logging.ParseLevel(lvl).String() != strings.ToLower(lvl) {
		problems = append(problems, fmt.Sprintf("unknown log level %q", c.Log.Level))
	}
	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

// ProviderConfig snapshots the provider settings for one operation.
func (c Config) ProviderConfig() providers.Config {
	p := providers.Canonical(c.Provider)
	temp := c.Temperature
	cfg := providers.Config{
		Provider:     p,
		APIKey:       c.APIKey,
		Model:        c.Models[p],
		MaxTokens:    c.MaxTokens,
		Temperature:  &temp,
		CustomPrompt: c.CustomPrompt,
	}
	if p == "ollama" {
		cfg.BaseURL = c.OllamaURL
	}
	return cfg
}

// Keys returns every settable key, sorted.
func Keys() []string {
	k := koanf.New(".")
	k.Load(confmap.Provider(defaults(), "."), nil)
	keys := k.Keys()
	sort.Strings(keys)
	return keys
}

// Get returns the effective value of key from cfg, formatted for display.
func Get(cfg Config, key string) (string, error) {
	k := koanf.New(".")
	if err := k.Load(confmap.Provider(toMap(cfg), "."), nil); err != nil {
		return "", err
	}
	if !k.Exists(key) {
		return "", fmt.Errorf("unknown config key: %s", key)
	}
	if list := k.Strings(key); len(list) > 0 {
		return strings.Join(list, ","), nil
	}
	return k.String(key), nil
}

// toMap flattens cfg into koanf keys.
func toMap(c Config) map[string]any {
	m := map[string]any{
		"provider":            c.Provider,
		"apiKey":              c.APIKey,
		"baseBranch":          c.BaseBranch,
		"maxFiles":            c.MaxFiles,
		"maxTokens":           c.MaxTokens,
		"temperature":         c.Temperature,
		"customPrompt":        c.CustomPrompt,
		"inlineAnnotations":   c.InlineAnnotations,
		"autoRunChecklist":    c.AutoRunChecklist,
		"blockCommitOnIssues": c.BlockCommitOnIssues,
		"ollamaURL":           c.OllamaURL,
		"repairJSON":          c.RepairJSON,
		"redact":              c.Redact,
		"redactPaths":         c.RedactPaths,
		"exclude":             c.Exclude,
		"rulesFile":           c.RulesFile,
		"checklist.lint":      c.Checklist.Lint,
		"checklist.build":     c.Checklist.Build,
		"checklist.tests":     c.Checklist.Tests,
		"runner.timeout":      c.Runner.Timeout.String(),
		"runner.grace":        c.Runner.Grace,
		"runner.graceWindow":  c.Runner.GraceWindow.String(),
		"cache.enabled":       c.Cache.Enabled,
		"cache.dir":           c.Cache.Dir,
		"cache.ttl":           c.Cache.TTL.String(),
		"log.level":           c.Log.Level,
	}
	for name, model := range c.Models {
		m["models."+name] = model
	}
	return m
}

// Set validates value against the type of key and persists it to the user
// config file, keeping every other key already in that file.
func Set(key, value string) error {
	path, err := Path()
	if err != nil {
		return err
	}
	return SetIn(path, key, value)
}

// SetIn is Set against an explicit file.
func SetIn(path, key, value string) error {
	def := koanf.New(".")
	def.Load(confmap.Provider(defaults(), "."), nil)
	if !def.Exists(key) {
		return fmt.Errorf("unknown config key: %s", key)
	}
	typed, err := coerce(key, def.Get(key), value)
	if err != nil {
		return err
	}

	k := koanf.New(".")
	if err := loadFile(k, path); err != nil {
		return err
	}
	if err := k.Load(confmap.Provider(map[string]any{key: typed}, "."), nil); err != nil {
		return err
	}

	var probe Config
	merged := koanf.New(".")
	merged.Load(confmap.Provider(defaults(), "."), nil)
	merged.Merge(k)
	if err := merged.Unmarshal("", &probe); err != nil {
		return fmt.Errorf("decoding config: %w", err)
	}
	if err := probe.Validate(); err != nil {
		return err
	}

	data, err := k.Marshal(toml.Parser())
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	// The file may hold an API key.
	return os.WriteFile(path, data, 0o600)
}

func coerce(key string, def any, value string) (any, error) {
	switch def.(type) {
	case bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return nil, fmt.Errorf("%s must be true or false", key)
		}
		return b, nil
	case int:
		n, err := strconv.Atoi(value)
		if err != nil {
			return nil, fmt.Errorf("%s must be an integer: %w", key, err)
		}
		return n, nil
	case float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, fmt.Errorf("%s must be a number: %w", key, err)
		}
		return f, nil
	case []string:
		var out []string
		for _, part := range strings.Split(value, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
		return out, nil
	}
	switch key {
	case "runner.timeout", "runner.graceWindow", "cache.ttl":
		if _, err := time.ParseDuration(value); err != nil {
			return nil, fmt.Errorf("%s must be a duration such as 5m: %w", key, err)
		}
	}
	return value, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// ConfigDir returns the platform-appropriate config directory for prreview.
func ConfigDir() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", appName), nil
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, appName), nil
		}
		return filepath.Join(home, "AppData", "Roaming", appName), nil
	default:
		return filepath.Join(home, ".config", appName), nil
	}
}

// Path returns the full path to the user config file.
func Path() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}
