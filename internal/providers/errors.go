package providers

import (
	"errors"
	"os"
)

// ConfigError reports a configuration problem detected before any network
// activity: an unknown provider or a credential that cannot be resolved.
type ConfigError struct {
	Msg string
}

func (e *ConfigError) Error() string { return e.Msg }

// CallError wraps a failed backend call. Error returns the backend's own
// message unchanged so callers can tell auth, quota and network failures
// apart.
type CallError struct {
	Provider   string
	StatusCode int
	Message    string
	Err        error
}

func (e *CallError) Error() string { return e.Message }

func (e *CallError) Unwrap() error { return e.Err }

type rateLimitError struct {
	message string
}

func (e *rateLimitError) Error() string {
	if e.message == "" {
		return "rate limited"
	}
	return e.message
}

type authError struct {
	message string
}

func (e *authError) Error() string {
	return "authentication error: " + e.message
}

type statusError struct {
	status  int
	message string
}

func (e *statusError) Error() string { return e.message }

// IsAuthError reports whether err was caused by rejected credentials.
func IsAuthError(err error) bool {
	var ae *authError
	return errors.As(err, &ae)
}

// IsConfigError reports whether err is a *ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

func callError(provider string, err error) error {
	if err == nil {
		return nil
	}
	var ce *CallError
	if errors.As(err, &ce) {
		return err
	}
	out := &CallError{Provider: provider, Message: err.Error(), Err: err}
	var se *statusError
	if errors.As(err, &se) {
		out.StatusCode = se.status
	}
	var ae *authError
	if errors.As(err, &ae) {
		out.StatusCode = 401
		out.Message = ae.message
	}
	var rl *rateLimitError
	if errors.As(err, &rl) {
		out.StatusCode = 429
	}
	return out
}

// resolveKey returns the explicit key, else the first non-empty env var.
func resolveKey(explicit string, envVars ...string) string {
	if explicit != "" {
		return explicit
	}
	for _, name := range envVars {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	return ""
}
