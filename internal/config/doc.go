// Package config loads and merges prreview configuration with koanf.
//
// Precedence (highest to lowest):
//  1. CLI flags
//  2. Environment variables (PRREVIEW_PROVIDER, PRREVIEW_MAX_FILES, ...)
//  3. Project file (.prreview.toml in the repository root)
//  4. User file ($XDG_CONFIG_HOME/prreview/config.toml)
//  5. Built-in defaults
//
// Use [Load] to obtain a merged [Config] and [Set] to update a single key in
// the user file. A Config is a value; callers take a fresh one per operation.
package config
