// Package redact removes secrets from diffs before they are sent to an AI
// provider.
//
// Detection uses regex heuristics for common secret shapes: provider API
// keys, cloud credentials, JWTs, bearer tokens, private key headers,
// connection strings with inline passwords, and secret-looking assignments.
// Files matching path patterns (.env, key material) keep their diff header so
// the model still sees that they changed, but their hunks are withheld.
package redact
