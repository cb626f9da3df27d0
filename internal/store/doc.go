// Package store persists review output on the local machine.
//
// Store keeps the last Record per workspace root as a JSON file named by the
// SHA-256 of the root path. It backs the checklist's review-completed check,
// "prreview show" and "prreview publish". Responses is an optional cache of
// raw provider responses keyed by the exact request.
//
// Both live under $XDG_CACHE_HOME/prreview (or the OS-appropriate
// equivalent). Files are replaced atomically.
package store
