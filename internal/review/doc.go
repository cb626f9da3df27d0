// Package review defines the review result model and turns untrusted model
// output into it.
//
// ParseResult runs a three-tier extraction (a json-labelled fence, then any
// fence, then the raw text) followed by a strict JSON decode and field-by-field
// coercion: missing fields take defaults, issue lines are clamped to 1, and
// only a total decode failure is an error. That error is a
// *MalformedResponseError carrying the complete response text.
//
// Prompt builders for reviews, PR descriptions and staged reviews live in
// prompt.go; rules.go adds optional team focus areas and required checks.
package review
