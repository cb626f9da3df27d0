package review

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/kaptinlin/jsonrepair"
	"github.com/rs/zerolog/log"
)

const (
	defaultSummary     = "No summary provided"
	defaultDescription = "(no description)"
)

// MalformedResponseError is returned when no JSON object can be decoded from
// a model response. Raw always holds the complete response text.
type MalformedResponseError struct {
	Raw string
	Err error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("malformed review response: %v", e.Err)
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }

// ParseOptions tunes ParseResult.
type ParseOptions struct {
	// Repair runs one jsonrepair pass over text that fails strict decoding.
	Repair bool
}

// An extractor returns the candidate JSON text found in raw, or false.
type extractor func(raw string) (string, bool)

var (
	jsonFence = regexp.MustCompile("(?is)```json\\s*(.*?)\\s*```")
	anyFence  = regexp.MustCompile("(?s)```[\\w-]*\\s*(.*?)\\s*```")
)

func fenced(re *regexp.Regexp) extractor {
	return func(raw string) (string, bool) {
		m := re.FindStringSubmatch(raw)
		if m == nil {
			return "", false
		}
		return m[1], true
	}
}

// extractors are tried in order; the raw text is the final fallback.
var extractors = []extractor{
	fenced(jsonFence),
	fenced(anyFence),
}

func extractJSON(raw string) string {
	for _, ex := range extractors {
		if s, ok := ex(raw); ok {
			return s
		}
	}
	return raw
}

// wireResult keeps every field raw so that a wrongly typed field degrades to
// its default instead of failing the whole decode.
type wireResult struct {
	RiskLevel      json.RawMessage `json:"riskLevel"`
	Summary        json.RawMessage `json:"summary"`
	BlockingIssues json.RawMessage `json:"blockingIssues"`
	Suggestions    json.RawMessage `json:"suggestions"`
	Notes          json.RawMessage `json:"notes"`
}

type wireIssue struct {
	File         json.RawMessage `json:"file"`
	Line         json.RawMessage `json:"line"`
	Description  json.RawMessage `json:"description"`
	SuggestedFix json.RawMessage `json:"suggestedFix"`
}

// ParseResult extracts and validates a Result from a model response.
func ParseResult(raw string) (Result, error) {
	return ParseWithOptions(raw, ParseOptions{})
}

// ParseWithOptions is ParseResult with optional JSON repair.
func ParseWithOptions(raw string, opts ParseOptions) (Result, error) {
	text := extractJSON(raw)

	w, err := decodeStrict(text)
	if err != nil && opts.Repair {
		if fixed, rerr := jsonrepair.JSONRepair(text); rerr == nil {
			log.Debug().Int("raw_bytes", len(raw)).Msg("decoding repaired review response")
			w, err = decodeStrict(fixed)
		}
	}
	if err != nil {
		return Result{}, &MalformedResponseError{Raw: raw, Err: err}
	}
	return w.normalize(), nil
}

func decodeStrict(text string) (wireResult, error) {
	if !strings.HasPrefix(strings.TrimSpace(text), "{") {
		return wireResult{}, errors.New("response is not a JSON object")
	}
	var w wireResult
	dec := json.NewDecoder(strings.NewReader(text))
	if err := dec.Decode(&w); err != nil {
		return wireResult{}, err
	}
	// Trailing content after the object means the selection was wrong.
	if err := dec.Decode(&json.RawMessage{}); err != io.EOF {
		return wireResult{}, errors.New("unexpected data after JSON object")
	}
	return w, nil
}

func (w wireResult) normalize() Result {
	r := Result{
		RiskLevel:      RiskMedium,
		Summary:        defaultSummary,
		BlockingIssues: normalizeIssues(w.BlockingIssues),
		Suggestions:    normalizeIssues(w.Suggestions),
		Notes:          normalizeIssues(w.Notes),
	}
	if s, ok := asString(w.RiskLevel); ok {
		r.RiskLevel = ParseRiskLevel(s)
	}
	if s, ok := asString(w.Summary); ok && s != "" {
		r.Summary = s
	}
	return r
}

func normalizeIssues(raw json.RawMessage) []Issue {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return []Issue{}
	}
	out := make([]Issue, 0, len(items))
	for _, item := range items {
		var wi wireIssue
		if err := json.Unmarshal(item, &wi); err != nil {
			continue
		}
		is := Issue{Line: clampLine(wi.Line)}
		is.File, _ = asString(wi.File)
		is.Description, _ = asString(wi.Description)
		is.SuggestedFix, _ = asString(wi.SuggestedFix)
		if is.Description == "" {
			is.Description = defaultDescription
		}
		out = append(out, is)
	}
	return out
}

func asString(raw json.RawMessage) (string, bool) {
	var s string
	if len(raw) == 0 || json.Unmarshal(raw, &s) != nil {
		return "", false
	}
	return s, true
}

// clampLine converts an untrusted line value to a 1-based line number.
// Numbers, numeric strings and floats are accepted; anything else is line 1.
func clampLine(raw json.RawMessage) int {
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		s, ok := asString(raw)
		if !ok {
			return 1
		}
		if f, err = strconv.ParseFloat(strings.TrimSpace(s), 64); err != nil {
			return 1
		}
	}
	if f < 1 || math.IsNaN(f) {
		return 1
	}
	if f > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(f)
}
