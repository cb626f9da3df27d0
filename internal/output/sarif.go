package output

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"

	"github.com/dshills/prreview/internal/annotate"
)

// Version is reported as the SARIF driver version. The CLI sets it from
// build info.
var Version = "dev"

// SARIFWriter outputs findings in SARIF v2.1.0 format.
type SARIFWriter struct{}

func (s *SARIFWriter) Write(w io.Writer, report *Report) error {
	data, err := json.MarshalIndent(buildSARIF(report), "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling SARIF: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("writing SARIF: %w", err)
	}
	_, err = fmt.Fprintln(w)
	return err
}

// SARIF schema types (v2.1.0)

type sarifLog struct {
	Version string     `json:"version"`
	Schema  string     `json:"$schema"`
	Runs    []sarifRun `json:"runs"`
}

type sarifRun struct {
	Tool       sarifTool     `json:"tool"`
	Results    []sarifResult `json:"results"`
	Properties sarifRunProps `json:"properties"`
}

type sarifRunProps struct {
	RiskLevel string `json:"riskLevel"`
	Summary   string `json:"summary,omitempty"`
}

type sarifTool struct {
	Driver sarifDriver `json:"driver"`
}

type sarifDriver struct {
	Name           string      `json:"name"`
	Version        string      `json:"version"`
	InformationURI string      `json:"informationUri"`
	Rules          []sarifRule `json:"rules"`
}

type sarifRule struct {
	ID               string             `json:"id"`
	Name             string             `json:"name"`
	ShortDescription sarifMessage       `json:"shortDescription"`
	DefaultConfig    sarifDefaultConfig `json:"defaultConfiguration"`
}

type sarifDefaultConfig struct {
	Level string `json:"level"`
}

type sarifResult struct {
	RuleID    string          `json:"ruleId"`
	Level     string          `json:"level"`
	Message   sarifMessage    `json:"message"`
	Locations []sarifLocation `json:"locations,omitempty"`
	Fixes     []sarifFix      `json:"fixes,omitempty"`
}

type sarifMessage struct {
	Text string `json:"text"`
}

type sarifLocation struct {
	PhysicalLocation sarifPhysicalLocation `json:"physicalLocation"`
}

type sarifPhysicalLocation struct {
	ArtifactLocation sarifArtifactLocation `json:"artifactLocation"`
	Region           sarifRegion           `json:"region"`
}

type sarifArtifactLocation struct {
	URI string `json:"uri"`
}

type sarifRegion struct {
	StartLine int `json:"startLine"`
}

type sarifFix struct {
	Description sarifMessage `json:"description"`
}

// sarifLevels maps categories to SARIF levels, mirroring the annotation
// severities.
var sarifLevels = map[string]string{
	annotate.CategoryBlocking:   "error",
	annotate.CategorySuggestion: "warning",
	annotate.CategoryNote:       "note",
}

func buildSARIF(report *Report) sarifLog {
	results := []sarifResult{}
	var rules []sarifRule
	for _, c := range categories(report.Result) {
		if len(c.issues) == 0 {
			continue
		}
		ruleID := "prreview/" + c.key
		rules = append(rules, sarifRule{
			ID:               ruleID,
			Name:             c.title,
			ShortDescription: sarifMessage{Text: c.title + " reported by AI review"},
			DefaultConfig:    sarifDefaultConfig{Level: sarifLevels[c.key]},
		})
		for _, issue := range c.issues {
			r := sarifResult{
				RuleID:  ruleID,
				Level:   sarifLevels[c.key],
				Message: sarifMessage{Text: issue.Description},
			}
			if issue.File != "" {
				r.Locations = []sarifLocation{{
					PhysicalLocation: sarifPhysicalLocation{
						ArtifactLocation: sarifArtifactLocation{URI: filepath.ToSlash(issue.File)},
						Region:           sarifRegion{StartLine: max(1, issue.Line)},
					},
				}}
			}
			if issue.SuggestedFix != "" {
				r.Fixes = []sarifFix{{Description: sarifMessage{Text: issue.SuggestedFix}}}
			}
			results = append(results, r)
		}
	}

	return sarifLog{
		Version: "2.1.0",
		Schema:  "https://raw.githubusercontent.com/oasis-tcs/sarif-spec/main/sarif-2.1/schema/sarif-schema-2.1.0.json",
		Runs: []sarifRun{{
			Tool: sarifTool{Driver: sarifDriver{
				Name:           "prreview",
				Version:        Version,
				InformationURI: "https://github.com/dshills/prreview",
				Rules:          rules,
			}},
			Results: results,
			Properties: sarifRunProps{
				RiskLevel: string(report.Result.RiskLevel),
				Summary:   report.Result.Summary,
			},
		}},
	}
}
