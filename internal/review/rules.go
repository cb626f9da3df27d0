package review

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Rules is a team review policy loaded from a JSON file. It only shapes the
// prompt; the parsed result is never rewritten.
type Rules struct {
	Focus    []string        `json:"focus,omitempty"`
	Required []RequiredCheck `json:"required,omitempty"`
}

// RequiredCheck is a policy check the model is asked to always evaluate.
type RequiredCheck struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// LoadRules loads a rules file from disk. Returns nil Rules and nil error if path is empty.
func LoadRules(path string) (*Rules, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading rules file: %w", err)
	}
	var rules Rules
	if err := json.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("parsing rules file %s: %w", path, err)
	}
	for i, req := range rules.Required {
		if strings.TrimSpace(req.Text) == "" {
			return nil, fmt.Errorf("rules file %s: required check %d has no text", path, i)
		}
	}
	return &rules, nil
}

// BuildRulesPromptSection returns additional prompt instructions derived from rules.
func BuildRulesPromptSection(rules *Rules) string {
	if rules == nil {
		return ""
	}

	var b strings.Builder

	if len(rules.Focus) > 0 {
		fmt.Fprintf(&b, "**Focus areas:** %s. Prioritize findings in these areas.\n",
			strings.Join(rules.Focus, ", "))
	}

	if len(rules.Required) > 0 {
		b.WriteString("**Required checks** (report any violation as a blocking issue):\n")
		for _, req := range rules.Required {
			if req.ID != "" {
				fmt.Fprintf(&b, "- [%s] %s\n", req.ID, req.Text)
			} else {
				fmt.Fprintf(&b, "- %s\n", req.Text)
			}
		}
	}

	return b.String()
}
