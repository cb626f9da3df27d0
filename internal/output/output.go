package output

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dshills/prreview/internal/annotate"
	"github.com/dshills/prreview/internal/gitctx"
	"github.com/dshills/prreview/internal/orchestrator"
	"github.com/dshills/prreview/internal/review"
	"github.com/dshills/prreview/internal/sizegate"
	"github.com/dshills/prreview/internal/store"
)

// Report is the read-only view every writer renders.
type Report struct {
	RunID       string                           `json:"runId"`
	Branch      string                           `json:"branch,omitempty"`
	Base        string                           `json:"base,omitempty"`
	Provider    string                           `json:"provider"`
	Model       string                           `json:"model,omitempty"`
	CreatedAt   time.Time                        `json:"createdAt"`
	Duration    time.Duration                    `json:"durationNs,omitempty"`
	Cached      bool                             `json:"cached,omitempty"`
	Result      review.Result                    `json:"result"`
	Annotations map[string][]annotate.Annotation `json:"annotations,omitempty"`
	Files       []gitctx.ChangedFile             `json:"files"`
	Stats       sizegate.Counts                  `json:"stats"`

	// Root makes annotation paths relative in human formats.
	Root string `json:"-"`
	// Inline controls whether the text writer lists per-line annotations.
	Inline bool `json:"-"`
}

// FromOutcome builds a Report from a fresh run.
func FromOutcome(o *orchestrator.Outcome, model, root string) *Report {
	return &Report{
		RunID:       o.RunID,
		Branch:      o.Branch,
		Base:        o.Base,
		Provider:    o.Provider,
		Model:       model,
		CreatedAt:   time.Now().UTC(),
		Duration:    o.Duration,
		Cached:      o.Cached,
		Result:      o.Result,
		Annotations: o.Annotations,
		Files:       o.Files,
		Stats:       o.Stats,
		Root:        root,
		Inline:      true,
	}
}

// FromRecord rebuilds a Report from a stored review. Annotations are
// recomputed, which is safe because mapping is pure.
func FromRecord(r store.Record) *Report {
	return &Report{
		RunID:       r.RunID,
		Branch:      r.Branch,
		Base:        r.Base,
		Provider:    r.Provider,
		Model:       r.Model,
		CreatedAt:   r.CreatedAt,
		Result:      r.Result,
		Annotations: annotate.Map(r.Result, r.Workspace),
		Files:       r.Files,
		Stats:       sizegate.Stats(r.Files),
		Root:        r.Workspace,
		Inline:      true,
	}
}

// Writer writes a report in a specific format.
type Writer interface {
	Write(w io.Writer, report *Report) error
}

// Formats lists the supported format names.
var Formats = []string{"text", "json", "markdown", "sarif"}

// GetWriter returns a writer for the specified format.
func GetWriter(format string) (Writer, error) {
	switch format {
	case "text", "":
		return &TextWriter{}, nil
	case "json":
		return &JSONWriter{}, nil
	case "markdown", "md":
		return &MarkdownWriter{}, nil
	case "sarif":
		return &SARIFWriter{}, nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}

// WriteReport writes the report to outPath, or to stdout when outPath is
// empty.
func WriteReport(report *Report, format, outPath string) error {
	writer, err := GetWriter(format)
	if err != nil {
		return err
	}

	var w io.Writer = os.Stdout
	if outPath != "" {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("creating output file: %w", err)
		}
		defer f.Close()
		w = f
	}
	return writer.Write(w, report)
}

// errWriter wraps an io.Writer and captures the first error.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...any) {
	if ew.err != nil {
		return
	}
	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}

func (ew *errWriter) println(s string) {
	if ew.err != nil {
		return
	}
	_, ew.err = fmt.Fprintln(ew.w, s)
}

// category pairs an issue list with its presentation labels.
type category struct {
	key    string
	title  string
	issues []review.Issue
}

func categories(r review.Result) []category {
	return []category{
		{annotate.CategoryBlocking, "Blocking Issues", r.BlockingIssues},
		{annotate.CategorySuggestion, "Suggestions", r.Suggestions},
		{annotate.CategoryNote, "Notes", r.Notes},
	}
}
