// Package sizegate classifies a change set by size. It holds no state and
// never prompts; callers decide what to do with NeedsConfirmation.
package sizegate

import (
	"fmt"

	"github.com/dshills/prreview/internal/gitctx"
)

// Decision is the gate outcome.
type Decision int

const (
	Proceed Decision = iota
	NeedsConfirmation
)

func (d Decision) String() string {
	if d == NeedsConfirmation {
		return "needs-confirmation"
	}
	return "proceed"
}

// Check returns Proceed when fileCount <= maxFiles, else NeedsConfirmation.
func Check(fileCount, maxFiles int) Decision {
	if fileCount > maxFiles {
		return NeedsConfirmation
	}
	return Proceed
}

// Warning is the message shown when a change set needs confirmation.
func Warning(fileCount, maxFiles int) string {
	return fmt.Sprintf("This change touches %d files (limit %d). Large PRs are harder to review; consider splitting it.", fileCount, maxFiles)
}

// Counts holds per-status file totals.
type Counts struct {
	Total    int                       `json:"total"`
	ByStatus map[gitctx.FileStatus]int `json:"byStatus"`
}

// Get returns the count for status, zero when absent.
func (c Counts) Get(status gitctx.FileStatus) int {
	return c.ByStatus[status]
}

// Stats counts files per status. The result does not depend on order.
func Stats(files []gitctx.ChangedFile) Counts {
	c := Counts{Total: len(files), ByStatus: make(map[gitctx.FileStatus]int)}
	for _, f := range files {
		c.ByStatus[f.Status]++
	}
	return c
}

// ShouldBlock reports whether blocking findings stop a commit or merge under
// the block-on-issues policy.
func ShouldBlock(blocking int, blockOnIssues bool) bool {
	return blockOnIssues && blocking > 0
}
