// Package precommit decides whether staged changes may be committed and
// manages the git hook that asks it.
//
// Validation fails open: if the review itself cannot run, the commit is
// allowed and the error is recorded in the Decision.
package precommit

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/dshills/prreview/internal/review"
	"github.com/dshills/prreview/internal/sizegate"
)

// Reviewer reviews the staged changes. It returns review.ErrNoChanges when
// nothing is staged.
type Reviewer interface {
	ReviewStaged(ctx context.Context) (review.Result, error)
}

// ReviewerFunc adapts a function to Reviewer.
type ReviewerFunc func(ctx context.Context) (review.Result, error)

func (f ReviewerFunc) ReviewStaged(ctx context.Context) (review.Result, error) { return f(ctx) }

// Decision is the outcome of a pre-commit validation.
type Decision struct {
	CanCommit bool
	// Reviewed is false when nothing was staged or the review failed.
	Reviewed bool
	Result   review.Result
	// Err is the review failure that was tolerated, if any.
	Err error
}

// Validate reviews staged changes and reports whether the commit may proceed.
func Validate(ctx context.Context, r Reviewer, blockOnIssues bool) Decision {
	result, err := r.ReviewStaged(ctx)
	switch {
	case errors.Is(err, review.ErrNoChanges):
		return Decision{CanCommit: true}
	case err != nil:
		log.Warn().Err(err).Msg("pre-commit review failed; allowing commit")
		return Decision{CanCommit: true, Err: err}
	}
	return Decision{
		CanCommit: !sizegate.ShouldBlock(len(result.BlockingIssues), blockOnIssues),
		Reviewed:  true,
		Result:    result,
	}
}
