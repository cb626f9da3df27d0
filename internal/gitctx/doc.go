// Package gitctx is the version-control collaborator: it shells out to git to
// read the current branch, resolve the base branch (locally or as
// origin/<base>), and produce the working-tree and staged diffs.
//
// Changed-file statuses are derived by parsing the diff with go-gitdiff
// rather than inferred from line counts. Repository states that make a review
// impossible are reported as *PreconditionError.
package gitctx
