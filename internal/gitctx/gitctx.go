package gitctx

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/bluekeyes/go-gitdiff/gitdiff"
)

// FileStatus classifies a changed file.
type FileStatus string

const (
	StatusModified FileStatus = "Modified"
	StatusAdded    FileStatus = "Added"
	StatusDeleted  FileStatus = "Deleted"
	StatusRenamed  FileStatus = "Renamed"
	StatusCopied   FileStatus = "Copied"
	StatusBinary   FileStatus = "Binary"
)

// Statuses lists every FileStatus in display order.
var Statuses = []FileStatus{StatusModified, StatusAdded, StatusDeleted, StatusRenamed, StatusCopied, StatusBinary}

// ChangedFile is one entry of a change set.
type ChangedFile struct {
	Path   string     `json:"path"`
	Status FileStatus `json:"status"`
}

// PreconditionError reports a repository state that makes a review
// impossible: not a repository, on the base branch, or a missing base.
type PreconditionError struct {
	Problems []string
}

func (e *PreconditionError) Error() string {
	return strings.Join(e.Problems, "; ")
}

// Preconditionf builds a PreconditionError with a single problem.
func Preconditionf(format string, args ...any) *PreconditionError {
	return &PreconditionError{Problems: []string{fmt.Sprintf(format, args...)}}
}

// Repo runs git in Dir. The zero value uses the process working directory.
type Repo struct {
	Dir string
}

// New returns a Repo rooted at dir.
func New(dir string) *Repo {
	return &Repo{Dir: dir}
}

// Root returns the repository top-level directory.
func (r *Repo) Root(ctx context.Context) (string, error) {
	out, err := r.git(ctx, "rev-parse", "--show-toplevel")
	if err != nil {
		return "", err
	}
	return filepath.FromSlash(strings.TrimSpace(out)), nil
}

// CurrentBranch returns the checked-out branch, or "" on a detached HEAD.
func (r *Repo) CurrentBranch(ctx context.Context) (string, error) {
	out, err := r.git(ctx, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		// A fresh repository has no HEAD commit yet; ask symbolic-ref instead.
		var pe *PreconditionError
		if errors.As(err, &pe) {
			return "", err
		}
		out, err = r.git(ctx, "symbolic-ref", "--short", "HEAD")
		if err != nil {
			return "", err
		}
	}
	branch := strings.TrimSpace(out)
	if branch == "HEAD" {
		return "", nil
	}
	return branch, nil
}

// BranchExists reports whether name exists locally or as origin/<name>.
func (r *Repo) BranchExists(ctx context.Context, name string) (bool, error) {
	ref, err := r.ResolveBase(ctx, name)
	if err != nil {
		return false, err
	}
	return ref != "", nil
}

// ResolveBase returns the ref to diff against: name when it exists locally,
// origin/<name> when only the remote-tracking branch exists, else "".
func (r *Repo) ResolveBase(ctx context.Context, name string) (string, error) {
	if name == "" {
		return "", nil
	}
	for _, ref := range []string{"refs/heads/" + name, "refs/remotes/origin/" + name} {
		ok, err := r.refExists(ctx, ref)
		if err != nil {
			return "", err
		}
		if ok {
			if strings.HasPrefix(ref, "refs/remotes/") {
				return "origin/" + name, nil
			}
			return name, nil
		}
	}
	return "", nil
}

func (r *Repo) refExists(ctx context.Context, ref string) (bool, error) {
	_, err := r.git(ctx, "rev-parse", "--verify", "--quiet", ref)
	if err == nil {
		return true, nil
	}
	var pe *PreconditionError
	if errors.As(err, &pe) {
		return false, err
	}
	var ge *Error
	if errors.As(err, &ge) && ge.ExitCode == 1 {
		return false, nil
	}
	return false, err
}

// Diff returns the unified diff between base and the working tree.
func (r *Repo) Diff(ctx context.Context, base string) (string, error) {
	out, err := r.git(ctx, "diff", base, "--")
	if err != nil {
		return "", fmt.Errorf("git diff %s: %w", base, err)
	}
	return out, nil
}

// ChangedFiles lists the files that differ between base and the working
// tree.
func (r *Repo) ChangedFiles(ctx context.Context, base string) ([]ChangedFile, error) {
	diff, err := r.Diff(ctx, base)
	if err != nil {
		return nil, err
	}
	return ParseFiles(diff)
}

// StagedDiff returns the diff of the index against HEAD.
func (r *Repo) StagedDiff(ctx context.Context) (string, error) {
	out, err := r.git(ctx, "diff", "--cached")
	if err != nil {
		return "", fmt.Errorf("git diff --cached: %w", err)
	}
	return out, nil
}

// HooksDir returns the absolute hooks directory, honouring core.hooksPath.
func (r *Repo) HooksDir(ctx context.Context) (string, error) {
	out, err := r.git(ctx, "rev-parse", "--git-path", "hooks")
	if err != nil {
		return "", err
	}
	dir := filepath.FromSlash(strings.TrimSpace(out))
	if !filepath.IsAbs(dir) {
		base := r.Dir
		if base == "" {
			base = "."
		}
		dir = filepath.Join(base, dir)
	}
	return filepath.Abs(dir)
}

// RemoteURL returns the URL of the named remote.
func (r *Repo) RemoteURL(ctx context.Context, remote string) (string, error) {
	out, err := r.git(ctx, "remote", "get-url", remote)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// HeadSHA returns the commit HEAD points at.
func (r *Repo) HeadSHA(ctx context.Context) (string, error) {
	out, err := r.git(ctx, "rev-parse", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// ParseFiles derives ChangedFile entries from a unified diff.
func ParseFiles(diff string) ([]ChangedFile, error) {
	if strings.TrimSpace(diff) == "" {
		return nil, nil
	}
	files, _, err := gitdiff.Parse(strings.NewReader(diff))
	if err != nil {
		return nil, fmt.Errorf("parsing diff: %w", err)
	}
	out := make([]ChangedFile, 0, len(files))
	for _, f := range files {
		out = append(out, ChangedFile{Path: filePath(f), Status: fileStatus(f)})
	}
	return out, nil
}

func filePath(f *gitdiff.File) string {
	if f.IsDelete || f.NewName == "" {
		return f.OldName
	}
	return f.NewName
}

func fileStatus(f *gitdiff.File) FileStatus {
	switch {
	case f.IsBinary:
		return StatusBinary
	case f.IsNew:
		return StatusAdded
	case f.IsDelete:
		return StatusDeleted
	case f.IsRename:
		return StatusRenamed
	case f.IsCopy:
		return StatusCopied
	default:
		return StatusModified
	}
}

// Paths returns the path of every file, preserving order.
func Paths(files []ChangedFile) []string {
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.Path
	}
	return out
}

// Error is a failed git invocation.
type Error struct {
	Args     []string
	ExitCode int
	Stderr   string
}

func (e *Error) Error() string {
	msg := strings.TrimSpace(e.Stderr)
	if msg == "" {
		msg = "exit status " + strconv.Itoa(e.ExitCode)
	}
	return fmt.Sprintf("git %s: %s", strings.Join(e.Args, " "), msg)
}

func (r *Repo) git(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = r.Dir
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err == nil {
		return string(out), nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return "", ctxErr
	}
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return "", fmt.Errorf("running git: %w", err)
	}
	if strings.Contains(strings.ToLower(stderr.String()), "not a git repository") {
		return "", Preconditionf("not a git repository")
	}
	return string(out), &Error{Args: args, ExitCode: exitErr.ExitCode(), Stderr: stderr.String()}
}
