package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/bluekeyes/go-gitdiff/gitdiff"
	gh "github.com/google/go-github/v68/github"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"

	"github.com/dshills/prreview/internal/annotate"
	"github.com/dshills/prreview/internal/output"
	"github.com/dshills/prreview/internal/review"
)

// ErrAuth marks credential failures so callers can tell them apart.
var ErrAuth = errors.New("github authentication failed")

// Client posts reviews to GitHub pull requests.
type Client struct {
	api *gh.Client
}

// NewClient creates a client authenticated with token, or GITHUB_TOKEN when
// token is empty. apiURL (or GITHUB_API_URL) selects a GitHub Enterprise
// server.
func NewClient(ctx context.Context, token, apiURL string) (*Client, error) {
	if token == "" {
		token = os.Getenv("GITHUB_TOKEN")
	}
	if token == "" {
		return nil, fmt.Errorf("%w: GITHUB_TOKEN environment variable is not set", ErrAuth)
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	return newClient(oauth2.NewClient(ctx, ts), apiURL)
}

func newClient(hc *http.Client, apiURL string) (*Client, error) {
	if apiURL == "" {
		apiURL = os.Getenv("GITHUB_API_URL")
	}
	api := gh.NewClient(hc)
	if apiURL != "" && apiURL != "https://api.github.com" {
		u, err := url.Parse(strings.TrimRight(apiURL, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("parsing GitHub API URL: %w", err)
		}
		api.BaseURL = u
	}
	return &Client{api: api}, nil
}

// Commentable maps each PR file to the new-side lines a review comment may
// anchor to. GitHub rejects comments on lines outside the diff hunks.
type Commentable map[string]map[int]bool

// Has reports whether line of path can carry an inline comment.
func (c Commentable) Has(path string, line int) bool {
	return c[path][line]
}

// PRFiles lists the files of a pull request with their commentable lines.
func (c *Client) PRFiles(ctx context.Context, owner, repo string, number int) (Commentable, error) {
	out := make(Commentable)
	opts := &gh.ListOptions{PerPage: 100}
	for {
		files, resp, err := c.api.PullRequests.ListFiles(ctx, owner, repo, number, opts)
		if err != nil {
			return nil, classify(err, fmt.Sprintf("listing files of PR #%d", number))
		}
		for _, f := range files {
			lines, err := commentableLines(f.GetFilename(), f.GetPatch())
			if err != nil {
				log.Debug().Err(err).Str("file", f.GetFilename()).Msg("unparsable patch; comments go to the summary")
			}
			out[f.GetFilename()] = lines
		}
		if resp == nil || resp.NextPage == 0 {
			return out, nil
		}
		opts.Page = resp.NextPage
	}
}

// commentableLines returns the context and added lines of a file patch. The
// API sends bare hunks, so a header is added before parsing.
func commentableLines(path, patch string) (map[int]bool, error) {
	lines := make(map[int]bool)
	if strings.TrimSpace(patch) == "" {
		return lines, nil
	}
	full := fmt.Sprintf("diff --git a/%[1]s b/%[1]s\n--- a/%[1]s\n+++ b/%[1]s\n%[2]s", path, patch)
	if !strings.HasSuffix(full, "\n") {
		full += "\n"
	}
	files, _, err := gitdiff.Parse(strings.NewReader(full))
	if err != nil {
		return lines, err
	}
	for _, f := range files {
		for _, frag := range f.TextFragments {
			n := frag.NewPosition
			for _, l := range frag.Lines {
				if l.Op == gitdiff.OpDelete {
					continue
				}
				lines[int(n)] = true
				n++
			}
		}
	}
	return lines, nil
}

// ReviewComment is an inline comment on a PR review.
type ReviewComment struct {
	Path string
	Line int
	Body string
}

// ReviewRequest is a PR review to post.
type ReviewRequest struct {
	Body     string
	Event    string
	Comments []ReviewComment
}

// PostReview posts a pull request review with inline comments.
func (c *Client) PostReview(ctx context.Context, owner, repo string, number int, req ReviewRequest) error {
	comments := make([]*gh.DraftReviewComment, 0, len(req.Comments))
	for _, rc := range req.Comments {
		comments = append(comments, &gh.DraftReviewComment{
			Path: gh.Ptr(rc.Path),
			Line: gh.Ptr(rc.Line),
			Side: gh.Ptr("RIGHT"),
			Body: gh.Ptr(rc.Body),
		})
	}
	_, _, err := c.api.PullRequests.CreateReview(ctx, owner, repo, number, &gh.PullRequestReviewRequest{
		Body:     gh.Ptr(req.Body),
		Event:    gh.Ptr(req.Event),
		Comments: comments,
	})
	if err != nil {
		return classify(err, fmt.Sprintf("posting review to PR #%d", number))
	}
	return nil
}

func classify(err error, action string) error {
	var er *gh.ErrorResponse
	if errors.As(err, &er) && er.Response != nil {
		switch er.Response.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%s: %w: %s", action, ErrAuth, er.Message)
		case http.StatusNotFound:
			return fmt.Errorf("%s: not found (check the PR number and token scopes)", action)
		case http.StatusUnprocessableEntity:
			return fmt.Errorf("%s: GitHub rejected the review: %s", action, er.Message)
		}
	}
	return fmt.Errorf("%s: %w", action, err)
}

// BuildReview converts a review result into a PR review. Issues on
// commentable lines become inline comments; the rest are listed in the
// summary body. With requestChanges, blocking issues request changes.
func BuildReview(result review.Result, commentable Commentable, requestChanges bool) ReviewRequest {
	var general []string
	var comments []ReviewComment

	groups := []struct {
		category string
		issues   []review.Issue
	}{
		{annotate.CategoryBlocking, result.BlockingIssues},
		{annotate.CategorySuggestion, result.Suggestions},
		{annotate.CategoryNote, result.Notes},
	}
	for _, g := range groups {
		for _, issue := range g.issues {
			if commentable.Has(issue.File, issue.Line) {
				comments = append(comments, ReviewComment{
					Path: issue.File,
					Line: issue.Line,
					Body: output.IssueMarkdown(g.category, issue),
				})
				continue
			}
			general = append(general, formatBodyItem(g.category, issue))
		}
	}

	var sb strings.Builder
	sb.WriteString("## PR Review\n\n")
	fmt.Fprintf(&sb, "**Risk level:** %s\n\n", result.RiskLevel)
	if result.Summary != "" {
		sb.WriteString(result.Summary + "\n\n")
	}
	sb.WriteString("| Category | Count |\n|----------|-------|\n")
	fmt.Fprintf(&sb, "| Blocking | %d |\n", len(result.BlockingIssues))
	fmt.Fprintf(&sb, "| Suggestions | %d |\n", len(result.Suggestions))
	fmt.Fprintf(&sb, "| Notes | %d |\n\n", len(result.Notes))
	if len(general) > 0 {
		sb.WriteString("### General Findings\n\n")
		for _, g := range general {
			sb.WriteString(g + "\n")
		}
	}

	event := "COMMENT"
	if requestChanges && result.HasBlocking() {
		event = "REQUEST_CHANGES"
	}
	return ReviewRequest{Body: sb.String(), Event: event, Comments: comments}
}

func formatBodyItem(category string, issue review.Issue) string {
	loc := issue.File
	if loc != "" {
		loc = fmt.Sprintf("`%s:%d` ", issue.File, issue.Line)
	}
	s := fmt.Sprintf("- **%s** %s%s", categoryTitle(category), loc, issue.Description)
	if issue.SuggestedFix != "" {
		s += fmt.Sprintf(" (*Suggested fix: %s*)", issue.SuggestedFix)
	}
	return s
}

func categoryTitle(category string) string {
	switch category {
	case annotate.CategoryBlocking:
		return "Blocking"
	case annotate.CategorySuggestion:
		return "Suggestion"
	default:
		return "Note"
	}
}

var (
	httpsRemoteRe = regexp.MustCompile(`https?://[^/]+/([^/]+)/([^/.\s]+)`)
	sshRemoteRe   = regexp.MustCompile(`[^@]+@[^:]+:([^/]+)/([^/.\s]+)`)
)

// ParseRemoteURL extracts owner/repo from a git remote URL.
func ParseRemoteURL(remote string) (owner, repo string, err error) {
	remote = strings.TrimSuffix(strings.TrimSpace(remote), ".git")
	if m := httpsRemoteRe.FindStringSubmatch(remote); len(m) == 3 {
		return m[1], m[2], nil
	}
	if m := sshRemoteRe.FindStringSubmatch(remote); len(m) == 3 {
		return m[1], m[2], nil
	}
	return "", "", fmt.Errorf("cannot parse owner/repo from remote URL: %s", remote)
}
