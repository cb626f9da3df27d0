// Package github posts stored reviews to pull requests through go-github.
//
// Issues that land on lines inside the PR's diff hunks become inline review
// comments; everything else is summarized in the review body. The owner and
// repository are derived from the origin remote, and the token from
// GITHUB_TOKEN.
package github
