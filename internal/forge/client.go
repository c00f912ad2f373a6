package forge

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/go-github/v68/github"
)

// Client is the go-github-backed Adapter implementation.
type Client struct {
	gh     *github.Client
	Owner  string
	Repo   string
	Logger *slog.Logger
}

// New creates a Client authenticated with token (a personal access token or
// installation token) against owner/repo.
func New(owner, repo, token string, logger *slog.Logger) *Client {
	gh := github.NewClient(nil)
	if token != "" {
		gh = gh.WithAuthToken(token)
	}
	return &Client{gh: gh, Owner: owner, Repo: repo, Logger: logger}
}

var _ Adapter = (*Client)(nil)

func (c *Client) GetIssue(ctx context.Context, number int) (Issue, error) {
	issue, _, err := c.gh.Issues.Get(ctx, c.Owner, c.Repo, number)
	if err != nil {
		return Issue{}, fmt.Errorf("forge: get issue #%d: %w", number, err)
	}
	return fromGitHubIssue(issue), nil
}

func (c *Client) ListIssues(ctx context.Context, opts ListIssuesOptions) ([]Issue, error) {
	ghOpts := &github.IssueListByRepoOptions{
		State:       opts.State,
		Labels:      opts.Labels,
		ListOptions: github.ListOptions{PerPage: 100},
	}
	if opts.Milestone != nil {
		ghOpts.Milestone = fmt.Sprintf("%d", *opts.Milestone)
	}
	if ghOpts.State == "" {
		ghOpts.State = "open"
	}

	var all []Issue
	for {
		issues, resp, err := c.gh.Issues.ListByRepo(ctx, c.Owner, c.Repo, ghOpts)
		if err != nil {
			return nil, fmt.Errorf("forge: list issues: %w", err)
		}
		for _, iss := range issues {
			if iss.IsPullRequest() {
				continue
			}
			all = append(all, fromGitHubIssue(iss))
		}
		if resp.NextPage == 0 {
			break
		}
		ghOpts.Page = resp.NextPage
	}
	return all, nil
}

func (c *Client) AddComment(ctx context.Context, number int, body string) error {
	_, _, err := c.gh.Issues.CreateComment(ctx, c.Owner, c.Repo, number, &github.IssueComment{Body: &body})
	if err != nil {
		return fmt.Errorf("forge: add comment to #%d: %w", number, err)
	}
	return nil
}

// statusLabelPrefix tags the mutually-exclusive lifecycle labels SetLabel
// manages; any existing label sharing this prefix is replaced.
const statusLabelPrefix = "status:"

func (c *Client) SetLabel(ctx context.Context, number int, label string) error {
	issue, _, err := c.gh.Issues.Get(ctx, c.Owner, c.Repo, number)
	if err != nil {
		return fmt.Errorf("forge: set label on #%d: %w", number, err)
	}

	kept := make([]string, 0, len(issue.Labels)+1)
	for _, l := range issue.Labels {
		if l.GetName() == "" || hasStatusPrefix(l.GetName()) {
			continue
		}
		kept = append(kept, l.GetName())
	}
	kept = append(kept, label)

	_, _, err = c.gh.Issues.Edit(ctx, c.Owner, c.Repo, number, &github.IssueRequest{Labels: &kept})
	if err != nil {
		return fmt.Errorf("forge: set label on #%d: %w", number, err)
	}
	return nil
}

func hasStatusPrefix(label string) bool {
	return len(label) >= len(statusLabelPrefix) && label[:len(statusLabelPrefix)] == statusLabelPrefix
}

func (c *Client) CreateIssue(ctx context.Context, title, body string, labels []string) (Issue, error) {
	issue, _, err := c.gh.Issues.Create(ctx, c.Owner, c.Repo, &github.IssueRequest{
		Title:  &title,
		Body:   &body,
		Labels: &labels,
	})
	if err != nil {
		return Issue{}, fmt.Errorf("forge: create issue: %w", err)
	}
	return fromGitHubIssue(issue), nil
}

func fromGitHubIssue(issue *github.Issue) Issue {
	labels := make([]string, 0, len(issue.Labels))
	for _, l := range issue.Labels {
		labels = append(labels, l.GetName())
	}
	return Issue{
		Number: issue.GetNumber(),
		Title:  issue.GetTitle(),
		Body:   issue.GetBody(),
		Labels: labels,
		State:  issue.GetState(),
	}
}
