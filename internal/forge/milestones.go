package forge

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/go-github/v68/github"
)

var sprintNumberPattern = regexp.MustCompile(`\d+`)

// ListSprintMilestones returns every milestone whose title carries prefix,
// with the embedded sprint number parsed out.
func (c *Client) ListSprintMilestones(ctx context.Context, prefix string) ([]Milestone, error) {
	opts := &github.MilestoneListOptions{State: "all", ListOptions: github.ListOptions{PerPage: 100}}

	var milestones []Milestone
	for {
		page, resp, err := c.gh.Issues.ListMilestones(ctx, c.Owner, c.Repo, opts)
		if err != nil {
			return nil, fmt.Errorf("forge: list milestones: %w", err)
		}
		for _, m := range page {
			title := m.GetTitle()
			if !strings.HasPrefix(title, prefix) {
				continue
			}
			n, ok := parseSprintNumber(title)
			if !ok {
				continue
			}
			milestones = append(milestones, Milestone{
				SprintNumber: n,
				Number:       m.GetNumber(),
				Title:        title,
				State:        m.GetState(),
			})
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return milestones, nil
}

// GetNextOpenMilestone returns the lowest-numbered open sprint milestone, if
// any exist.
func (c *Client) GetNextOpenMilestone(ctx context.Context, prefix string) (Milestone, bool, error) {
	milestones, err := c.ListSprintMilestones(ctx, prefix)
	if err != nil {
		return Milestone{}, false, err
	}

	var best *Milestone
	for i := range milestones {
		m := milestones[i]
		if m.State != "open" {
			continue
		}
		if best == nil || m.SprintNumber < best.SprintNumber {
			best = &m
		}
	}
	if best == nil {
		return Milestone{}, false, nil
	}
	return *best, true, nil
}

func parseSprintNumber(title string) (int, bool) {
	match := sprintNumberPattern.FindString(title)
	if match == "" {
		return 0, false
	}
	n, err := strconv.Atoi(match)
	if err != nil {
		return 0, false
	}
	return n, true
}
