package forge

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
)

// Notifier posts a one-line message to a fallback notification sink.
// Adapted from the teacher's internal/provider/notifier/slack.go.
type Notifier interface {
	Notify(ctx context.Context, message string) error
}

// Tracker files a ticket in a stakeholder-facing tracker. Adapted from the
// teacher's internal/provider/tracker/jira.go, trimmed to the single
// CreateIssue call escalation needs (the sprint-board-move behavior has no
// sprintforge analogue and is dropped).
type Tracker interface {
	CreateIssue(ctx context.Context, title, body string) (key, url string, err error)
}

// SlackNotifier posts to a Slack-compatible incoming webhook.
type SlackNotifier struct {
	WebhookURL string
	client     *http.Client
}

// NewSlackNotifier returns a Notifier for the given webhook URL.
func NewSlackNotifier(webhookURL string) *SlackNotifier {
	return &SlackNotifier{WebhookURL: webhookURL, client: &http.Client{}}
}

func (s *SlackNotifier) Notify(ctx context.Context, message string) error {
	payload, err := json.Marshal(struct {
		Text string `json:"text"`
	}{Text: message})
	if err != nil {
		return fmt.Errorf("slack notifier: marshaling payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("slack notifier: creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("slack notifier: sending request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("slack notifier: reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("slack notifier: unexpected status %d: %s", resp.StatusCode, body)
	}
	return nil
}

// JiraTracker files issues against a Jira Cloud project.
type JiraTracker struct {
	BaseURL string
	Project string
	Email   string
	Token   string
	client  *http.Client
}

// NewJiraTracker returns a Tracker configured with the given credentials.
func NewJiraTracker(baseURL, project, email, token string) *JiraTracker {
	return &JiraTracker{BaseURL: baseURL, Project: project, Email: email, Token: token, client: &http.Client{}}
}

func (j *JiraTracker) CreateIssue(ctx context.Context, title, body string) (string, string, error) {
	reqBody := struct {
		Fields struct {
			Project struct {
				Key string `json:"key"`
			} `json:"project"`
			Summary   string `json:"summary"`
			IssueType struct {
				Name string `json:"name"`
			} `json:"issuetype"`
			Description struct {
				Type    string `json:"type"`
				Version int    `json:"version"`
				Content []struct {
					Type    string `json:"type"`
					Content []struct {
						Type string `json:"type"`
						Text string `json:"text"`
					} `json:"content"`
				} `json:"content"`
			} `json:"description"`
		} `json:"fields"`
	}{}
	reqBody.Fields.Project.Key = j.Project
	reqBody.Fields.Summary = title
	reqBody.Fields.IssueType.Name = "Task"
	reqBody.Fields.Description.Type = "doc"
	reqBody.Fields.Description.Version = 1
	reqBody.Fields.Description.Content = []struct {
		Type    string `json:"type"`
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	}{{Type: "paragraph", Content: []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}{{Type: "text", Text: body}}}}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", "", fmt.Errorf("jira tracker: marshaling request: %w", err)
	}

	url := j.BaseURL + "/rest/api/3/issue"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", "", fmt.Errorf("jira tracker: creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	auth := base64.StdEncoding.EncodeToString([]byte(j.Email + ":" + j.Token))
	req.Header.Set("Authorization", "Basic "+auth)

	resp, err := j.client.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("jira tracker: sending request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", "", fmt.Errorf("jira tracker: reading response: %w", err)
	}
	if resp.StatusCode != http.StatusCreated {
		return "", "", fmt.Errorf("jira tracker: unexpected status %d: %s", resp.StatusCode, respBody)
	}

	var result struct {
		Key string `json:"key"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", "", fmt.Errorf("jira tracker: parsing response: %w", err)
	}
	if result.Key == "" {
		return "", "", fmt.Errorf("jira tracker: response missing issue key")
	}
	return result.Key, j.BaseURL + "/browse/" + result.Key, nil
}

// EscalationLevel distinguishes a routine notice from one that must reach a
// human (spec §4.9 step 4: "call the stakeholder-escalation collaborator
// with level: must").
type EscalationLevel string

const (
	EscalationShould EscalationLevel = "should"
	EscalationMust   EscalationLevel = "must"
)

// Escalator routes a sprint-level problem to whichever collaborators are
// configured. A "must" escalation notifies, files a human-decision-needed
// issue on the forge, and, if a tracker is configured, also files a ticket
// so the problem survives past the chat/log scrollback; a "should"
// escalation only notifies. Forge is the primary channel and is expected to
// always be set; Notifier and Tracker may be nil, in which case that channel
// is silently skipped.
type Escalator struct {
	Forge    Adapter
	Notifier Notifier
	Tracker  Tracker
	Logger   *slog.Logger
}

// Escalate routes message at level. title is used as the forge issue
// summary and, for must-level escalations, the tracker ticket summary.
func (e *Escalator) Escalate(ctx context.Context, level EscalationLevel, title, message string) error {
	var errs []error

	if e.Notifier != nil {
		if err := e.Notifier.Notify(ctx, message); err != nil {
			e.Logger.Warn("escalation: notify failed", "level", level, "error", err)
			errs = append(errs, err)
		}
	}

	if level == EscalationMust && e.Forge != nil {
		issue, err := e.Forge.CreateIssue(ctx, title, message, []string{"human-decision-needed"})
		if err != nil {
			e.Logger.Warn("escalation: filing forge issue failed", "level", level, "error", err)
			errs = append(errs, err)
		} else {
			e.Logger.Info("escalation: filed forge issue", "number", issue.Number)
		}
	}

	if level == EscalationMust && e.Tracker != nil {
		key, url, err := e.Tracker.CreateIssue(ctx, title, message)
		if err != nil {
			e.Logger.Warn("escalation: filing tracker issue failed", "level", level, "error", err)
			errs = append(errs, err)
		} else {
			e.Logger.Info("escalation: filed tracker issue", "key", key, "url", url)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("escalation: %d channel(s) failed", len(errs))
	}
	return nil
}
