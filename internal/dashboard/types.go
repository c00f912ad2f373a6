package dashboard

import (
	"time"

	"github.com/sprintforge/sprintforge/internal/planmodel"
)

// SprintSummary is the list-view shape returned by GET /api/sprints and
// GET /api/sprints/history.
type SprintSummary struct {
	Slug      string          `json:"slug"`
	Number    int             `json:"number"`
	Phase     planmodel.Phase `json:"phase"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// SprintState is the full detail shape returned by GET /api/sprints/<N>/state.
type SprintState struct {
	Slug       string                  `json:"slug"`
	Number     int                     `json:"number"`
	Phase      planmodel.Phase         `json:"phase"`
	Plan       planmodel.SprintPlan    `json:"plan"`
	Result     planmodel.SprintResult  `json:"result"`
	Huddles    []planmodel.HuddleEntry `json:"huddles"`
	RetroNotes string                  `json:"retro_notes,omitempty"`
	CreatedAt  time.Time               `json:"created_at"`
	UpdatedAt  time.Time               `json:"updated_at"`
}

// IdeaSummary is one backlog/idea forge issue, returned by GET /api/backlog
// and GET /api/ideas.
type IdeaSummary struct {
	Number int      `json:"number"`
	Title  string   `json:"title"`
	Labels []string `json:"labels"`
	State  string   `json:"state"`
}

// RepoSummary is one registered repo's cross-sprint overview, returned by
// GET /api/sprints/history when the dashboard runs in multi-repo mode.
type RepoSummary struct {
	Path    string          `json:"path"`
	Name    string          `json:"name"`
	Sprints []SprintSummary `json:"sprints"`
}

// SessionSummary is one tracked agent session, returned by GET /api/sessions
// and the session:list websocket message.
type SessionSummary struct {
	SessionID   string     `json:"session_id"`
	Role        string     `json:"role"`
	IssueNumber *int       `json:"issue_number,omitempty"`
	ModelID     string     `json:"model_id,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	EndedAt     *time.Time `json:"ended_at,omitempty"`
}
