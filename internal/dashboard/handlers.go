// Package dashboard is the sprintforge web dashboard: HTTP JSON endpoints,
// an SSE fallback feed, and a gorilla/websocket hub for the richer
// sprint:*/session:*/chat:* protocol (spec §6). Adapted from the teacher's
// internal/server/*: same http.ServeMux Go-1.22-pattern routing and
// graceful-shutdown Run() shape, generated StrictServerInterface layer
// dropped in favor of hand-written handlers (see DESIGN.md).
package dashboard

import (
	"encoding/json"
	"fmt"
	"net/http"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/sprintforge/sprintforge/internal/forge"
	"github.com/sprintforge/sprintforge/internal/registry"
	"github.com/sprintforge/sprintforge/internal/sprintrunner"
)

// Handlers implements the dashboard's HTTP JSON endpoints.
type Handlers struct {
	ProjectPath string
	Slug        string
	Forge       forge.Adapter
	Sessions    *SessionRegistry
	MultiRepo   bool
}

func (h *Handlers) sprintsDir() string {
	return filepath.Join(h.ProjectPath, "docs", "sprints")
}

// listLocalSprints loads every *-state.json under docs/sprints, sorted by
// sprint number ascending.
func (h *Handlers) listLocalSprints() ([]*sprintrunner.State, error) {
	entries, err := filepath.Glob(filepath.Join(h.sprintsDir(), "*-state.json"))
	if err != nil {
		return nil, err
	}
	states := make([]*sprintrunner.State, 0, len(entries))
	for _, path := range entries {
		s, err := sprintrunner.LoadStateFile(path)
		if err != nil {
			continue
		}
		states = append(states, s)
	}
	sort.Slice(states, func(i, j int) bool { return states[i].SprintNumber < states[j].SprintNumber })
	return states, nil
}

func toSummary(s *sprintrunner.State) SprintSummary {
	return SprintSummary{
		Slug:      s.Slug,
		Number:    s.SprintNumber,
		Phase:     s.Phase,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
}

func toState(s *sprintrunner.State) SprintState {
	return SprintState{
		Slug:       s.Slug,
		Number:     s.SprintNumber,
		Phase:      s.Phase,
		Plan:       s.Plan,
		Result:     s.Result,
		Huddles:    s.Huddles,
		RetroNotes: s.RetroNotes,
		CreatedAt:  s.CreatedAt,
		UpdatedAt:  s.UpdatedAt,
	}
}

// HandleListSprints serves GET /api/sprints.
func (h *Handlers) HandleListSprints(w http.ResponseWriter, r *http.Request) {
	states, err := h.listLocalSprints()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	summaries := make([]SprintSummary, len(states))
	for i, s := range states {
		summaries[i] = toSummary(s)
	}
	writeJSON(w, http.StatusOK, summaries)
}

// findSprint loads the state whose SprintNumber is n. sprintforge persists
// one state file per slug (docs/sprints/<slug>-state.json, holding whatever
// sprint that slug is currently on), not one per sprint number, so this
// scans every local state and matches on the SprintNumber field — checking
// h.Slug's file first when set, since that's the common case.
func (h *Handlers) findSprint(n int) (*sprintrunner.State, error) {
	if h.Slug != "" {
		path := filepath.Join(h.sprintsDir(), fmt.Sprintf("%s-state.json", h.Slug))
		if s, err := sprintrunner.LoadStateFile(path); err == nil && s.SprintNumber == n {
			return s, nil
		}
	}
	states, err := h.listLocalSprints()
	if err != nil {
		return nil, err
	}
	for _, s := range states {
		if s.SprintNumber == n {
			return s, nil
		}
	}
	return nil, fmt.Errorf("sprint %d not found", n)
}

// HandleSprintState serves GET /api/sprints/{n}/state.
func (h *Handlers) HandleSprintState(w http.ResponseWriter, r *http.Request) {
	n, err := strconv.Atoi(r.PathValue("n"))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid sprint number"))
		return
	}
	s, err := h.findSprint(n)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, toState(s))
}

// HandleSprintIssues serves GET /api/sprints/{n}/issues.
func (h *Handlers) HandleSprintIssues(w http.ResponseWriter, r *http.Request) {
	n, err := strconv.Atoi(r.PathValue("n"))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid sprint number"))
		return
	}
	s, err := h.findSprint(n)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, s.Plan.Issues)
}

// HandleSprintHistory serves GET /api/sprints/history: local sprints, or
// every registered repo's sprints when MultiRepo is enabled.
func (h *Handlers) HandleSprintHistory(w http.ResponseWriter, r *http.Request) {
	if !h.MultiRepo {
		h.HandleListSprints(w, r)
		return
	}

	repoSprints, err := registry.ListSprints()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	out := make([]RepoSummary, 0, len(repoSprints))
	for _, rs := range repoSprints {
		summaries := make([]SprintSummary, len(rs.Sprints))
		for i, s := range rs.Sprints {
			summaries[i] = toSummary(s)
		}
		out = append(out, RepoSummary{Path: rs.Repo.Path, Name: rs.Repo.Name, Sprints: summaries})
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleRepo serves GET /api/repo: every registered repo and its current sprints.
func (h *Handlers) HandleRepo(w http.ResponseWriter, r *http.Request) {
	repos, err := registry.List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, repos)
}

// HandleIdeas serves GET /api/ideas: open forge issues labelled type:idea.
func (h *Handlers) HandleIdeas(w http.ResponseWriter, r *http.Request) {
	h.listIssuesByLabels(w, r, []string{"type:idea"})
}

// HandleBacklog serves GET /api/backlog: open forge issues labelled
// type:idea or type:improvement that aren't yet refined into a sprint.
func (h *Handlers) HandleBacklog(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	seen := make(map[int]forge.Issue)
	for _, label := range []string{"type:idea", "type:improvement"} {
		issues, err := h.Forge.ListIssues(ctx, forge.ListIssuesOptions{State: "open", Labels: []string{label}})
		if err != nil {
			writeError(w, http.StatusBadGateway, err)
			return
		}
		for _, iss := range issues {
			seen[iss.Number] = iss
		}
	}

	out := make([]IdeaSummary, 0, len(seen))
	for _, iss := range seen {
		if hasLabel(iss.Labels, "status:refined") {
			continue
		}
		out = append(out, IdeaSummary{Number: iss.Number, Title: iss.Title, Labels: iss.Labels, State: iss.State})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	writeJSON(w, http.StatusOK, out)
}

func (h *Handlers) listIssuesByLabels(w http.ResponseWriter, r *http.Request, labels []string) {
	issues, err := h.Forge.ListIssues(r.Context(), forge.ListIssuesOptions{State: "open", Labels: labels})
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	out := make([]IdeaSummary, len(issues))
	for i, iss := range issues {
		out[i] = IdeaSummary{Number: iss.Number, Title: iss.Title, Labels: iss.Labels, State: iss.State}
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleSessions serves GET /api/sessions.
func (h *Handlers) HandleSessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Sessions.List())
}

// HandleHealth serves GET /api/health.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func hasLabel(labels []string, target string) bool {
	for _, l := range labels {
		if strings.EqualFold(l, target) {
			return true
		}
	}
	return false
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
