// Sessions tracks live agent sessions for the dashboard's /api/sessions
// endpoint and session:list/session:output websocket messages. Grounded on
// planmodel.TrackedSession's bounded output ring buffer, rebuilt here as a
// registry fed by eventbus.SessionStart/SessionEnd/WorkerOutput rather than
// a field the sprint runner mutates directly, since the dashboard has no
// other way to observe sessions started inside the dispatcher/executor.
package dashboard

import (
	"sync"
	"time"

	"github.com/sprintforge/sprintforge/internal/eventbus"
)

const maxTrackedOutputChunks = 500

type trackedSession struct {
	SessionID   string
	Role        string
	IssueNumber *int
	ModelID     string
	StartedAt   time.Time
	EndedAt     *time.Time

	output []string
}

// SessionRegistry mirrors live agent sessions by listening to the event
// bus; it never calls into the agent client directly.
type SessionRegistry struct {
	mu       sync.Mutex
	sessions map[string]*trackedSession

	onStart eventbus.Listener
	onEnd   eventbus.Listener
	onChunk eventbus.Listener
}

// NewSessionRegistry creates a registry and subscribes it to bus.
func NewSessionRegistry(bus *eventbus.Bus) *SessionRegistry {
	reg := &SessionRegistry{sessions: make(map[string]*trackedSession)}

	reg.onStart = func(ev eventbus.Event) {
		p, ok := ev.Payload.(eventbus.SessionStartPayload)
		if !ok {
			return
		}
		reg.mu.Lock()
		defer reg.mu.Unlock()
		reg.sessions[p.SessionID] = &trackedSession{
			SessionID:   p.SessionID,
			Role:        p.Role,
			IssueNumber: p.IssueNumber,
			ModelID:     p.Model,
			StartedAt:   time.Now(),
		}
	}
	reg.onEnd = func(ev eventbus.Event) {
		p, ok := ev.Payload.(eventbus.SessionEndPayload)
		if !ok {
			return
		}
		reg.mu.Lock()
		defer reg.mu.Unlock()
		if s, found := reg.sessions[p.SessionID]; found {
			now := time.Now()
			s.EndedAt = &now
		}
	}
	reg.onChunk = func(ev eventbus.Event) {
		p, ok := ev.Payload.(eventbus.WorkerOutputPayload)
		if !ok {
			return
		}
		reg.mu.Lock()
		defer reg.mu.Unlock()
		s, found := reg.sessions[p.SessionID]
		if !found {
			return
		}
		s.output = append(s.output, p.Text)
		if len(s.output) > maxTrackedOutputChunks {
			s.output = s.output[len(s.output)-maxTrackedOutputChunks:]
		}
	}

	bus.On(eventbus.SessionStart, reg.onStart)
	bus.On(eventbus.SessionEnd, reg.onEnd)
	bus.On(eventbus.WorkerOutput, reg.onChunk)

	return reg
}

// List returns a snapshot of all known sessions, most recently started first.
func (r *SessionRegistry) List() []SessionSummary {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]SessionSummary, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, SessionSummary{
			SessionID:   s.SessionID,
			Role:        s.Role,
			IssueNumber: s.IssueNumber,
			ModelID:     s.ModelID,
			StartedAt:   s.StartedAt,
			EndedAt:     s.EndedAt,
		})
	}
	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			if out[j].StartedAt.After(out[i].StartedAt) {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	return out
}

// Output returns the last n output chunks for sessionID, or nil if unknown.
func (r *SessionRegistry) Output(sessionID string, n int) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[sessionID]
	if !ok {
		return nil
	}
	if n <= 0 || n > len(s.output) {
		n = len(s.output)
	}
	out := make([]string, n)
	copy(out, s.output[len(s.output)-n:])
	return out
}
