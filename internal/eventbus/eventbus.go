// Package eventbus is the typed publish/subscribe hub that fans sprint
// progress out to observers (dashboard, log, notifications). Grounded on
// the teacher's server.SSEHub broadcast-to-many-channels pattern, replacing
// a single hard-coded event type with a typed dispatch table keyed by
// event name (spec §9: "typed dispatch keyed by a sum-type of event
// variants").
package eventbus

import (
	"log/slog"
	"sync"
)

// Name is one of the event names listed in spec §4.1.
type Name string

const (
	SprintStart    Name = "sprint:start"
	SprintPlanned  Name = "sprint:planned"
	SprintComplete Name = "sprint:complete"
	SprintError    Name = "sprint:error"
	SprintPaused   Name = "sprint:paused"
	SprintResumed  Name = "sprint:resumed"
	PhaseChange    Name = "phase:change"
	IssueStart     Name = "issue:start"
	IssueProgress  Name = "issue:progress"
	IssueDone      Name = "issue:done"
	IssueFail      Name = "issue:fail"
	SessionStart   Name = "session:start"
	SessionEnd     Name = "session:end"
	WorkerOutput   Name = "worker:output"
	Log            Name = "log"
	ChatCreated    Name = "chat:created"
	ChatChunk      Name = "chat:chunk"
	ChatDone       Name = "chat:done"
	ChatError      Name = "chat:error"
)

// Event is one emitted occurrence: a name and an opaque payload whose shape
// is documented per Name in spec §4.1.
type Event struct {
	Name    Name
	Payload any
}

// Listener observes emitted events. Listeners must never block on I/O
// (spec §5): to do work they should enqueue elsewhere.
type Listener func(Event)

const defaultReplayCapacity = 200

// Bus is a process-wide typed event dispatcher with a bounded replay buffer
// for late subscribers (spec §4.1, §9).
type Bus struct {
	logger *slog.Logger

	mu        sync.Mutex
	listeners map[Name][]Listener
	replay    []Event
	replayCap int
}

// New creates an empty Bus. logger receives a warning whenever a listener
// panics — isolating each listener so one bad subscriber cannot
// break delivery to the rest (spec §4.1's "isolating any listener error").
func New(logger *slog.Logger) *Bus {
	return &Bus{
		logger:    logger,
		listeners: make(map[Name][]Listener),
		replayCap: defaultReplayCapacity,
	}
}

// On registers a listener for an event name, in registration order.
func (b *Bus) On(name Name, l Listener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners[name] = append(b.listeners[name], l)
}

// Off removes a previously registered listener. Listeners are compared by
// pointer identity via reflection on the function value's underlying data,
// so callers should keep a reference to the exact Listener value passed to On.
func (b *Bus) Off(name Name, l Listener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ls := b.listeners[name]
	for i, existing := range ls {
		if sameFunc(existing, l) {
			b.listeners[name] = append(ls[:i], ls[i+1:]...)
			return
		}
	}
}

// RemoveAllListeners clears the dispatch table (used on dashboard shutdown).
func (b *Bus) RemoveAllListeners() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners = make(map[Name][]Listener)
}

// Emit delivers payload synchronously to every listener registered for
// name, in registration order, isolating panics so one listener cannot
// abort delivery to the rest. The event is also appended to the replay
// buffer regardless of whether any listener is currently registered.
func (b *Bus) Emit(name Name, payload any) {
	ev := Event{Name: name, Payload: payload}

	b.mu.Lock()
	b.replay = append(b.replay, ev)
	if len(b.replay) > b.replayCap {
		b.replay = b.replay[len(b.replay)-b.replayCap:]
	}
	ls := make([]Listener, len(b.listeners[name]))
	copy(ls, b.listeners[name])
	b.mu.Unlock()

	for _, l := range ls {
		b.safeInvoke(l, ev)
	}
}

func (b *Bus) safeInvoke(l Listener, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			if b.logger != nil {
				b.logger.Warn("eventbus: listener panicked", "event", ev.Name, "recover", r)
			}
		}
	}()
	l(ev)
}

// Replay returns a snapshot of the most recent events, oldest first, so a
// late subscriber can reconstruct recent activity (spec §4.1).
func (b *Bus) Replay() []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Event, len(b.replay))
	copy(out, b.replay)
	return out
}
