package eventbus

// Payload shapes for each event Name (spec §4.1). Listeners type-assert on
// Event.Payload using the type documented alongside the matching Name.

type SprintStartPayload struct {
	SprintNumber int
}

type SprintPlannedPayload struct {
	Issues []int
}

type SprintCompletePayload struct {
	SprintNumber int
}

type SprintErrorPayload struct {
	Error string
}

type SprintPausedPayload struct {
	SprintNumber int
}

type SprintResumedPayload struct {
	SprintNumber int
}

type PhaseChangePayload struct {
	From  string
	To    string
	Agent string
	Model string
}

type IssueStartPayload struct {
	Issue int
	Model string
}

type IssueProgressPayload struct {
	IssueNumber int
	Step        string
}

type IssueDonePayload struct {
	IssueNumber int
	DurationMS  int64
}

type IssueFailPayload struct {
	IssueNumber int
	Reason      string
}

type SessionStartPayload struct {
	SessionID   string
	Role        string
	IssueNumber *int
	Model       string
}

type SessionEndPayload struct {
	SessionID string
}

type WorkerOutputPayload struct {
	SessionID string
	Text      string
}

type LogPayload struct {
	Level   string
	Message string
}

// Chat event payloads (spec §4.11/§6): one ad-hoc agent session per chat,
// in a namespace separate from the sprint runner's and executor's sessions.

type ChatCreatedPayload struct {
	ChatID string
	Role   string
}

type ChatChunkPayload struct {
	ChatID string
	Text   string
}

type ChatDonePayload struct {
	ChatID     string
	StopReason string
}

type ChatErrorPayload struct {
	ChatID string
	Error  string
}
