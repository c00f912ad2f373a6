package agentclient

import "errors"

// Sentinel errors callers branch on (spec §4.3 "Failure semantics").
var (
	// ErrTimeout is returned by SendPrompt when its deadline elapses.
	ErrTimeout = errors.New("agentclient: timeout")
	// ErrProcessExited is returned to every in-flight SendPrompt when the
	// child process exits (spec §4.3: "no dangling futures").
	ErrProcessExited = errors.New("agentclient: process exited")
	// ErrNotConnected is returned by session operations issued before Connect.
	ErrNotConnected = errors.New("agentclient: not connected")
	// ErrUnknownSession names an unrecognised session id. No function in
	// this package returns it; an id the agent does not know surfaces as
	// the agent's own error response.
	ErrUnknownSession = errors.New("agentclient: unknown session")
)
