package executor

import (
	"context"
	"time"

	"github.com/sprintforge/sprintforge/internal/planmodel"
	"github.com/sprintforge/sprintforge/internal/qualitygate"
	"github.com/sprintforge/sprintforge/internal/session"
	"github.com/sprintforge/sprintforge/internal/worktree"
)

// AgentClient is the subset of *agentclient.Client the executor drives.
// Kept as an interface, mirroring the teacher's provider.Agent, so tests
// can substitute a fake subprocess-free implementation.
type AgentClient interface {
	CreateSession(ctx context.Context, role planmodel.Role, issueNumber *int, cwd string, mcpServers []string) (string, error)
	EndSession(ctx context.Context, sessionID string) error
	SetMode(ctx context.Context, sessionID, mode string) error
	SetModel(ctx context.Context, sessionID, modelID string) error
	SendPrompt(ctx context.Context, sessionID, text string, timeout time.Duration) (response, stopReason string, err error)
	SessionOutput(sessionID string, n int) (chunks []string, ok bool)
}

// WorktreeManager is the subset of *worktree.Manager the executor drives,
// mirroring the teacher's provider.Worktree.
type WorktreeManager interface {
	Create(ctx context.Context, path, branch, base string) error
	Remove(ctx context.Context, path string) error
	DiffStat(ctx context.Context, branch, base string) (worktree.DiffStat, error)
	GetChangedFiles(ctx context.Context, branch, base string) ([]string, error)
}

// QualityGate is the subset of *qualitygate.Gate the executor drives.
type QualityGate interface {
	Run(ctx context.Context, cfg planmodel.QualityGateConfig, diffs qualitygate.DiffProvider, dir, branch, baseBranch string, expectedFiles []string) planmodel.QualityResult
}

// SessionController is the subset of *session.Controller the executor
// polls while draining operator messages.
type SessionController interface {
	Drain(id string) []session.Message
	ShouldStop(id string) bool
	Cleanup(id string)
}
