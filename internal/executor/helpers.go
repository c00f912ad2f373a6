package executor

import (
	"errors"

	"github.com/sprintforge/sprintforge/internal/agentclient"
)

// isTimeoutErr reports whether err is (or wraps) agentclient.ErrTimeout —
// the executor's signal to set IssueResult.TimedOut (spec §4.8, last line).
func isTimeoutErr(err error) bool {
	return errors.Is(err, agentclient.ErrTimeout)
}
