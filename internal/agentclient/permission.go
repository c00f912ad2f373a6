package agentclient

import "strings"

// PermissionPolicy resolves a tool-use permission request from the agent
// (spec §4.3 "Permission handler"):
//
//   - AutoApprove true → pick the first allow_once option.
//   - otherwise, pattern-match the tool name against AllowPatterns → pick
//     allow_once.
//   - otherwise → pick reject_once.
//   - if no suitable option exists in the offered list → answer cancelled.
//
// allow_once is always preferred over allow_always when both would apply.
type PermissionPolicy struct {
	AutoApprove   bool
	AllowPatterns []string
}

// Resolve picks a PermissionOption from the ones offered for toolName.
func (p PermissionPolicy) Resolve(toolName string, offered []PermissionOption) PermissionOption {
	has := func(want PermissionOption) bool {
		for _, o := range offered {
			if o == want {
				return true
			}
		}
		return false
	}

	if p.AutoApprove && has(OptionAllowOnce) {
		return OptionAllowOnce
	}
	if p.matches(toolName) && has(OptionAllowOnce) {
		return OptionAllowOnce
	}
	if has(OptionRejectOnce) {
		return OptionRejectOnce
	}
	return OptionCancelled
}

func (p PermissionPolicy) matches(toolName string) bool {
	for _, pattern := range p.AllowPatterns {
		if pattern == toolName {
			return true
		}
		if strings.HasSuffix(pattern, "*") && strings.HasPrefix(toolName, strings.TrimSuffix(pattern, "*")) {
			return true
		}
	}
	return false
}
