package agentclient

// AgentProfile names which coding-assistant executable to spawn and how,
// plus any text every prompt routed through it should carry. Grounded on
// the teacher's per-CLI provider structs (provider/agent/{claude,codex,
// gemini,ralph}.go), generalized from "one-shot exec.Command invocation"
// into "spawn configuration for a persistent, session-multiplexing child"
// (spec §4.3).
type AgentProfile struct {
	Name         string
	Command      string
	Args         []string
	PromptSuffix string
}
