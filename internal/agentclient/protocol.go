package agentclient

import "encoding/json"

// The wire protocol between this process and the coding-assistant child is
// out of scope per spec.md §1 ("the coding-assistant subprocess protocol
// itself ... we specify only the operations we invoke"); this file defines
// only the minimal framed envelope the rest of the package needs: one JSON
// object per line on stdout/stdin, grounded on the "framed JSON-RPC-like
// requests" description in spec §4.3.

// frameKind discriminates the three envelope shapes the child may send.
type frameKind string

const (
	frameRequest      frameKind = "request"
	frameResponse     frameKind = "response"
	frameNotification frameKind = "notification"
)

// frame is one line of the wire protocol, either direction.
type frame struct {
	Type   frameKind       `json:"type"`
	ID     string          `json:"id,omitempty"`
	Method string          `json:"method,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *frameError     `json:"error,omitempty"`
}

type frameError struct {
	Message string `json:"message"`
}

// Methods this client invokes on the child (request frames we send) and
// notification methods we expect to receive.
const (
	methodInitialize       = "initialize"
	methodCreateSession    = "session/create"
	methodEndSession       = "session/end"
	methodSetMode          = "session/set_mode"
	methodSetModel         = "session/set_model"
	methodSendPrompt       = "session/prompt"
	notifyOutput           = "session/output"
	notifyPermissionAsk    = "session/permission_request"
)

type initializeParams struct {
	ProtocolVersion string   `json:"protocol_version"`
	Capabilities    []string `json:"capabilities"`
}

type createSessionParams struct {
	Cwd        string   `json:"cwd"`
	MCPServers []string `json:"mcp_servers,omitempty"`
}

type createSessionResult struct {
	SessionID      string   `json:"session_id"`
	AvailableModes []string `json:"available_modes"`
	CurrentModel   string   `json:"current_model"`
}

type endSessionParams struct {
	SessionID string `json:"session_id"`
}

type setModeParams struct {
	SessionID string `json:"session_id"`
	Mode      string `json:"mode"`
}

type setModelParams struct {
	SessionID string `json:"session_id"`
	ModelID   string `json:"model_id"`
}

type sendPromptParams struct {
	SessionID string `json:"session_id"`
	Text      string `json:"text"`
}

type sendPromptResult struct {
	Response   string `json:"response"`
	StopReason string `json:"stop_reason"`
}

type outputNotification struct {
	SessionID string `json:"session_id"`
	Text      string `json:"text"`
}

// PermissionOption is one of the choices the child offers for a tool-use
// permission request.
type PermissionOption string

const (
	OptionAllowOnce   PermissionOption = "allow_once"
	OptionAllowAlways PermissionOption = "allow_always"
	OptionRejectOnce  PermissionOption = "reject_once"
	OptionCancelled   PermissionOption = "cancelled"
)

type permissionRequestNotification struct {
	RequestID string             `json:"request_id"`
	ToolName  string             `json:"tool_name"`
	Options   []PermissionOption `json:"options"`
}

type permissionResponseParams struct {
	RequestID string           `json:"request_id"`
	Choice    PermissionOption `json:"choice"`
}

const methodPermissionRespond = "session/permission_response"
