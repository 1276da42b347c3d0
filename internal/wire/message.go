// Package wire implements the typed event bus between the agent and a
// UI/client, with a durable append-only journal. Grounded on
// wire/mod.rs, wire/file.rs, wire/serde.rs and wire/jsonrpc.rs from the
// original implementation this module is based on.
package wire

import "encoding/json"

// Protocol version constants. "2" is current and produced; "1" is
// readable (legacy) but never produced.
const (
	ProtocolVersion       = "2"
	ProtocolLegacyVersion = "1"
)

// Type is the discriminant tag of a WireMessage envelope.
type Type string

const (
	TypeUserInput         Type = "user_input"
	TypeTurnBegin         Type = "turn_begin"
	TypeTurnEnd           Type = "turn_end"
	TypeStepBegin         Type = "step_begin"
	TypeStepInterrupted   Type = "step_interrupted"
	TypeCompactionBegin   Type = "compaction_begin"
	TypeCompactionEnd     Type = "compaction_end"
	TypeStatusUpdate      Type = "status_update"
	TypeToolCallRequest   Type = "tool_call_request"
	TypeApprovalRequest   Type = "approval_request"
	TypeApprovalResponse  Type = "approval_response"
	TypeSubagentEvent     Type = "subagent_event"
)

// Message is a tagged envelope: {"type": "...", "payload": {...}}.
type Message struct {
	Type    Type            `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// IsEvent reports whether t is a plain soul->UI event (as opposed to a
// request/response pair that needs correlation).
func IsEvent(t Type) bool {
	switch t {
	case TypeApprovalRequest, TypeApprovalResponse:
		return false
	default:
		return true
	}
}

// IsRequest reports whether t is a request variant requiring a response.
func IsRequest(t Type) bool {
	return t == TypeApprovalRequest
}

// NewMessage builds an envelope from a typed payload.
func NewMessage(t Type, payload any) (Message, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Message{}, err
	}
	return Message{Type: t, Payload: raw}, nil
}

// Payload types for each envelope Type.

type UserInputPayload struct {
	Text string `json:"text"`
}

type TurnBeginPayload struct {
	TurnID string `json:"turn_id"`
}

type TurnEndPayload struct {
	TurnID string `json:"turn_id"`
	Reason string `json:"reason,omitempty"`
}

type StepBeginPayload struct {
	CheckpointID int64 `json:"checkpoint_id"`
}

type StepInterruptedPayload struct {
	Reason string `json:"reason"`
}

type CompactionBeginPayload struct{}

type CompactionEndPayload struct {
	PreservedMessages int `json:"preserved_messages"`
}

type StatusUpdatePayload struct {
	Status string `json:"status"`
}

type ToolCallRequestPayload struct {
	ToolCallID string `json:"tool_call_id"`
	Name       string `json:"name"`
	Arguments  string `json:"arguments"`
}

// ApprovalResponseKind is the decision a user makes on an ApprovalRequest.
type ApprovalResponseKind string

const (
	Approve          ApprovalResponseKind = "approve"
	ApproveForSession ApprovalResponseKind = "approve_for_session"
	Reject            ApprovalResponseKind = "reject"
)

type ApprovalRequestPayload struct {
	ID          string   `json:"id"`
	ToolCallID  string   `json:"tool_call_id"`
	Sender      string   `json:"sender"`
	Action      string   `json:"action"`
	Description string   `json:"description"`
	Display     []string `json:"display,omitempty"`
}

type ApprovalResponsePayload struct {
	ID       string               `json:"id"`
	Response ApprovalResponseKind `json:"response"`
}

type SubagentEventPayload struct {
	AgentName string          `json:"agent_name"`
	Inner     json.RawMessage `json:"inner"`
}
