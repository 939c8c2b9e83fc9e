package messagequeue

import "encoding/json"

// ConfirmationRequestedPayload is the schema for confirmations.requested messages.
type ConfirmationRequestedPayload struct {
	RequestID   string          `json:"request_id"`
	CallID      string          `json:"call_id"`
	PromptID    string          `json:"prompt_id,omitempty"`
	Tool        string          `json:"tool"`
	DetailsKind string          `json:"details_kind"`
	Details     json.RawMessage `json:"details"`
}

// ConfirmationResolvePayload is the schema for confirmations.resolve messages.
type ConfirmationResolvePayload struct {
	RequestID string         `json:"request_id"`
	Outcome   string         `json:"outcome"`
	Answers   map[string]any `json:"answers,omitempty"`
}

// InvocationPartialPayload is the schema for invocations.partial messages.
type InvocationPartialPayload struct {
	CallID string `json:"call_id"`
	Text   string `json:"text"`
}

// InvocationCompletedPayload is the schema for invocations.completed messages.
type InvocationCompletedPayload struct {
	CallID    string `json:"call_id"`
	Tool      string `json:"tool"`
	Status    string `json:"status"`
	Display   string `json:"display,omitempty"`
	ErrorKind string `json:"error_kind,omitempty"`
	Message   string `json:"message,omitempty"`
}
