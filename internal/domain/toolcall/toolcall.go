// Package toolcall defines the domain model for a single tool-call
// invocation: the request emitted by the model loop, the lifecycle status
// it moves through, and the terminal result handed back.
package toolcall

// Request is an immutable tool-call request emitted by the model loop.
type Request struct {
	// CallID is unique within a turn and correlates the request with its
	// confirmation and result.
	CallID string `json:"call_id"`
	// Name is the registry name of the requested tool.
	Name string `json:"name"`
	// Args is the parameter bag, opaque to the orchestrator.
	Args map[string]any `json:"args,omitempty"`
	// ClientInitiated marks calls injected by the client rather than the model.
	ClientInitiated bool `json:"client_initiated,omitempty"`
	// PromptID links the call to the model turn that produced it.
	PromptID string `json:"prompt_id,omitempty"`
}

// Status is the lifecycle state of an invocation.
type Status string

const (
	StatusValidating Status = "validating"
	StatusConfirming Status = "confirming"
	StatusExecuting  Status = "executing"
	StatusSucceeded  Status = "succeeded"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

// Terminal reports whether the status is a terminal state.
func (s Status) Terminal() bool {
	switch s {
	case StatusSucceeded, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// Result is the terminal payload of an invocation. Content is what the model
// sees on the next turn; Display is what the user-facing layer renders and
// may differ (e.g. a diff vs. a summary).
type Result struct {
	Content string     `json:"content"`
	Display string     `json:"display"`
	Error   *CallError `json:"error,omitempty"`
}

// CompletedCall pairs a request with its terminal status and result. The
// orchestrator returns exactly one per scheduled request.
type CompletedCall struct {
	Request Request `json:"request"`
	Status  Status  `json:"status"`
	Result  Result  `json:"result"`
}
