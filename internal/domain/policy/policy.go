// Package policy defines the approval policy for tool calls: the session-wide
// approval mode, session-granted permissions, and the pure decision function
// that maps a call to allow, deny, or ask.
package policy

// Decision is the result of evaluating a tool call against the approval mode.
type Decision string

const (
	DecisionAllow Decision = "allow"
	DecisionDeny  Decision = "deny"
	// DecisionAsk means the call needs an explicit confirmation outcome.
	DecisionAsk Decision = "ask"
)

// ApprovalMode is the session-wide baseline for confirmation behavior.
type ApprovalMode string

const (
	// ModeDefault confirms every mutating call unless previously granted.
	ModeDefault ApprovalMode = "default"
	// ModeAutoEdit auto-approves edits; other mutating calls still confirm.
	ModeAutoEdit ApprovalMode = "autoEdit"
	// ModePlan refuses all mutating calls; only read-only calls proceed.
	ModePlan ApprovalMode = "plan"
	// ModeYolo auto-approves everything.
	ModeYolo ApprovalMode = "yolo"
)

// PlanDenyReason is the refusal text reported to the model in plan mode.
const PlanDenyReason = "plan mode — read only"

// Valid reports whether m is a known approval mode.
func (m ApprovalMode) Valid() bool {
	switch m {
	case ModeDefault, ModeAutoEdit, ModePlan, ModeYolo:
		return true
	}
	return false
}

// Description returns the fixed user-facing description for the mode. These
// strings are matched against in end-to-end tests and must not change.
func (m ApprovalMode) Description() string {
	switch m {
	case ModeAutoEdit:
		return "Auto-approve edits, confirm other mutating calls"
	case ModePlan:
		return "Read-only: refuse all mutating calls"
	case ModeYolo:
		return "Auto-approve everything"
	default:
		return "Confirm every mutating call unless previously granted"
	}
}

// CallDescriptor is the policy-relevant shape of a tool call.
type CallDescriptor struct {
	Tool    string `json:"tool"`
	Command string `json:"command,omitempty"`
	Path    string `json:"path,omitempty"`
	// Mutating marks calls with side effects (anything confirmable).
	Mutating bool `json:"mutating"`
	// Edit marks file-edit calls, auto-approved under ModeAutoEdit.
	Edit bool `json:"edit"`
}

// Evaluation captures a decision together with the reason it was made, so
// refusals can be reported to the model verbatim.
type Evaluation struct {
	Decision Decision `json:"decision"`
	Reason   string   `json:"reason"`
}

// Decide maps a call descriptor plus the current mode and session grants to a
// decision. It is pure: identical inputs always yield identical results.
//
// Rule order: plan-mode refusal, session grants, yolo, auto-edit, ask.
func Decide(call CallDescriptor, mode ApprovalMode, grants *Grants) Evaluation {
	if mode == ModePlan && call.Mutating {
		return Evaluation{Decision: DecisionDeny, Reason: PlanDenyReason}
	}
	if grants.Match(call) {
		return Evaluation{Decision: DecisionAllow, Reason: "session grant"}
	}
	if mode == ModeYolo {
		return Evaluation{Decision: DecisionAllow, Reason: "yolo mode"}
	}
	if mode == ModeAutoEdit && call.Edit {
		return Evaluation{Decision: DecisionAllow, Reason: "auto-edit mode"}
	}
	return Evaluation{Decision: DecisionAsk, Reason: "confirmation required"}
}
