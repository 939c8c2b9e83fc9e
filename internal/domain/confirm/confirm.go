// Package confirm defines the confirmation domain: the details shown to an
// approver before a tool call runs, and the outcome they answer with.
package confirm

// Outcome is the approver's answer to a confirmation request.
type Outcome string

const (
	// OutcomeProceedOnce approves this call only.
	OutcomeProceedOnce Outcome = "proceed_once"
	// OutcomeProceedAlways approves this call shape for good.
	OutcomeProceedAlways Outcome = "proceed_always"
	// OutcomeProceedAlwaysSession approves this call shape for the session.
	OutcomeProceedAlwaysSession Outcome = "proceed_always_session"
	// OutcomeModifyWithEditor asks to edit the command before re-confirming.
	OutcomeModifyWithEditor Outcome = "modify_with_editor"
	// OutcomeCancel declines the call.
	OutcomeCancel Outcome = "cancel"
)

// Proceed reports whether the outcome authorizes execution.
func (o Outcome) Proceed() bool {
	switch o {
	case OutcomeProceedOnce, OutcomeProceedAlways, OutcomeProceedAlwaysSession:
		return true
	}
	return false
}

// Details describes what is being confirmed. It is a closed sum: exactly the
// types in this package implement it, and consumers type-switch over them.
type Details interface {
	// Kind is a stable discriminator for wire encoding and logging.
	Kind() string

	isDetails()
}

// Exec asks to run one or more shell commands.
type Exec struct {
	// Command is the full command text as requested.
	Command string `json:"command"`
	// RootCommands holds the leading binary of each command, for grant matching.
	RootCommands []string `json:"root_commands,omitempty"`
	// Commands lists the individual commands when Command chains several.
	Commands []string `json:"commands,omitempty"`
	// RedirectsOutput warns that the command writes through a redirection.
	RedirectsOutput bool `json:"redirects_output,omitempty"`
}

// Edit asks to modify a file.
type Edit struct {
	Path        string `json:"path"`
	DisplayName string `json:"display_name"`
	Diff        string `json:"diff"`
	Original    string `json:"original,omitempty"`
	Updated     string `json:"updated,omitempty"`
}

// Info asks to proceed with an action described by a prompt, optionally
// referencing URLs. URLs identical to the prompt are suppressed at
// construction.
type Info struct {
	Prompt string   `json:"prompt"`
	URLs   []string `json:"urls,omitempty"`
}

// Mcp asks to invoke a tool served by an external MCP server.
type Mcp struct {
	Server      string `json:"server"`
	Tool        string `json:"tool"`
	DisplayName string `json:"display_name"`
}

// AskUser poses one to four questions directly to the user. The answers
// travel back with the outcome.
type AskUser struct {
	Questions []Question `json:"questions"`
}

// ExitPlanMode surfaces a plan document for review before leaving plan mode.
type ExitPlanMode struct {
	PlanPath string `json:"plan_path"`
}

func (Exec) Kind() string         { return "exec" }
func (Edit) Kind() string         { return "edit" }
func (Info) Kind() string         { return "info" }
func (Mcp) Kind() string          { return "mcp" }
func (AskUser) Kind() string      { return "ask_user" }
func (ExitPlanMode) Kind() string { return "exit_plan_mode" }

func (Exec) isDetails()         {}
func (Edit) isDetails()         {}
func (Info) isDetails()         {}
func (Mcp) isDetails()          {}
func (AskUser) isDetails()      {}
func (ExitPlanMode) isDetails() {}

// NewInfo builds Info details, suppressing URLs that merely repeat the prompt.
func NewInfo(prompt string, urls []string) Info {
	kept := urls[:0:0]
	for _, u := range urls {
		if u != prompt {
			kept = append(kept, u)
		}
	}
	return Info{Prompt: prompt, URLs: kept}
}
