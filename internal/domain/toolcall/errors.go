package toolcall

import "fmt"

// ErrorKind classifies invocation failures. Policy denials and cancellations
// are represented here too: they travel in Result.Error like real failures so
// the model loop gets one uniform shape, but callers can tell them apart.
type ErrorKind string

const (
	// ErrorValidation marks malformed parameters. Never retried; surfaced
	// verbatim so the model can correct its call.
	ErrorValidation ErrorKind = "validation"
	// ErrorPolicyDenied is a refusal with a human-readable reason, not an
	// execution error.
	ErrorPolicyDenied ErrorKind = "policy_denied"
	// ErrorConfirmationCancelled means the user declined the call.
	ErrorConfirmationCancelled ErrorKind = "confirmation_cancelled"
	// ErrorAuth is a terminal authentication failure after bounded retries.
	ErrorAuth ErrorKind = "auth"
	// ErrorTransport is a network or stream failure during execution.
	ErrorTransport ErrorKind = "transport"
	// ErrorAborted marks cooperative cancellation, distinct from failure.
	ErrorAborted ErrorKind = "aborted"
	// ErrorConfig marks an orchestration misconfiguration, e.g. a
	// confirmation published with no subscriber to answer it.
	ErrorConfig ErrorKind = "config"
)

// CallError is a classified invocation failure captured into Result.Error.
// It is never thrown across the orchestrator boundary.
type CallError struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

func (e *CallError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// NewError builds a CallError with a formatted message.
func NewError(kind ErrorKind, format string, args ...any) *CallError {
	return &CallError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}
