package ws

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/kestrel-sh/kestrel/internal/bus"
	"github.com/kestrel-sh/kestrel/internal/domain/toolcall"
)

// Event type constants for WebSocket messages.
const (
	EventConfirmationRequested = "confirmation.requested"
	EventConfirmationResolve   = "confirmation.resolve"
	EventConfirmationError     = "confirmation.error"
	EventInvocationPartial     = "invocation.partial"
	EventInvocationCompleted   = "invocation.completed"
)

// ConfirmationEvent is broadcast when an invocation awaits an approval outcome.
type ConfirmationEvent struct {
	RequestID   string `json:"request_id"`
	CallID      string `json:"call_id"`
	PromptID    string `json:"prompt_id,omitempty"`
	ToolName    string `json:"tool_name"`
	DetailsKind string `json:"details_kind"`
	Details     any    `json:"details"`
}

// ResolvePayload is sent by a client to answer a pending confirmation.
type ResolvePayload struct {
	RequestID string         `json:"request_id"`
	Outcome   string         `json:"outcome"`
	Answers   map[string]any `json:"answers,omitempty"`
}

// ErrorEvent tells one client its resolve attempt was rejected.
type ErrorEvent struct {
	RequestID string `json:"request_id"`
	Error     string `json:"error"`
}

// PartialEvent is broadcast when an executing invocation streams output.
type PartialEvent struct {
	CallID string `json:"call_id"`
	Text   string `json:"text"`
}

// CompletedEvent is broadcast when an invocation reaches a terminal state.
type CompletedEvent struct {
	CallID    string `json:"call_id"`
	Tool      string `json:"tool"`
	Status    string `json:"status"`
	Display   string `json:"display,omitempty"`
	ErrorKind string `json:"error_kind,omitempty"`
	Message   string `json:"message,omitempty"`
}

// BroadcastEvent is a convenience method that marshals a typed event and broadcasts it.
func (h *Hub) BroadcastEvent(ctx context.Context, eventType string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("marshal ws event payload", "type", eventType, "error", err)
		return
	}

	h.Broadcast(ctx, Message{
		Type:    eventType,
		Payload: json.RawMessage(data),
	})
}

// BroadcastPartial streams a partial display update for an executing call.
func (h *Hub) BroadcastPartial(ctx context.Context, callID, text string) {
	h.BroadcastEvent(ctx, EventInvocationPartial, PartialEvent{CallID: callID, Text: text})
}

// BroadcastCompleted announces a terminal invocation state.
func (h *Hub) BroadcastCompleted(ctx context.Context, done *toolcall.CompletedCall) {
	ev := CompletedEvent{
		CallID:  done.Request.CallID,
		Tool:    done.Request.Name,
		Status:  string(done.Status),
		Display: done.Result.Display,
	}
	if done.Result.Error != nil {
		ev.ErrorKind = string(done.Result.Error.Kind)
		ev.Message = done.Result.Error.Message
	}
	h.BroadcastEvent(ctx, EventInvocationCompleted, ev)
}

func confirmationMessage(req *bus.Request) Message {
	ev := ConfirmationEvent{
		RequestID:   req.ID,
		CallID:      req.CallID,
		PromptID:    req.PromptID,
		ToolName:    req.ToolName,
		DetailsKind: req.Details.Kind(),
		Details:     req.Details,
	}
	data, err := json.Marshal(ev)
	if err != nil {
		slog.Error("marshal confirmation event", "request_id", req.ID, "error", err)
		data = []byte("{}")
	}
	return Message{Type: EventConfirmationRequested, Payload: data}
}

func errorMessage(requestID, errText string) Message {
	data, err := json.Marshal(ErrorEvent{RequestID: requestID, Error: errText})
	if err != nil {
		data = []byte("{}")
	}
	return Message{Type: EventConfirmationError, Payload: data}
}
