// Package httpapi exposes the approval surface over HTTP: pending
// confirmations, out-of-band resolution, approval mode control, and the
// WebSocket mount for interactive approvers.
package httpapi

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kestrel-sh/kestrel/internal/bus"
	"github.com/kestrel-sh/kestrel/internal/domain/confirm"
	"github.com/kestrel-sh/kestrel/internal/domain/policy"
	"github.com/kestrel-sh/kestrel/internal/domain/toolcall"
	"github.com/kestrel-sh/kestrel/internal/port/store"
	"github.com/kestrel-sh/kestrel/internal/service"
	"github.com/kestrel-sh/kestrel/internal/tools"
)

const maxBodyBytes = 1 << 20

// Handlers carries the dependencies of the HTTP API.
type Handlers struct {
	Bus       bus.Bus
	Session   *service.Session
	Registry  *tools.Registry
	Scheduler *service.Scheduler
	Audit     store.AuditStore

	// OnCompleted, when set, is invoked for every terminal call scheduled
	// through the API (WebSocket and queue fan-out).
	OnCompleted func(ctx context.Context, done *toolcall.CompletedCall)
}

// pendingApproval is the wire shape of one outstanding confirmation.
type pendingApproval struct {
	RequestID   string `json:"request_id"`
	CallID      string `json:"call_id"`
	PromptID    string `json:"prompt_id,omitempty"`
	Tool        string `json:"tool"`
	DetailsKind string `json:"details_kind"`
	Details     any    `json:"details"`
}

// ListApprovals returns confirmations still awaiting an outcome.
func (h *Handlers) ListApprovals(w http.ResponseWriter, _ *http.Request) {
	pending := h.Bus.Pending()
	out := make([]pendingApproval, 0, len(pending))
	for _, req := range pending {
		out = append(out, pendingApproval{
			RequestID:   req.ID,
			CallID:      req.CallID,
			PromptID:    req.PromptID,
			Tool:        req.ToolName,
			DetailsKind: req.Details.Kind(),
			Details:     req.Details,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

type resolveRequest struct {
	Outcome string         `json:"outcome"`
	Answers map[string]any `json:"answers,omitempty"`
}

// ResolveApproval answers one pending confirmation by request ID.
func (h *Handlers) ResolveApproval(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	body, ok := readJSON[resolveRequest](w, r, maxBodyBytes)
	if !ok {
		return
	}
	if body.Outcome == "" {
		writeError(w, http.StatusBadRequest, "outcome is required")
		return
	}

	err := h.Bus.Resolve(id, bus.Resolution{
		Outcome: confirm.Outcome(body.Outcome),
		Answers: body.Answers,
	})
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]string{"status": "resolved"})
	case errors.Is(err, bus.ErrUnknownRequest):
		writeError(w, http.StatusNotFound, "no pending confirmation with that id")
	case errors.Is(err, bus.ErrAlreadyResolved):
		writeError(w, http.StatusConflict, "confirmation already resolved")
	default:
		writeError(w, http.StatusInternalServerError, "resolve failed")
	}
}

type modeResponse struct {
	Mode        string `json:"mode"`
	Description string `json:"description"`
}

// GetMode returns the session's current approval mode.
func (h *Handlers) GetMode(w http.ResponseWriter, _ *http.Request) {
	mode := h.Session.Mode()
	writeJSON(w, http.StatusOK, modeResponse{Mode: string(mode), Description: mode.Description()})
}

type modeRequest struct {
	Mode string `json:"mode"`
}

// SetMode switches the session's approval mode.
func (h *Handlers) SetMode(w http.ResponseWriter, r *http.Request) {
	body, ok := readJSON[modeRequest](w, r, maxBodyBytes)
	if !ok {
		return
	}
	if err := h.Session.SetMode(policy.ApprovalMode(body.Mode)); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	mode := h.Session.Mode()
	writeJSON(w, http.StatusOK, modeResponse{Mode: string(mode), Description: mode.Description()})
}

// ListGrants returns the session's "always allow" grants.
func (h *Handlers) ListGrants(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.Session.Grants().Snapshot())
}

// ListTools returns the registered tool names.
func (h *Handlers) ListTools(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.Registry.Names())
}

type scheduleRequest struct {
	PromptID string             `json:"prompt_id,omitempty"`
	Calls    []toolcall.Request `json:"calls"`
}

// ScheduleInvocations runs a batch of tool calls through the full lifecycle
// and returns their completed calls in request order. The request blocks
// until every call reaches a terminal state, confirmations included.
func (h *Handlers) ScheduleInvocations(w http.ResponseWriter, r *http.Request) {
	if h.Scheduler == nil {
		writeError(w, http.StatusNotImplemented, "scheduler not configured")
		return
	}
	body, ok := readJSON[scheduleRequest](w, r, maxBodyBytes)
	if !ok {
		return
	}
	if len(body.Calls) == 0 {
		writeError(w, http.StatusBadRequest, "calls must not be empty")
		return
	}
	for i := range body.Calls {
		if body.Calls[i].CallID == "" {
			writeError(w, http.StatusBadRequest, "every call needs a call_id")
			return
		}
		if body.Calls[i].PromptID == "" {
			body.Calls[i].PromptID = body.PromptID
		}
	}

	results := h.Scheduler.ScheduleAll(r.Context(), body.Calls)
	if h.OnCompleted != nil {
		for i := range results {
			h.OnCompleted(r.Context(), &results[i])
		}
	}
	writeJSON(w, http.StatusOK, results)
}

// ListInvocations returns recent audit records, newest first.
func (h *Handlers) ListInvocations(w http.ResponseWriter, r *http.Request) {
	if h.Audit == nil {
		writeError(w, http.StatusNotImplemented, "audit store not configured")
		return
	}
	records, err := h.Audit.ListInvocations(r.Context(), r.URL.Query().Get("prompt_id"), 100)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "audit query failed")
		return
	}
	writeJSON(w, http.StatusOK, records)
}
