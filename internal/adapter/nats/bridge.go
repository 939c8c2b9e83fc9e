package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/kestrel-sh/kestrel/internal/bus"
	"github.com/kestrel-sh/kestrel/internal/domain/confirm"
	"github.com/kestrel-sh/kestrel/internal/port/messagequeue"
)

// Bridge connects the in-process confirmation bus to the message queue:
// published confirmation requests go out on confirmations.requested, and
// resolve messages arriving on confirmations.resolve answer them.
type Bridge struct {
	queue       messagequeue.Queue
	bus         bus.Bus
	unsubscribe func()
	stopResolve func()
}

// NewBridge creates a bridge between b and queue.
func NewBridge(queue messagequeue.Queue, b bus.Bus) *Bridge {
	return &Bridge{queue: queue, bus: b}
}

// Start attaches the bridge: it subscribes to the bus for outgoing requests
// and to the queue for incoming resolutions.
func (br *Bridge) Start(ctx context.Context) error {
	stop, err := br.queue.Subscribe(ctx, messagequeue.SubjectConfirmationResolve, br.handleResolve)
	if err != nil {
		return fmt.Errorf("bridge: subscribe resolve: %w", err)
	}
	br.stopResolve = stop

	br.unsubscribe = br.bus.Subscribe(func(req *bus.Request) {
		br.publishRequest(ctx, req)
	})
	return nil
}

// Stop detaches the bridge from both sides.
func (br *Bridge) Stop() {
	if br.unsubscribe != nil {
		br.unsubscribe()
		br.unsubscribe = nil
	}
	if br.stopResolve != nil {
		br.stopResolve()
		br.stopResolve = nil
	}
}

func (br *Bridge) publishRequest(ctx context.Context, req *bus.Request) {
	details, err := json.Marshal(req.Details)
	if err != nil {
		slog.Error("bridge: marshal confirmation details", "request_id", req.ID, "error", err)
		return
	}
	payload, err := json.Marshal(messagequeue.ConfirmationRequestedPayload{
		RequestID:   req.ID,
		CallID:      req.CallID,
		PromptID:    req.PromptID,
		Tool:        req.ToolName,
		DetailsKind: req.Details.Kind(),
		Details:     details,
	})
	if err != nil {
		slog.Error("bridge: marshal confirmation payload", "request_id", req.ID, "error", err)
		return
	}
	if err := br.queue.Publish(ctx, messagequeue.SubjectConfirmationRequested, payload); err != nil {
		slog.Error("bridge: publish confirmation", "request_id", req.ID, "error", err)
	}
}

func (br *Bridge) handleResolve(_ context.Context, subject string, data []byte) error {
	var payload messagequeue.ConfirmationResolvePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("bridge: decode %s: %w", subject, err)
	}

	err := br.bus.Resolve(payload.RequestID, bus.Resolution{
		Outcome: confirm.Outcome(payload.Outcome),
		Answers: payload.Answers,
	})
	switch {
	case err == nil:
		slog.Info("confirmation resolved via nats", "request_id", payload.RequestID, "outcome", payload.Outcome)
		return nil
	case errors.Is(err, bus.ErrAlreadyResolved), errors.Is(err, bus.ErrUnknownRequest):
		// Raced with another approver or arrived late. Ack and move on.
		slog.Debug("stale nats resolution", "request_id", payload.RequestID, "error", err)
		return nil
	default:
		return err
	}
}

// PublishPartial forwards a streaming output chunk to the queue.
func PublishPartial(ctx context.Context, queue messagequeue.Queue, payload messagequeue.InvocationPartialPayload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal partial payload: %w", err)
	}
	return queue.Publish(ctx, messagequeue.SubjectInvocationPartial, data)
}

// PublishCompleted announces a terminal invocation state on the queue.
func PublishCompleted(ctx context.Context, queue messagequeue.Queue, payload messagequeue.InvocationCompletedPayload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal completed payload: %w", err)
	}
	return queue.Publish(ctx, messagequeue.SubjectInvocationCompleted, data)
}
