// Package bus implements the confirmation channel: a publish/subscribe
// mediator between tool invocations that need an approval outcome and
// whatever answers them (a terminal prompt, a WebSocket UI, a NATS bridge,
// or a scripted policy). Publishers block until exactly one outcome is
// delivered; correlation is by request ID, never by ordering.
package bus

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/kestrel-sh/kestrel/internal/domain/confirm"
)

var (
	// ErrNoSubscribers is returned when a confirmation is published with
	// nobody to answer it. Failing fast beats hanging a headless run.
	ErrNoSubscribers = errors.New("bus: no confirmation subscribers registered")
	// ErrAlreadyResolved is returned on a second resolution of the same
	// request. The first outcome stands.
	ErrAlreadyResolved = errors.New("bus: request already resolved")
	// ErrUnknownRequest is returned when resolving an ID with no pending
	// request (already resolved, cancelled, or never published).
	ErrUnknownRequest = errors.New("bus: unknown request id")
)

// Resolution is the approver's answer: the outcome plus free-form answer
// data for AskUser confirmations (and the edited command for
// modify-with-editor).
type Resolution struct {
	Outcome confirm.Outcome `json:"outcome"`
	Answers map[string]any  `json:"answers,omitempty"`
}

// Request is one outstanding confirmation. It is resolved at most once; the
// winning resolution is delivered to the blocked publisher.
type Request struct {
	// ID identifies this request on the bus. Distinct from CallID because a
	// single call may confirm more than once (modify-with-editor loops).
	ID       string          `json:"id"`
	CallID   string          `json:"call_id"`
	PromptID string          `json:"prompt_id,omitempty"`
	ToolName string          `json:"tool_name"`
	Details  confirm.Details `json:"details"`

	resolved atomic.Bool
	outcome  chan Resolution
}

// Resolve delivers the outcome for this request. Exactly the first call
// succeeds; later calls return ErrAlreadyResolved and do not alter the
// delivered outcome.
func (r *Request) Resolve(res Resolution) error {
	if !r.resolved.CompareAndSwap(false, true) {
		return ErrAlreadyResolved
	}
	r.outcome <- res
	return nil
}

// Bus is the confirmation channel contract seen by invocations and approvers.
type Bus interface {
	// Publish registers the request, notifies subscribers, and blocks until
	// an outcome is delivered or ctx is cancelled. It fails fast with
	// ErrNoSubscribers when nobody can answer.
	Publish(ctx context.Context, req *Request) (Resolution, error)

	// Subscribe registers a callback invoked once per published request.
	// The returned function cancels the subscription.
	Subscribe(fn func(*Request)) (cancel func())

	// Resolve answers a pending request by ID, for approvers that learn of
	// requests out of band (HTTP, NATS).
	Resolve(requestID string, res Resolution) error

	// Pending lists requests still awaiting an outcome.
	Pending() []*Request
}

// NewRequest builds a confirmation request with a fresh bus ID.
func NewRequest(callID, promptID, toolName string, details confirm.Details) *Request {
	return &Request{
		ID:       uuid.NewString(),
		CallID:   callID,
		PromptID: promptID,
		ToolName: toolName,
		Details:  details,
		outcome:  make(chan Resolution, 1),
	}
}

// InMemory is the in-process Bus. Concurrent invocations may each have an
// outstanding request; they are tracked independently by ID.
type InMemory struct {
	mu      sync.RWMutex
	pending map[string]*Request
	subs    map[int]func(*Request)
	nextSub int
}

// NewInMemory creates an empty in-process bus.
func NewInMemory() *InMemory {
	return &InMemory{
		pending: make(map[string]*Request),
		subs:    make(map[int]func(*Request)),
	}
}

// Publish implements Bus.
func (b *InMemory) Publish(ctx context.Context, req *Request) (Resolution, error) {
	b.mu.Lock()
	if len(b.subs) == 0 {
		b.mu.Unlock()
		return Resolution{}, ErrNoSubscribers
	}
	b.pending[req.ID] = req
	subs := make([]func(*Request), 0, len(b.subs))
	for _, fn := range b.subs {
		subs = append(subs, fn)
	}
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		delete(b.pending, req.ID)
		b.mu.Unlock()
	}()

	for _, fn := range subs {
		go fn(req)
	}

	select {
	case res := <-req.outcome:
		return res, nil
	case <-ctx.Done():
		return Resolution{}, ctx.Err()
	}
}

// Subscribe implements Bus.
func (b *InMemory) Subscribe(fn func(*Request)) (cancel func()) {
	b.mu.Lock()
	id := b.nextSub
	b.nextSub++
	b.subs[id] = fn
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}
}

// Resolve implements Bus.
func (b *InMemory) Resolve(requestID string, res Resolution) error {
	b.mu.RLock()
	req, ok := b.pending[requestID]
	b.mu.RUnlock()
	if !ok {
		return ErrUnknownRequest
	}
	return req.Resolve(res)
}

// Pending implements Bus.
func (b *InMemory) Pending() []*Request {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]*Request, 0, len(b.pending))
	for _, req := range b.pending {
		out = append(out, req)
	}
	return out
}
