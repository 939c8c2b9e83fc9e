// Package ws implements the WebSocket adapter for interactive approvers:
// confirmation requests are broadcast to connected clients, and clients
// answer them by sending resolve messages back over the same connection.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/coder/websocket"

	"github.com/kestrel-sh/kestrel/internal/bus"
	"github.com/kestrel-sh/kestrel/internal/domain/confirm"
)

// Message is the envelope for all WebSocket messages.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// conn wraps a single WebSocket connection.
type conn struct {
	ws     *websocket.Conn
	cancel context.CancelFunc
}

// Hub manages active WebSocket connections. While at least one client is
// connected the hub is subscribed to the confirmation bus; published requests
// are broadcast and client resolve messages are fed back.
type Hub struct {
	bus bus.Bus

	mu          sync.RWMutex
	conns       map[*conn]struct{}
	unsubscribe func()
}

// NewHub creates a WebSocket hub bridging the given confirmation bus.
func NewHub(b bus.Bus) *Hub {
	return &Hub{
		bus:   b,
		conns: make(map[*conn]struct{}),
	}
}

// HandleWS returns an http.HandlerFunc that upgrades connections to WebSocket.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // CORS handled by middleware
	})
	if err != nil {
		slog.Error("websocket accept failed", "error", err)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	c := &conn{ws: ws, cancel: cancel}

	h.add(c)
	slog.Info("websocket connected", "remote", r.RemoteAddr)

	// Read loop: consumes pings, detects disconnects, and applies resolve
	// messages to the bus.
	go func() {
		defer func() {
			h.remove(c)
			_ = ws.Close(websocket.StatusNormalClosure, "")
		}()
		for {
			_, data, err := ws.Read(ctx)
			if err != nil {
				return
			}
			h.handleIncoming(ctx, c, data)
		}
	}()

	// Late joiners see what is still awaiting an answer.
	for _, req := range h.bus.Pending() {
		h.sendTo(ctx, c, confirmationMessage(req))
	}
}

func (h *Hub) handleIncoming(ctx context.Context, c *conn, data []byte) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		slog.Debug("websocket bad message", "error", err)
		return
	}
	if msg.Type != EventConfirmationResolve {
		return
	}

	var payload ResolvePayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		slog.Debug("websocket bad resolve payload", "error", err)
		return
	}

	err := h.bus.Resolve(payload.RequestID, bus.Resolution{
		Outcome: confirm.Outcome(payload.Outcome),
		Answers: payload.Answers,
	})
	switch {
	case err == nil:
		slog.Info("confirmation resolved via websocket", "request_id", payload.RequestID, "outcome", payload.Outcome)
	case errors.Is(err, bus.ErrAlreadyResolved), errors.Is(err, bus.ErrUnknownRequest):
		// Another approver won the race; tell this client its answer lost.
		h.sendTo(ctx, c, errorMessage(payload.RequestID, err.Error()))
	default:
		slog.Warn("confirmation resolve failed", "request_id", payload.RequestID, "error", err)
	}
}

// Broadcast sends a message to all connected clients.
func (h *Hub) Broadcast(ctx context.Context, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("websocket marshal failed", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.conns {
		if err := c.ws.Write(ctx, websocket.MessageText, data); err != nil {
			slog.Debug("websocket write failed", "error", err)
			go h.remove(c)
		}
	}
}

func (h *Hub) sendTo(ctx context.Context, c *conn, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("websocket marshal failed", "error", err)
		return
	}
	if err := c.ws.Write(ctx, websocket.MessageText, data); err != nil {
		go h.remove(c)
	}
}

// ConnectionCount returns the number of active connections.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

func (h *Hub) add(c *conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.conns[c] = struct{}{}
	if len(h.conns) == 1 && h.unsubscribe == nil {
		h.unsubscribe = h.bus.Subscribe(func(req *bus.Request) {
			h.Broadcast(context.Background(), confirmationMessage(req))
		})
	}
}

func (h *Hub) remove(c *conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.conns[c]; ok {
		c.cancel()
		delete(h.conns, c)
		slog.Info("websocket disconnected")
	}
	if len(h.conns) == 0 && h.unsubscribe != nil {
		h.unsubscribe()
		h.unsubscribe = nil
	}
}
