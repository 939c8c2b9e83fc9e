package ws

import (
	"context"
	"testing"

	"github.com/kestrel-sh/kestrel/internal/bus"
	"github.com/kestrel-sh/kestrel/internal/domain/toolcall"
)

func TestNewHub(t *testing.T) {
	hub := NewHub(bus.NewInMemory())
	if hub == nil {
		t.Fatal("expected non-nil hub")
	}
	if hub.ConnectionCount() != 0 {
		t.Fatalf("expected 0 connections, got %d", hub.ConnectionCount())
	}
}

func TestHubBroadcastNoConnections(t *testing.T) {
	hub := NewHub(bus.NewInMemory())

	// Broadcast with no connections should not panic.
	hub.Broadcast(context.Background(), Message{
		Type:    EventInvocationPartial,
		Payload: []byte(`{"call_id":"c1","text":"x"}`),
	})
}

func TestHubBroadcastEventMarshalError(t *testing.T) {
	hub := NewHub(bus.NewInMemory())

	// A channel cannot be marshaled to JSON — should log error, not panic.
	hub.BroadcastEvent(context.Background(), "bad", make(chan int))
}

func TestHubBroadcastCompletedNoConnections(t *testing.T) {
	hub := NewHub(bus.NewInMemory())

	done := &toolcall.CompletedCall{
		Request: toolcall.Request{CallID: "c1", Name: "run_shell_command"},
		Status:  toolcall.StatusSucceeded,
		Result:  toolcall.Result{Display: "ok"},
	}
	hub.BroadcastCompleted(context.Background(), done)
}

func TestHubRemoveNonexistent(t *testing.T) {
	hub := NewHub(bus.NewInMemory())

	_, cancel := context.WithCancel(context.Background())
	defer cancel()
	c := &conn{ws: nil, cancel: cancel}
	hub.remove(c)
}

func TestHubSubscribesWhileConnected(t *testing.T) {
	b := bus.NewInMemory()
	hub := NewHub(b)

	// With no connections the bus must fail fast.
	req := bus.NewRequest("c1", "", "run_shell_command", nil)
	if _, err := b.Publish(context.Background(), req); err != bus.ErrNoSubscribers {
		t.Fatalf("expected ErrNoSubscribers with no clients, got %v", err)
	}

	_, cancel := context.WithCancel(context.Background())
	defer cancel()
	c := &conn{ws: nil, cancel: cancel}
	hub.add(c)

	pendingBefore := len(b.Pending())
	hub.remove(c)

	// After the last client leaves, the hub unsubscribes again.
	req2 := bus.NewRequest("c2", "", "run_shell_command", nil)
	if _, err := b.Publish(context.Background(), req2); err != bus.ErrNoSubscribers {
		t.Fatalf("expected ErrNoSubscribers after disconnect, got %v", err)
	}
	if pendingBefore != 0 {
		t.Errorf("expected no pending requests, got %d", pendingBefore)
	}
}
