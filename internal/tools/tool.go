// Package tools defines the tool contract the orchestrator schedules, the
// registry it resolves names against, and the built-in tools of the CLI.
package tools

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/kestrel-sh/kestrel/internal/bus"
	"github.com/kestrel-sh/kestrel/internal/domain/confirm"
	"github.com/kestrel-sh/kestrel/internal/domain/toolcall"
)

// Kind classifies a tool for policy purposes.
type Kind string

const (
	KindRead   Kind = "read"
	KindEdit   Kind = "edit"
	KindExec   Kind = "exec"
	KindFetch  Kind = "fetch"
	KindAsk    Kind = "ask"
	KindPlan   Kind = "plan"
	KindRemote Kind = "remote"
	KindMcp    Kind = "mcp"
)

// Mutating reports whether calls of this kind have side effects or otherwise
// need gating. Plain reads are exempt, and so is the plan review: it only
// presents a document, and it must stay reachable under plan mode.
func (k Kind) Mutating() bool {
	return k != KindRead && k != KindPlan
}

// IsEdit reports whether this kind is auto-approved under auto-edit mode.
func (k Kind) IsEdit() bool {
	return k == KindEdit
}

// Tool is one schedulable capability.
type Tool interface {
	Name() string
	Description() string
	Kind() Kind

	// Validate checks the parameter bag. Pure: no side effects.
	Validate(args map[string]any) error

	// Confirmation computes what an approver should see for this call, or
	// nil when the call needs no confirmation even under an ask decision.
	Confirmation(ctx context.Context, args map[string]any) (confirm.Details, error)

	// Execute runs the call. res carries the confirmation resolution when
	// one was obtained (nil otherwise); onPartial, when non-nil, streams
	// display output and must not be called after ctx is cancelled.
	Execute(ctx context.Context, args map[string]any, res *bus.Resolution, onPartial func(string)) (toolcall.Result, error)
}

// Registry resolves tool names for the orchestrator.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool. Duplicate names are an error.
func (r *Registry) Register(t Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[t.Name()]; exists {
		return fmt.Errorf("tools: %q already registered", t.Name())
	}
	r.tools[t.Name()] = t
	return nil
}

// Get resolves a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Names lists registered tool names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// stringArg extracts a required string parameter.
func stringArg(args map[string]any, key string) (string, error) {
	v, ok := args[key]
	if !ok {
		return "", fmt.Errorf("parameter %q is required", key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("parameter %q must be a string, got %T", key, v)
	}
	if s == "" {
		return "", fmt.Errorf("parameter %q must not be empty", key)
	}
	return s, nil
}
