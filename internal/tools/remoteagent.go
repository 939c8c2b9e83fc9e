package tools

import (
	"context"
	"fmt"

	"github.com/kestrel-sh/kestrel/internal/bus"
	"github.com/kestrel-sh/kestrel/internal/domain/confirm"
	"github.com/kestrel-sh/kestrel/internal/domain/toolcall"
	"github.com/kestrel-sh/kestrel/internal/remote"
)

// RemoteAgent delegates a message to a configured remote agent over the
// agent-to-agent protocol. The transcript streams back through onPartial
// as the remote task progresses.
type RemoteAgent struct {
	Client *remote.Client
}

func (t *RemoteAgent) Name() string        { return "remote_agent" }
func (t *RemoteAgent) Description() string { return "Send a message to a remote agent" }
func (t *RemoteAgent) Kind() Kind          { return KindRemote }

func (t *RemoteAgent) Validate(args map[string]any) error {
	if _, err := stringArg(args, "agent"); err != nil {
		return err
	}
	_, err := stringArg(args, "message")
	return err
}

// Confirmation returns nil: delegation is not itself mutating, and the
// remote side raises its own confirmations if it needs any.
func (t *RemoteAgent) Confirmation(_ context.Context, _ map[string]any) (confirm.Details, error) {
	return nil, nil
}

func (t *RemoteAgent) Execute(ctx context.Context, args map[string]any, _ *bus.Resolution, onPartial func(string)) (toolcall.Result, error) {
	agent, err := stringArg(args, "agent")
	if err != nil {
		return toolcall.Result{}, err
	}
	message, err := stringArg(args, "message")
	if err != nil {
		return toolcall.Result{}, err
	}

	transcript, sendErr := t.Client.Send(ctx, agent, message, onPartial)
	result := toolcall.Result{Content: transcript, Display: transcript}
	if sendErr != nil {
		// Partial transcript is kept so the caller can surface what
		// arrived before the stream broke.
		return result, fmt.Errorf("remote agent %s: %w", agent, sendErr)
	}
	return result, nil
}
