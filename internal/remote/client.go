package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/a2aproject/a2a-go/a2a"
	"github.com/a2aproject/a2a-go/a2aclient"

	kotel "github.com/kestrel-sh/kestrel/internal/adapter/otel"
	"github.com/kestrel-sh/kestrel/internal/auth"
)

// agentCardPath is the A2A well-known location of an agent's card.
const agentCardPath = "/.well-known/agent.json"

// AuthStatusError is a terminal authentication failure: the remote kept
// answering 401/403 after the provider's retry budget was spent.
type AuthStatusError struct {
	Status int
}

func (e *AuthStatusError) Error() string {
	return fmt.Sprintf("remote: authentication failed with status %d", e.Status)
}

// Agent is a registered remote agent: a name, the endpoint serving its agent
// card, and an optional credential provider for its transport.
type Agent struct {
	Name     string
	Endpoint string
	Provider auth.Provider
}

// MessageSender is the slice of the A2A client used per call.
type MessageSender interface {
	SendStreamingMessage(ctx context.Context, params *a2a.MessageSendParams) iter.Seq2[a2a.Event, error]
	Destroy() error
}

// SenderFactory creates a sender for a resolved agent card. Tests inject a
// fake; production uses the a2aclient default.
type SenderFactory func(ctx context.Context, card *a2a.AgentCard) (MessageSender, error)

func defaultFactory(ctx context.Context, card *a2a.AgentCard) (MessageSender, error) {
	return a2aclient.NewFromCard(ctx, card)
}

// Client sends messages to remote agents over A2A streaming, preserving
// conversational continuity per agent through the session store.
type Client struct {
	mu      sync.RWMutex
	agents  map[string]Agent
	session *SessionStore
	cards   *CardCache
	factory SenderFactory

	// OnAuthRetry, when non-nil, is notified once per granted credential
	// retry on the agent's transport.
	OnAuthRetry func()
}

// NewClient creates a remote client. A nil factory uses the real A2A client.
func NewClient(sessions *SessionStore, cards *CardCache, factory SenderFactory) *Client {
	if factory == nil {
		factory = defaultFactory
	}
	return &Client{
		agents:  make(map[string]Agent),
		session: sessions,
		cards:   cards,
		factory: factory,
	}
}

// LoadAgent registers a remote agent under its name. Re-loading an existing
// name replaces its endpoint and credentials but keeps its session.
func (c *Client) LoadAgent(name, endpoint string, provider auth.Provider) {
	c.mu.Lock()
	c.agents[name] = Agent{Name: name, Endpoint: endpoint, Provider: provider}
	c.mu.Unlock()
}

// Agent returns a registered agent by name.
func (c *Client) Agent(name string) (Agent, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	a, ok := c.agents[name]
	return a, ok
}

// Session exposes the current session for an agent, for reporting.
func (c *Client) Session(agent string) Session {
	return c.session.Get(agent)
}

// Send delivers one user message to the named agent and reassembles the
// update stream into a transcript. onPartial, when non-nil, receives the
// growing transcript after each update and stops firing once ctx is
// cancelled. Whatever transcript accumulated is returned alongside any
// error, and the agent's session is rewritten unconditionally — success,
// failure, or cancellation alike.
func (c *Client) Send(ctx context.Context, agentName, text string, onPartial func(string)) (transcript string, err error) {
	agent, ok := c.Agent(agentName)
	if !ok {
		return "", fmt.Errorf("remote: unknown agent %q", agentName)
	}

	ctx, span := kotel.StartRemoteSendSpan(ctx, agentName)
	defer span.End()

	sess := c.session.Get(agentName)
	defer func() {
		c.session.Put(agentName, sess)
	}()

	card, err := c.resolveCard(ctx, agent)
	if err != nil {
		return "", err
	}

	sender, err := c.factory(ctx, card)
	if err != nil {
		return "", fmt.Errorf("remote: client creation for %q: %w", agentName, err)
	}
	defer func() {
		_ = sender.Destroy()
	}()

	msg := a2a.NewMessage(a2a.MessageRoleUser, a2a.TextPart{Text: text})
	msg.ContextID = sess.ContextID
	msg.TaskID = a2a.TaskID(sess.TaskID)

	re := NewReassembler()
	params := &a2a.MessageSendParams{Message: msg}
	for event, streamErr := range sender.SendStreamingMessage(ctx, params) {
		if ctx.Err() != nil {
			return re.String(), ctx.Err()
		}
		if streamErr != nil {
			return re.String(), fmt.Errorf("remote: stream from %q: %w", agentName, streamErr)
		}
		applyEvent(event, &sess, re)
		if onPartial != nil && ctx.Err() == nil {
			onPartial(re.String())
		}
	}

	return re.String(), nil
}

// applyEvent folds one stream event into the session and the transcript.
// The task id is cleared only when the remote task reaches completed; other
// terminal states keep it so a follow-up can still reference the task.
func applyEvent(event a2a.Event, sess *Session, re *Reassembler) {
	switch ev := event.(type) {
	case *a2a.Message:
		if ev.ContextID != "" {
			sess.ContextID = ev.ContextID
		}
		if ev.TaskID != "" {
			sess.TaskID = string(ev.TaskID)
		}
		re.AddMessage(textOf(ev.Parts))

	case *a2a.Task:
		sess.ContextID = ev.ContextID
		sess.TaskID = string(ev.ID)
		if ev.Status.Message != nil {
			re.AddMessage(textOf(ev.Status.Message.Parts))
		}
		if ev.Status.State == a2a.TaskStateCompleted {
			sess.TaskID = ""
		}

	case *a2a.TaskStatusUpdateEvent:
		if ev.ContextID != "" {
			sess.ContextID = ev.ContextID
		}
		if ev.TaskID != "" {
			sess.TaskID = string(ev.TaskID)
		}
		if ev.Status.Message != nil {
			re.AddMessage(textOf(ev.Status.Message.Parts))
		}
		if ev.Status.State == a2a.TaskStateCompleted {
			sess.TaskID = ""
		}

	case *a2a.TaskArtifactUpdateEvent:
		if ev.ContextID != "" {
			sess.ContextID = ev.ContextID
		}
		if ev.TaskID != "" {
			sess.TaskID = string(ev.TaskID)
		}
		if ev.Artifact != nil {
			re.AddArtifact(string(ev.Artifact.ID), ev.Artifact.Name, ev.Append, textOf(ev.Artifact.Parts))
		}
	}
}

func textOf(parts a2a.ContentParts) string {
	var sb strings.Builder
	for _, part := range parts {
		if tp, ok := part.(a2a.TextPart); ok {
			sb.WriteString(tp.Text)
		}
	}
	return sb.String()
}

// resolveCard fetches the agent card, consulting the card cache first. The
// fetch goes through the agent's auth transport so credential retries apply.
func (c *Client) resolveCard(ctx context.Context, agent Agent) (*a2a.AgentCard, error) {
	url := strings.TrimSuffix(agent.Endpoint, "/") + agentCardPath
	if card, ok := c.cards.Get(ctx, url); ok {
		return card, nil
	}

	httpClient := &http.Client{Timeout: 30 * time.Second}
	if agent.Provider != nil {
		transport := auth.NewTransport(nil, agent.Provider)
		transport.OnRetry = c.OnAuthRetry
		httpClient.Transport = transport
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("remote: card request for %q: %w", agent.Name, err)
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("remote: card fetch for %q: %w", agent.Name, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, &AuthStatusError{Status: resp.StatusCode}
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("remote: card fetch for %q: status %d", agent.Name, resp.StatusCode)
	}

	var card a2a.AgentCard
	if err := json.NewDecoder(resp.Body).Decode(&card); err != nil {
		return nil, fmt.Errorf("remote: card decode for %q: %w", agent.Name, err)
	}
	c.cards.Put(ctx, url, &card)
	return &card, nil
}
