// Package auth supplies per-remote-target credentials and the bounded
// retry-on-auth-failure contract used by authenticated remote calls.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"strings"
	"sync"
)

// MaxRetries bounds consecutive retries after 401/403 responses.
const MaxRetries = 2

// ErrNotInitialized is returned by Headers before the provider has resolved
// its credential.
var ErrNotInitialized = errors.New("auth: provider not initialized")

// Provider supplies request headers for one remote target and decides
// whether an authentication failure is worth retrying.
type Provider interface {
	// Init resolves the credential. Headers fails until Init has succeeded.
	Init(ctx context.Context) error

	// Headers returns the current credential headers.
	Headers() (http.Header, error)

	// RetryHeaders inspects a response status. On 401/403 it returns fresh
	// headers and true while the retry budget lasts; any other status
	// resets the budget and returns false.
	RetryHeaders(ctx context.Context, status int) (http.Header, bool)
}

func isAuthFailure(status int) bool {
	return status == http.StatusUnauthorized || status == http.StatusForbidden
}

// retryState is the per-provider retry counter. It is private to the
// provider instance and never visible outside its retry hook.
type retryState struct {
	mu sync.Mutex
	n  int
}

// consume reports whether a retry is allowed for the status, incrementing
// the counter on auth failures and resetting it on everything else.
func (s *retryState) consume(status int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !isAuthFailure(status) {
		s.n = 0
		return false
	}
	if s.n >= MaxRetries {
		return false
	}
	s.n++
	return true
}

func (s *retryState) reset() {
	s.mu.Lock()
	s.n = 0
	s.mu.Unlock()
}

func bearerHeader(token string) http.Header {
	h := http.Header{}
	h.Set("Authorization", "Bearer "+token)
	return h
}

// Static is a fixed literal credential. Resending identical headers cannot
// fix an auth failure, so it never retries.
type Static struct {
	Name  string
	Value string

	state retryState
}

// NewStatic builds a static provider for one header.
func NewStatic(name, value string) *Static {
	return &Static{Name: name, Value: value}
}

func (p *Static) Init(context.Context) error { return nil }

func (p *Static) Headers() (http.Header, error) {
	h := http.Header{}
	h.Set(p.Name, p.Value)
	return h, nil
}

func (p *Static) RetryHeaders(_ context.Context, status int) (http.Header, bool) {
	if !isAuthFailure(status) {
		p.state.reset()
	}
	return nil, false
}

// Env resolves a credential from an environment variable at init time. Like
// Static, it never retries: the resolved value cannot change mid-process.
type Env struct {
	Header string
	Var    string

	mu    sync.Mutex
	value string
	ready bool
}

// NewEnv builds an environment-resolved provider.
func NewEnv(header, envVar string) *Env {
	return &Env{Header: header, Var: envVar}
}

func (p *Env) Init(context.Context) error {
	v := os.Getenv(p.Var)
	if v == "" {
		return fmt.Errorf("auth: environment variable %s is empty", p.Var)
	}
	p.mu.Lock()
	p.value = v
	p.ready = true
	p.mu.Unlock()
	return nil
}

func (p *Env) Headers() (http.Header, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.ready {
		return nil, ErrNotInitialized
	}
	h := http.Header{}
	h.Set(p.Header, p.value)
	return h, nil
}

func (p *Env) RetryHeaders(context.Context, int) (http.Header, bool) {
	return nil, false
}

// Command resolves a credential by running an external command, so a retry
// can pick up a rotated value. Stdout is trimmed and sent as a bearer token.
type Command struct {
	Cmd  string
	Args []string

	state retryState
	mu    sync.Mutex
	token string
	ready bool
}

// NewCommand builds a command-resolved provider.
func NewCommand(cmd string, args ...string) *Command {
	return &Command{Cmd: cmd, Args: args}
}

func (p *Command) Init(ctx context.Context) error {
	return p.refresh(ctx)
}

func (p *Command) refresh(ctx context.Context) error {
	out, err := exec.CommandContext(ctx, p.Cmd, p.Args...).Output()
	if err != nil {
		return fmt.Errorf("auth: credential command %s: %w", p.Cmd, err)
	}
	token := strings.TrimSpace(string(out))
	if token == "" {
		return fmt.Errorf("auth: credential command %s produced no output", p.Cmd)
	}
	p.mu.Lock()
	p.token = token
	p.ready = true
	p.mu.Unlock()
	return nil
}

func (p *Command) Headers() (http.Header, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.ready {
		return nil, ErrNotInitialized
	}
	return bearerHeader(p.token), nil
}

func (p *Command) RetryHeaders(ctx context.Context, status int) (http.Header, bool) {
	if !p.state.consume(status) {
		return nil, false
	}
	if err := p.refresh(ctx); err != nil {
		return nil, false
	}
	h, err := p.Headers()
	if err != nil {
		return nil, false
	}
	return h, true
}

// TokenSource fetches a short-lived token from ambient identity (e.g. an
// ADC-style metadata endpoint).
type TokenSource func(ctx context.Context) (string, error)

// Ambient resolves delegated-identity tokens. Tokens expire routinely, so a
// retry always attempts a fresh fetch, up to the shared bound.
type Ambient struct {
	Source TokenSource

	state retryState
	mu    sync.Mutex
	token string
	ready bool
}

// NewAmbient builds an ambient-identity provider around a token source.
func NewAmbient(source TokenSource) *Ambient {
	return &Ambient{Source: source}
}

func (p *Ambient) Init(ctx context.Context) error {
	return p.refresh(ctx)
}

func (p *Ambient) refresh(ctx context.Context) error {
	token, err := p.Source(ctx)
	if err != nil {
		return fmt.Errorf("auth: ambient token fetch: %w", err)
	}
	p.mu.Lock()
	p.token = token
	p.ready = true
	p.mu.Unlock()
	return nil
}

func (p *Ambient) Headers() (http.Header, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.ready {
		return nil, ErrNotInitialized
	}
	return bearerHeader(p.token), nil
}

func (p *Ambient) RetryHeaders(ctx context.Context, status int) (http.Header, bool) {
	if !p.state.consume(status) {
		return nil, false
	}
	if err := p.refresh(ctx); err != nil {
		return nil, false
	}
	h, err := p.Headers()
	if err != nil {
		return nil, false
	}
	return h, true
}
