package auth

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// rotating hands out a new token on every refresh, so a retry actually
// changes the credential sent.
type rotating struct {
	tokens []string
	next   int
	state  retryState
}

func (p *rotating) Init(context.Context) error { return nil }

func (p *rotating) Headers() (http.Header, error) {
	return bearerHeader(p.tokens[p.next]), nil
}

func (p *rotating) RetryHeaders(_ context.Context, status int) (http.Header, bool) {
	if !p.state.consume(status) {
		return nil, false
	}
	if p.next < len(p.tokens)-1 {
		p.next++
	}
	h, _ := p.Headers()
	return h, true
}

func TestTransportInjectsHeaders(t *testing.T) {
	var seen string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.Header.Get("Authorization")
	}))
	defer srv.Close()

	client := &http.Client{Transport: NewTransport(nil, NewStatic("Authorization", "Bearer abc"))}
	resp, err := client.Get(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	_ = resp.Body.Close()

	if seen != "Bearer abc" {
		t.Errorf("expected injected header, got %q", seen)
	}
}

func TestTransportRetriesWithFreshCredential(t *testing.T) {
	var attempts []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := r.Header.Get("Authorization")
		attempts = append(attempts, token)
		if token != "Bearer good" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = io.WriteString(w, "ok")
	}))
	defer srv.Close()

	provider := &rotating{tokens: []string{"stale", "good"}}
	client := &http.Client{Transport: NewTransport(nil, provider)}

	resp, err := client.Get(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 after retry, got %d", resp.StatusCode)
	}
	if len(attempts) != 2 {
		t.Fatalf("expected 2 attempts, got %d: %v", len(attempts), attempts)
	}
	if attempts[1] != "Bearer good" {
		t.Errorf("expected retry to carry the fresh credential, got %q", attempts[1])
	}
}

func TestTransportStopsAtRetryBudget(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts++
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	provider := &rotating{tokens: []string{"always-stale"}}
	client := &http.Client{Transport: NewTransport(nil, provider)}

	resp, err := client.Get(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	_ = resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected terminal 401, got %d", resp.StatusCode)
	}
	if attempts != 1+MaxRetries {
		t.Errorf("expected %d attempts (initial + budget), got %d", 1+MaxRetries, attempts)
	}
}

func TestTransportReportsEachGrantedRetry(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	retries := 0
	transport := NewTransport(nil, &rotating{tokens: []string{"always-stale"}})
	transport.OnRetry = func() { retries++ }

	client := &http.Client{Transport: transport}
	resp, err := client.Get(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	_ = resp.Body.Close()

	if retries != MaxRetries {
		t.Errorf("expected %d retry notifications, got %d", MaxRetries, retries)
	}
}

func TestTransportSkipsRetryWhenBodyCannotRewind(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts++
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	provider := &rotating{tokens: []string{"a", "b"}}
	transport := NewTransport(nil, provider)

	req, err := http.NewRequest(http.MethodPost, srv.URL, io.NopCloser(strings.NewReader("payload")))
	if err != nil {
		t.Fatal(err)
	}
	req.GetBody = nil

	resp, err := transport.RoundTrip(req)
	if err != nil {
		t.Fatal(err)
	}
	_ = resp.Body.Close()

	if attempts != 1 {
		t.Errorf("expected single attempt for unrewindable body, got %d", attempts)
	}
}
