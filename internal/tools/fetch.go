package tools

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/kestrel-sh/kestrel/internal/bus"
	"github.com/kestrel-sh/kestrel/internal/domain/confirm"
	"github.com/kestrel-sh/kestrel/internal/domain/toolcall"
)

// maxFetchBytes caps fetched bodies so a single call cannot blow up the
// model context.
const maxFetchBytes = 256 * 1024

// WebFetch retrieves a URL. It leaves the machine, so it confirms with an
// Info prompt naming the target.
type WebFetch struct {
	Client *http.Client
}

func (t *WebFetch) Name() string        { return "web_fetch" }
func (t *WebFetch) Description() string { return "Fetch the contents of a URL" }
func (t *WebFetch) Kind() Kind          { return KindFetch }

func (t *WebFetch) Validate(args map[string]any) error {
	raw, err := stringArg(args, "url")
	if err != nil {
		return err
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("parameter %q is not a valid URL: %v", "url", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("parameter %q must use http or https, got %q", "url", u.Scheme)
	}
	return nil
}

func (t *WebFetch) Confirmation(_ context.Context, args map[string]any) (confirm.Details, error) {
	raw, err := stringArg(args, "url")
	if err != nil {
		return nil, err
	}
	return confirm.NewInfo(fmt.Sprintf("Fetch %s", raw), []string{raw}), nil
}

func (t *WebFetch) Execute(ctx context.Context, args map[string]any, _ *bus.Resolution, _ func(string)) (toolcall.Result, error) {
	raw, err := stringArg(args, "url")
	if err != nil {
		return toolcall.Result{}, err
	}

	client := t.Client
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, raw, nil)
	if err != nil {
		return toolcall.Result{}, fmt.Errorf("fetch %s: %w", raw, err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return toolcall.Result{}, fmt.Errorf("fetch %s: %w", raw, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBytes))
	if err != nil {
		return toolcall.Result{}, fmt.Errorf("fetch %s: read body: %w", raw, err)
	}

	return toolcall.Result{
		Content: string(body),
		Display: fmt.Sprintf("Fetched %d bytes from %s (status %d)", len(body), raw, resp.StatusCode),
	}, nil
}
