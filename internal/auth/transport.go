package auth

import (
	"fmt"
	"net/http"
)

// Transport is an http.RoundTripper that applies a Provider's headers to
// every request and replays the request with fresh headers when the provider
// authorizes a retry after 401/403.
type Transport struct {
	Base     http.RoundTripper
	Provider Provider

	// OnRetry, when non-nil, is called once per granted credential retry,
	// before the request is replayed. Used to feed the retry counter.
	OnRetry func()
}

// NewTransport wraps base with credential injection from provider. A nil
// base uses http.DefaultTransport.
func NewTransport(base http.RoundTripper, provider Provider) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &Transport{Base: base, Provider: provider}
}

// RoundTrip implements http.RoundTripper. Requests with bodies are only
// retried when GetBody is available to rewind them.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	headers, err := t.Provider.Headers()
	if err != nil {
		return nil, fmt.Errorf("auth transport: %w", err)
	}

	resp, err := t.Base.RoundTrip(applyHeaders(req, headers))
	if err != nil {
		return nil, err
	}

	for {
		fresh, retry := t.Provider.RetryHeaders(req.Context(), resp.StatusCode)
		if !retry {
			return resp, nil
		}
		if req.Body != nil && req.GetBody == nil {
			return resp, nil
		}

		if t.OnRetry != nil {
			t.OnRetry()
		}

		retryReq := req.Clone(req.Context())
		if req.GetBody != nil {
			body, bodyErr := req.GetBody()
			if bodyErr != nil {
				return resp, nil
			}
			retryReq.Body = body
		}

		_ = resp.Body.Close()
		resp, err = t.Base.RoundTrip(applyHeaders(retryReq, fresh))
		if err != nil {
			return nil, err
		}
	}
}

func applyHeaders(req *http.Request, headers http.Header) *http.Request {
	out := req.Clone(req.Context())
	for name, values := range headers {
		for _, v := range values {
			out.Header.Set(name, v)
		}
	}
	return out
}
