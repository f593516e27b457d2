package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"fieldsync/internal/config"
	"fieldsync/internal/mutation"
)

const maxErrorBody = 512

// Submitter delivers a single mutation to the remote service.
type Submitter interface {
	Submit(ctx context.Context, mutationType string, payload json.RawMessage) error
}

// SubmitterFunc adapts a function to Submitter.
type SubmitterFunc func(ctx context.Context, mutationType string, payload json.RawMessage) error

// Submit calls f.
func (f SubmitterFunc) Submit(ctx context.Context, mutationType string, payload json.RawMessage) error {
	return f(ctx, mutationType, payload)
}

// HTTPDoer describes the HTTP client used for submissions.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client submits mutations over HTTP.
type Client struct {
	baseURL  string
	token    string
	registry *mutation.Registry
	client   HTTPDoer
}

// NewClient returns a Client with an http.Client bounded by timeout.
func NewClient(baseURL, token string, registry *mutation.Registry, timeout time.Duration) *Client {
	return NewClientWithDoer(baseURL, token, registry, &http.Client{Timeout: timeout})
}

// NewClientWithDoer returns a Client using a caller-provided HTTP doer.
func NewClientWithDoer(baseURL, token string, registry *mutation.Registry, doer HTTPDoer) *Client {
	if registry == nil {
		registry = mutation.DefaultRegistry()
	}
	if doer == nil {
		doer = http.DefaultClient
	}
	return &Client{
		baseURL:  strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		token:    strings.TrimSpace(token),
		registry: registry,
		client:   doer,
	}
}

// NewConfiguredClient builds a Client from the remote configuration section.
func NewConfiguredClient(cfg *config.Config, registry *mutation.Registry) *Client {
	return NewClient(cfg.Remote.BaseURL, cfg.Remote.Token, registry, cfg.RemoteRequestTimeout())
}

// Submit posts payload to the route registered for mutationType. Any non-2xx
// response or transport failure is returned as a *StatusError.
func (c *Client) Submit(ctx context.Context, mutationType string, payload json.RawMessage) error {
	def, ok := c.registry.Lookup(mutationType)
	if !ok {
		return fmt.Errorf("%w: %q", ErrNoRoute, mutationType)
	}

	endpoint := c.baseURL + "/" + strings.TrimLeft(def.Path, "/")
	req, err := http.NewRequestWithContext(ctx, def.Method, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build %s request: %w", mutationType, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if key, ok := IdempotencyKeyFromContext(ctx); ok {
		req.Header.Set("Idempotency-Key", key)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return &StatusError{Type: mutationType, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &StatusError{
		Type:       mutationType,
		StatusCode: resp.StatusCode,
		Body:       strings.TrimSpace(string(body)),
	}
}
