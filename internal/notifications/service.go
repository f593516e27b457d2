package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"fieldsync/internal/config"
)

const userAgent = "fieldsync/0.1.0"

// Event identifies what happened.
type Event string

const (
	// EventItemDropped fires when a mutation exhausts its retry budget.
	EventItemDropped Event = "item_dropped"
	// EventPassAborted fires when a pass stops on a storage error.
	EventPassAborted Event = "pass_aborted"
	// EventTest is sent by fieldsync test-notify.
	EventTest Event = "test"
)

// Payload carries event details keyed by name.
type Payload map[string]string

// Service publishes sync events to an operator.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// Enabled reports whether svc delivers anywhere.
func Enabled(svc Service) bool {
	if svc == nil {
		return false
	}
	_, noop := svc.(noopService)
	return !noop
}

// NewService returns an ntfy-backed service, or a no-op when no topic is set.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}
	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: cfg.NotifyTimeout()},
	}
}

// Noop returns a service that discards every event.
func Noop() Service {
	return noopService{}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	msg, ok := render(event, payload)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

func render(event Event, payload Payload) (message, bool) {
	get := func(key string) string {
		return strings.TrimSpace(payload[key])
	}
	switch event {
	case EventItemDropped:
		body := fmt.Sprintf("Dropped %s %s after %s attempts", get("type"), get("id"), get("retries"))
		if reason := get("error"); reason != "" {
			body += "\nLast error: " + reason
		}
		if get("deadLettered") == "true" {
			body += "\nRequeue with: fieldsync dead requeue " + get("id")
		}
		return message{
			title:    "fieldsync - Mutation Dropped",
			body:     body,
			tags:     []string{"fieldsync", "queue", "dropped"},
			priority: "high",
		}, true
	case EventPassAborted:
		body := "Sync pass aborted"
		if reason := get("error"); reason != "" {
			body += ": " + reason
		}
		return message{
			title:    "fieldsync - Sync Error",
			body:     body,
			tags:     []string{"fieldsync", "error", "alert"},
			priority: "high",
		}, true
	case EventTest:
		return message{
			title:    "fieldsync - Test",
			body:     "Notification system test",
			tags:     []string{"fieldsync", "test"},
			priority: "low",
		}, true
	default:
		return message{}, false
	}
}

func (n *ntfyService) send(ctx context.Context, msg message) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(msg.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if msg.title != "" {
		req.Header.Set("Title", msg.title)
	}
	if len(msg.tags) > 0 {
		req.Header.Set("Tags", strings.Join(msg.tags, ","))
	}
	if msg.priority != "" && msg.priority != "default" {
		req.Header.Set("Priority", msg.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
