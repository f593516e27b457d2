package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"fieldsync/internal/clock"
	"fieldsync/internal/logging"
	"fieldsync/internal/mutation"
)

// Backend is the persistence surface the Manager needs. *Store implements it.
type Backend interface {
	Persist(ctx context.Context, item *Item) error
	Get(ctx context.Context, id string) (*Item, error)
	List(ctx context.Context) ([]*Item, error)
	Remove(ctx context.Context, id string) error
	Update(ctx context.Context, id string, patch Patch) error
	Clear(ctx context.Context) (int64, error)
	DeadLetter(ctx context.Context, item *Item, reason string, failedAt time.Time) error
	ListDeadLetters(ctx context.Context) ([]*DeadLetter, error)
	GetDeadLetter(ctx context.Context, id string) (*DeadLetter, error)
	PurgeDeadLetters(ctx context.Context) (int64, error)
	Requeue(ctx context.Context, deadLetterID string, replacement *Item) error
}

// Manager owns queue item semantics: id assignment, payload validation, due
// selection, and retry bookkeeping.
type Manager struct {
	backend  Backend
	registry *mutation.Registry
	clock    clock.Clock
	ids      *IDGenerator
	logger   *slog.Logger
}

// ManagerOption customizes a Manager.
type ManagerOption func(*Manager)

// WithClock overrides the time source.
func WithClock(c clock.Clock) ManagerOption {
	return func(m *Manager) {
		if c != nil {
			m.clock = c
		}
	}
}

// WithRegistry overrides the mutation registry used to validate payloads.
func WithRegistry(r *mutation.Registry) ManagerOption {
	return func(m *Manager) {
		if r != nil {
			m.registry = r
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) ManagerOption {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewManager wires a manager over backend.
func NewManager(backend Backend, opts ...ManagerOption) *Manager {
	m := &Manager{
		backend:  backend,
		registry: mutation.DefaultRegistry(),
		clock:    clock.System{},
		ids:      NewIDGenerator(),
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = logging.NewComponentLogger(m.logger, "queue")
	return m
}

// Registry exposes the mutation registry the manager validates against.
func (m *Manager) Registry() *mutation.Registry {
	return m.registry
}

// now truncates to milliseconds so items compare equal after a round trip
// through storage.
func (m *Manager) now() time.Time {
	return m.clock.Now().UTC().Truncate(time.Millisecond)
}

// Enqueue validates payload for typ, persists a new item, and returns its id.
// Nothing is written when validation fails.
func (m *Manager) Enqueue(ctx context.Context, typ string, payload json.RawMessage) (string, error) {
	if err := m.registry.Validate(typ, payload); err != nil {
		return "", err
	}
	item, err := m.newItem(typ, payload)
	if err != nil {
		return "", err
	}
	if err := m.backend.Persist(ctx, item); err != nil {
		return "", fmt.Errorf("enqueue %s: %w", typ, err)
	}
	m.logger.Info("mutation queued",
		logging.String(logging.FieldItemID, item.ID),
		logging.String(logging.FieldMutationType, typ),
	)
	return item.ID, nil
}

func (m *Manager) newItem(typ string, payload json.RawMessage) (*Item, error) {
	now := m.now()
	id, err := m.ids.New(now)
	if err != nil {
		return nil, fmt.Errorf("generate item id: %w", err)
	}
	return &Item{
		ID:          id,
		Type:        typ,
		Payload:     append(json.RawMessage(nil), payload...),
		Retries:     0,
		CreatedAt:   now,
		ScheduledAt: now,
	}, nil
}

// ListDue returns items eligible at now, in insertion order.
func (m *Manager) ListDue(ctx context.Context, now time.Time) ([]*Item, error) {
	items, err := m.backend.List(ctx)
	if err != nil {
		return nil, err
	}
	due := items[:0]
	for _, item := range items {
		if item.IsDue(now) {
			due = append(due, item)
		}
	}
	return due, nil
}

// ListAll returns every queued item in insertion order.
func (m *Manager) ListAll(ctx context.Context) ([]*Item, error) {
	return m.backend.List(ctx)
}

// Get returns one queued item.
func (m *Manager) Get(ctx context.Context, id string) (*Item, error) {
	return m.backend.Get(ctx, id)
}

// Remove deletes an item after successful delivery.
func (m *Manager) Remove(ctx context.Context, id string) error {
	return m.backend.Remove(ctx, id)
}

// Reschedule records a failed attempt.
func (m *Manager) Reschedule(ctx context.Context, id string, retries int, scheduledAt time.Time, lastErr string) error {
	at := scheduledAt.UTC().Truncate(time.Millisecond)
	return m.backend.Update(ctx, id, Patch{
		Retries:     &retries,
		ScheduledAt: &at,
		LastError:   &lastErr,
	})
}

// DeadLetter drops item from the queue and keeps it for inspection.
func (m *Manager) DeadLetter(ctx context.Context, item *Item, reason string) error {
	return m.backend.DeadLetter(ctx, item, reason, m.now())
}

// Clear empties the queue.
func (m *Manager) Clear(ctx context.Context) (int64, error) {
	return m.backend.Clear(ctx)
}

// ListDeadLetters returns dropped items.
func (m *Manager) ListDeadLetters(ctx context.Context) ([]*DeadLetter, error) {
	return m.backend.ListDeadLetters(ctx)
}

// PurgeDeadLetters deletes every dropped item.
func (m *Manager) PurgeDeadLetters(ctx context.Context) (int64, error) {
	return m.backend.PurgeDeadLetters(ctx)
}

// Requeue moves a dead letter back into the queue as a fresh item with
// retries reset. The returned id is new.
func (m *Manager) Requeue(ctx context.Context, deadLetterID string) (string, error) {
	dl, err := m.backend.GetDeadLetter(ctx, deadLetterID)
	if err != nil {
		return "", err
	}
	item, err := m.newItem(dl.Type, dl.Payload)
	if err != nil {
		return "", err
	}
	if err := m.backend.Requeue(ctx, deadLetterID, item); err != nil {
		return "", err
	}
	m.logger.Info("dead letter requeued",
		logging.String(logging.FieldItemID, item.ID),
		logging.String("previous_id", deadLetterID),
		logging.String(logging.FieldMutationType, item.Type),
	)
	return item.ID, nil
}
