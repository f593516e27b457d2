package api

import (
	"context"
	"encoding/json"
	"errors"

	"fieldsync/internal/queue"
	"fieldsync/internal/syncer"
)

// QueueManager abstracts the queue operations the observer contract needs.
type QueueManager interface {
	ListAll(ctx context.Context) ([]*queue.Item, error)
	Enqueue(ctx context.Context, mutationType string, payload json.RawMessage) (string, error)
	Clear(ctx context.Context) (int64, error)
	ListDeadLetters(ctx context.Context) ([]*queue.DeadLetter, error)
	Requeue(ctx context.Context, deadLetterID string) (string, error)
	PurgeDeadLetters(ctx context.Context) (int64, error)
}

// PassRunner abstracts the orchestrator.
type PassRunner interface {
	RunPass(ctx context.Context) (syncer.PassResult, error)
	RequestPass(ctx context.Context) error
	InProgress() bool
	LastResult() (*syncer.PassResult, error)
}

// StatusReader reports the aggregate sync status.
type StatusReader interface {
	Current() syncer.Status
	Subscribe() (<-chan syncer.Transition, func())
}

// OnlineReader reports connectivity.
type OnlineReader interface {
	Online() bool
}

// SyncService implements the observer contract over the queue, orchestrator,
// and connectivity monitor.
type SyncService struct {
	queue  QueueManager
	passes PassRunner
	status StatusReader
	conn   OnlineReader
}

// NewSyncService wires the observer contract.
func NewSyncService(q QueueManager, passes PassRunner, status StatusReader, conn OnlineReader) *SyncService {
	return &SyncService{queue: q, passes: passes, status: status, conn: conn}
}

// Snapshot returns the current read model.
func (s *SyncService) Snapshot(ctx context.Context) (Snapshot, error) {
	items, err := s.RefreshQueue(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{
		IsOnline:   s.conn.Online(),
		SyncStatus: string(s.status.Current()),
		QueueItems: items,
	}, nil
}

// RefreshQueue re-reads the queue for display. It never mutates state.
func (s *SyncService) RefreshQueue(ctx context.Context) ([]QueueItem, error) {
	items, err := s.queue.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	return FromQueueItems(items), nil
}

// Sync runs a manual pass and waits for it. A pass that cannot start is
// reported through Skipped rather than as an error.
func (s *SyncService) Sync(ctx context.Context) (SyncResponse, error) {
	res, err := s.passes.RunPass(ctx)
	switch {
	case errors.Is(err, syncer.ErrOffline):
		return SyncResponse{Skipped: "offline"}, nil
	case errors.Is(err, syncer.ErrPassInProgress):
		return SyncResponse{Skipped: "pass in progress"}, nil
	case errors.Is(err, syncer.ErrPaused):
		return SyncResponse{Skipped: "paused"}, nil
	case err != nil:
		return SyncResponse{Result: FromPassResult(&res)}, err
	}
	return SyncResponse{Result: FromPassResult(&res)}, nil
}

// RequestSync starts a pass without waiting. It returns false while sync is
// paused.
func (s *SyncService) RequestSync(ctx context.Context) bool {
	return s.passes.RequestPass(ctx) == nil
}

// Enqueue queues a mutation and nudges the orchestrator so it is delivered
// promptly when online.
func (s *SyncService) Enqueue(ctx context.Context, req EnqueueRequest) (EnqueueResponse, error) {
	id, err := s.queue.Enqueue(ctx, req.Type, req.Payload)
	if err != nil {
		return EnqueueResponse{}, err
	}
	if s.conn.Online() {
		_ = s.passes.RequestPass(context.WithoutCancel(ctx))
	}
	return EnqueueResponse{ID: id}, nil
}

// ClearQueue drops every queued item without delivering it.
func (s *SyncService) ClearQueue(ctx context.Context) (int64, error) {
	return s.queue.Clear(ctx)
}

// DeadLetters lists dropped mutations.
func (s *SyncService) DeadLetters(ctx context.Context) ([]DeadLetter, error) {
	letters, err := s.queue.ListDeadLetters(ctx)
	if err != nil {
		return nil, err
	}
	return FromDeadLetters(letters), nil
}

// Requeue moves a dead letter back into the queue.
func (s *SyncService) Requeue(ctx context.Context, id string) (EnqueueResponse, error) {
	newID, err := s.queue.Requeue(ctx, id)
	if err != nil {
		return EnqueueResponse{}, err
	}
	return EnqueueResponse{ID: newID}, nil
}

// PurgeDeadLetters deletes every dead letter.
func (s *SyncService) PurgeDeadLetters(ctx context.Context) (int64, error) {
	return s.queue.PurgeDeadLetters(ctx)
}

// PassInProgress reports whether a pass is running.
func (s *SyncService) PassInProgress() bool {
	return s.passes.InProgress()
}

// LastPass returns the last completed pass summary and its error text.
func (s *SyncService) LastPass() (*PassResult, string) {
	res, err := s.passes.LastResult()
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return FromPassResult(res), msg
}

// WatchStatus returns status transitions for streaming observers.
func (s *SyncService) WatchStatus() (<-chan syncer.Transition, func()) {
	return s.status.Subscribe()
}
