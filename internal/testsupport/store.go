package testsupport

import (
	"context"
	"encoding/json"
	"testing"

	"fieldsync/internal/config"
	"fieldsync/internal/queue"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// MustEnqueue queues a mutation through mgr and returns its id.
func MustEnqueue(t testing.TB, mgr *queue.Manager, mutationType, payload string) string {
	t.Helper()

	id, err := mgr.Enqueue(context.Background(), mutationType, json.RawMessage(payload))
	if err != nil {
		t.Fatalf("Enqueue %s: %v", mutationType, err)
	}
	return id
}

// WorkOrderPayload is a valid create-work-order payload.
const WorkOrderPayload = `{"assetId":"pump-7","title":"Leaking seal","priority":"high"}`

// CheckPayload is a valid submit-check payload.
const CheckPayload = `{"scheduleId":"pm-1","assetId":"pump-7","completedAt":"2026-01-02T10:00:00Z","results":[{"itemId":"c1","passed":true}]}`
