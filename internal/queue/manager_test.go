package queue_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"fieldsync/internal/mutation"
	"fieldsync/internal/queue"
	"fieldsync/internal/testsupport"
)

var epoch = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

func newManager(t *testing.T) (*queue.Manager, *queue.Store, *testsupport.FakeClock) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	clk := testsupport.NewFakeClock(epoch)
	return queue.NewManager(store, queue.WithClock(clk)), store, clk
}

func TestEnqueueBuildsFreshItem(t *testing.T) {
	mgr, store, _ := newManager(t)
	ctx := context.Background()

	id := testsupport.MustEnqueue(t, mgr, mutation.TypeCreateWorkOrder, testsupport.WorkOrderPayload)
	item, err := store.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if item.Retries != 0 {
		t.Fatalf("expected retries 0, got %d", item.Retries)
	}
	if !item.CreatedAt.Equal(epoch) || !item.ScheduledAt.Equal(epoch) {
		t.Fatalf("expected createdAt = scheduledAt = now, got %s / %s", item.CreatedAt, item.ScheduledAt)
	}
	if string(item.Payload) != testsupport.WorkOrderPayload {
		t.Fatalf("payload altered: %s", item.Payload)
	}
}

func TestEnqueueIDsUniqueWithinSameMillisecond(t *testing.T) {
	mgr, _, _ := newManager(t)

	seen := make(map[string]struct{})
	var prev string
	for i := 0; i < 50; i++ {
		id := testsupport.MustEnqueue(t, mgr, mutation.TypeSubmitCheck, testsupport.CheckPayload)
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate id %s on iteration %d", id, i)
		}
		if prev != "" && id <= prev {
			t.Fatalf("ids not increasing: %s after %s", id, prev)
		}
		seen[id] = struct{}{}
		prev = id
	}
}

func TestEnqueueRejectsInvalidPayloadWithoutPersisting(t *testing.T) {
	mgr, store, _ := newManager(t)
	ctx := context.Background()

	cases := []struct {
		typ     string
		payload string
	}{
		{mutation.TypeCreateWorkOrder, `{"assetId":"pump-7"}`},
		{mutation.TypeSubmitCheck, `not json`},
		{"delete-asset", `{}`},
	}
	for _, tc := range cases {
		_, err := mgr.Enqueue(ctx, tc.typ, json.RawMessage(tc.payload))
		if !errors.Is(err, mutation.ErrInvalidPayload) {
			t.Fatalf("%s %s: expected ErrInvalidPayload, got %v", tc.typ, tc.payload, err)
		}
	}
	if count, _ := store.Count(ctx); count != 0 {
		t.Fatalf("expected nothing persisted, found %d", count)
	}
}

type failingBackend struct {
	*queue.Store
}

func (failingBackend) Persist(context.Context, *queue.Item) error {
	return &queue.StorageError{Op: "persist", Err: errors.New("disk full")}
}

func TestEnqueuePropagatesStorageErrors(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	mgr := queue.NewManager(failingBackend{store})

	_, err := mgr.Enqueue(context.Background(), mutation.TypeCreateWorkOrder, json.RawMessage(testsupport.WorkOrderPayload))
	if !errors.Is(err, queue.ErrStorage) {
		t.Fatalf("expected storage error, got %v", err)
	}
}

func TestListDueSelectsEligibleItems(t *testing.T) {
	mgr, _, clk := newManager(t)
	ctx := context.Background()

	fresh := testsupport.MustEnqueue(t, mgr, mutation.TypeCreateWorkOrder, testsupport.WorkOrderPayload)
	waiting := testsupport.MustEnqueue(t, mgr, mutation.TypeCreateWorkOrder, testsupport.WorkOrderPayload)
	ready := testsupport.MustEnqueue(t, mgr, mutation.TypeSubmitCheck, testsupport.CheckPayload)

	if err := mgr.Reschedule(ctx, waiting, 1, epoch.Add(10*time.Second), "503"); err != nil {
		t.Fatalf("Reschedule: %v", err)
	}
	if err := mgr.Reschedule(ctx, ready, 2, epoch.Add(2*time.Second), "503"); err != nil {
		t.Fatalf("Reschedule: %v", err)
	}
	clk.Advance(5 * time.Second)

	due, err := mgr.ListDue(ctx, clk.Now())
	if err != nil {
		t.Fatalf("ListDue: %v", err)
	}
	if len(due) != 2 || due[0].ID != fresh || due[1].ID != ready {
		ids := make([]string, 0, len(due))
		for _, it := range due {
			ids = append(ids, it.ID)
		}
		t.Fatalf("expected [%s %s], got %v", fresh, ready, ids)
	}

	all, err := mgr.ListAll(ctx)
	if err != nil || len(all) != 3 {
		t.Fatalf("ListAll = %d items, %v", len(all), err)
	}
}

func TestRequeueRestoresDeadLetterWithFreshID(t *testing.T) {
	mgr, store, _ := newManager(t)
	ctx := context.Background()

	id := testsupport.MustEnqueue(t, mgr, mutation.TypeSubmitCheck, testsupport.CheckPayload)
	item, err := store.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	item.Retries = 5
	if err := mgr.DeadLetter(ctx, item, "exhausted"); err != nil {
		t.Fatalf("DeadLetter: %v", err)
	}

	newID, err := mgr.Requeue(ctx, id)
	if err != nil {
		t.Fatalf("Requeue: %v", err)
	}
	if newID == id {
		t.Fatal("expected a fresh id for requeued item")
	}
	requeued, err := store.Get(ctx, newID)
	if err != nil {
		t.Fatalf("Get requeued: %v", err)
	}
	if requeued.Retries != 0 || string(requeued.Payload) != testsupport.CheckPayload {
		t.Fatalf("unexpected requeued item: %+v", requeued)
	}
	letters, _ := mgr.ListDeadLetters(ctx)
	if len(letters) != 0 {
		t.Fatalf("expected dead letter removed, got %d", len(letters))
	}
}
