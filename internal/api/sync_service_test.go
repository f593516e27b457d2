package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"testing"
	"time"

	"fieldsync/internal/api"
	"fieldsync/internal/connectivity"
	"fieldsync/internal/mutation"
	"fieldsync/internal/queue"
	"fieldsync/internal/syncer"
	"fieldsync/internal/testsupport"
)

type fixture struct {
	svc       *api.SyncService
	manager   *queue.Manager
	monitor   *connectivity.Monitor
	submitter *testsupport.FakeSubmitter
	orch      *syncer.Orchestrator
}

func newFixture(t *testing.T, online bool) *fixture {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	mgr := queue.NewManager(store)
	mon := connectivity.New(nil, connectivity.WithInterval(0))
	mon.Report(online)
	status := syncer.NewStatusMachine(mon.Online(), time.Hour, time.Hour, mon.Online)
	t.Cleanup(status.Close)
	sub := testsupport.NewFakeSubmitter()
	orch := syncer.New(mgr, sub, mon, status, syncer.DefaultOptions())
	return &fixture{
		svc:       api.NewSyncService(mgr, orch, status, mon),
		manager:   mgr,
		monitor:   mon,
		submitter: sub,
		orch:      orch,
	}
}

func TestSnapshotReflectsStateAndQueue(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	id := testsupport.MustEnqueue(t, f.manager, mutation.TypeCreateWorkOrder, testsupport.WorkOrderPayload)

	snap, err := f.svc.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if snap.IsOnline {
		t.Fatal("expected offline snapshot")
	}
	if snap.SyncStatus != string(syncer.StatusOffline) {
		t.Fatalf("unexpected status %q", snap.SyncStatus)
	}
	if len(snap.QueueItems) != 1 || snap.QueueItems[0].ID != id {
		t.Fatalf("unexpected queue items: %+v", snap.QueueItems)
	}
	if snap.QueueItems[0].CreatedAt == "" || snap.QueueItems[0].ScheduledAt == "" {
		t.Fatal("expected formatted timestamps")
	}
	if string(snap.QueueItems[0].Payload) != testsupport.WorkOrderPayload {
		t.Fatalf("payload altered: %s", snap.QueueItems[0].Payload)
	}
}

func TestRefreshQueueIsIdempotent(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	testsupport.MustEnqueue(t, f.manager, mutation.TypeCreateWorkOrder, testsupport.WorkOrderPayload)
	testsupport.MustEnqueue(t, f.manager, mutation.TypeSubmitCheck, testsupport.CheckPayload)

	first, err := f.svc.RefreshQueue(ctx)
	if err != nil {
		t.Fatalf("RefreshQueue: %v", err)
	}
	second, err := f.svc.RefreshQueue(ctx)
	if err != nil {
		t.Fatalf("RefreshQueue: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("refresh not idempotent:\n%+v\n%+v", first, second)
	}
	if len(first) != 2 {
		t.Fatalf("expected 2 items, got %d", len(first))
	}
}

func TestSyncOfflineIsSkipped(t *testing.T) {
	f := newFixture(t, false)
	testsupport.MustEnqueue(t, f.manager, mutation.TypeCreateWorkOrder, testsupport.WorkOrderPayload)

	resp, err := f.svc.Sync(context.Background())
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if resp.Skipped != "offline" || resp.Result != nil {
		t.Fatalf("unexpected response %+v", resp)
	}
	if f.submitter.CallCount() != 0 {
		t.Fatalf("expected no submissions, got %d", f.submitter.CallCount())
	}
}

func TestSyncOnlineDeliversQueue(t *testing.T) {
	f := newFixture(t, true)
	testsupport.MustEnqueue(t, f.manager, mutation.TypeCreateWorkOrder, testsupport.WorkOrderPayload)

	resp, err := f.svc.Sync(context.Background())
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if resp.Result == nil || resp.Result.Succeeded != 1 {
		t.Fatalf("unexpected result %+v", resp.Result)
	}
	items, _ := f.svc.RefreshQueue(context.Background())
	if len(items) != 0 {
		t.Fatalf("expected queue drained, got %d", len(items))
	}
	last, lastErr := f.svc.LastPass()
	if last == nil || last.PassID != resp.Result.PassID || lastErr != "" {
		t.Fatalf("unexpected last pass %+v %q", last, lastErr)
	}
}

func TestEnqueueValidatesAndNudgesSync(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	_, err := f.svc.Enqueue(ctx, api.EnqueueRequest{Type: mutation.TypeCreateWorkOrder, Payload: json.RawMessage(`{}`)})
	if !errors.Is(err, mutation.ErrInvalidPayload) {
		t.Fatalf("expected invalid payload, got %v", err)
	}

	resp, err := f.svc.Enqueue(ctx, api.EnqueueRequest{
		Type:    mutation.TypeSubmitCheck,
		Payload: json.RawMessage(testsupport.CheckPayload),
	})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if resp.ID == "" {
		t.Fatal("expected id")
	}

	deadline := time.Now().Add(2 * time.Second)
	for f.submitter.CallCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("expected enqueue to trigger a pass")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestDeadLetterLifecycle(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	id := testsupport.MustEnqueue(t, f.manager, mutation.TypeSubmitCheck, testsupport.CheckPayload)
	if err := f.manager.Reschedule(ctx, id, 4, time.Now().Add(-time.Second), ""); err != nil {
		t.Fatalf("Reschedule: %v", err)
	}
	f.submitter.FailWith(errors.New("422 unprocessable"))
	if _, err := f.svc.Sync(ctx); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	letters, err := f.svc.DeadLetters(ctx)
	if err != nil {
		t.Fatalf("DeadLetters: %v", err)
	}
	if len(letters) != 1 || letters[0].ID != id || letters[0].FailedAt == "" {
		t.Fatalf("unexpected dead letters %+v", letters)
	}

	requeued, err := f.svc.Requeue(ctx, id)
	if err != nil {
		t.Fatalf("Requeue: %v", err)
	}
	items, _ := f.svc.RefreshQueue(ctx)
	if len(items) != 1 || items[0].ID != requeued.ID || items[0].Retries != 0 {
		t.Fatalf("unexpected queue after requeue %+v", items)
	}

	if _, err := f.svc.Requeue(ctx, id); !errors.Is(err, queue.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second requeue, got %v", err)
	}
	if n, err := f.svc.PurgeDeadLetters(ctx); err != nil || n != 0 {
		t.Fatalf("PurgeDeadLetters = %d, %v", n, err)
	}
	if n, err := f.svc.ClearQueue(ctx); err != nil || n != 1 {
		t.Fatalf("ClearQueue = %d, %v", n, err)
	}
}
