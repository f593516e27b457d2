package ipc_test

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"fieldsync/internal/connectivity"
	"fieldsync/internal/daemon"
	"fieldsync/internal/ipc"
	"fieldsync/internal/logging"
	"fieldsync/internal/mutation"
	"fieldsync/internal/testsupport"
)

func TestIPCServerClient(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithoutAPI(), testsupport.WithFastBackoff(1))
	cfg.Sync.MaxRetries = 1
	store := testsupport.MustOpenStore(t, cfg)
	logger := logging.NewNop()
	prober := testsupport.NewStaticProber(false)
	monitor := connectivity.New(prober, connectivity.WithInterval(20*time.Millisecond))
	submitter := testsupport.NewFakeSubmitter()
	d, err := daemon.New(cfg, store, logger,
		daemon.WithSubmitter(submitter),
		daemon.WithMonitor(monitor),
	)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() {
		d.Close()
	})

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	socket := filepath.Join(testsupport.BaseDir(cfg), "fieldsync.sock")
	srv, err := ipc.NewServer(ctx, socket, d, logger)
	if err != nil {
		if strings.Contains(err.Error(), "operation not permitted") {
			t.Skipf("skipping IPC server test: %v", err)
		}
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()
	t.Cleanup(func() {
		srv.Close()
	})

	client, err := ipc.Dial(socket)
	if err != nil {
		t.Fatalf("ipc.Dial: %v", err)
	}
	t.Cleanup(func() {
		client.Close()
	})

	startResp, err := client.Start()
	if err != nil {
		t.Fatalf("Start RPC failed: %v", err)
	}
	if !startResp.Started {
		t.Fatalf("expected Started=true, message=%s", startResp.Message)
	}

	status, err := client.Status()
	if err != nil {
		t.Fatalf("Status RPC failed: %v", err)
	}
	if !status.Running {
		t.Fatal("expected daemon to be running")
	}
	if status.Snapshot.SyncStatus != "offline" {
		t.Fatalf("expected offline status, got %q", status.Snapshot.SyncStatus)
	}

	if _, err := client.Enqueue("delete-asset", json.RawMessage(`{}`)); err == nil {
		t.Fatal("expected unknown mutation type to be rejected")
	}

	first, err := client.Enqueue(mutation.TypeCreateWorkOrder, json.RawMessage(testsupport.WorkOrderPayload))
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	second, err := client.Enqueue(mutation.TypeSubmitCheck, json.RawMessage(testsupport.CheckPayload))
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	listResp, err := client.QueueList()
	if err != nil {
		t.Fatalf("QueueList failed: %v", err)
	}
	if len(listResp.Items) != 2 || listResp.Items[0].ID != first.ID || listResp.Items[1].ID != second.ID {
		t.Fatalf("expected items in insertion order, got %#v", listResp.Items)
	}

	syncResp, err := client.Sync(true)
	if err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	if syncResp.Skipped != "offline" {
		t.Fatalf("expected offline skip, got %#v", syncResp)
	}

	// One retry allowed, so the first failing pass drops both items.
	submitter.FailWith(testsupport.ErrUnreachable)
	prober.Set(true)
	monitor.Recheck()

	deadline := time.Now().Add(3 * time.Second)
	var dead *ipc.DeadLetterListResponse
	for time.Now().Before(deadline) {
		dead, err = client.DeadLetterList()
		if err != nil {
			t.Fatalf("DeadLetterList failed: %v", err)
		}
		if len(dead.Items) == 2 {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if len(dead.Items) != 2 {
		t.Fatalf("expected both items dead-lettered, got %d", len(dead.Items))
	}

	submitter.FailWith(nil)
	requeued, err := client.DeadLetterRequeue(dead.Items[0].ID)
	if err != nil {
		t.Fatalf("DeadLetterRequeue failed: %v", err)
	}
	if requeued.ID == "" || requeued.ID == dead.Items[0].ID {
		t.Fatalf("expected fresh id, got %q", requeued.ID)
	}
	if _, err := client.DeadLetterRequeue("missing"); err == nil {
		t.Fatal("expected error requeueing unknown dead letter")
	}

	purged, err := client.DeadLetterPurge()
	if err != nil {
		t.Fatalf("DeadLetterPurge failed: %v", err)
	}
	if purged.Removed != 1 {
		t.Fatalf("expected 1 dead letter purged, got %d", purged.Removed)
	}

	health, err := client.DatabaseHealth()
	if err != nil {
		t.Fatalf("DatabaseHealth failed: %v", err)
	}
	if !health.Exists || len(health.MissingTables) != 0 {
		t.Fatalf("unexpected database health: %#v", health)
	}

	notify, err := client.TestNotification()
	if err != nil {
		t.Fatalf("TestNotification failed: %v", err)
	}
	if notify.Sent || notify.Message == "" {
		t.Fatalf("expected disabled notification hint, got %#v", notify)
	}

	stopResp, err := client.Stop()
	if err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if !stopResp.Stopped {
		t.Fatalf("expected Stop to report stopped, got: %#v", stopResp)
	}

	if _, err := client.Enqueue(mutation.TypeSubmitCheck, json.RawMessage(testsupport.CheckPayload)); err != nil {
		t.Fatalf("Enqueue after stop failed: %v", err)
	}
	clearResp, err := client.QueueClear()
	if err != nil {
		t.Fatalf("QueueClear failed: %v", err)
	}
	if clearResp.Removed < 1 {
		t.Fatalf("expected queued items removed, got %d", clearResp.Removed)
	}
}
