package main

import (
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"fieldsync/internal/api"
	"fieldsync/internal/mutation"
	"fieldsync/internal/testsupport"
)

func TestQueueAddListAndClear(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"queue", "add", mutation.TypeCreateWorkOrder, testsupport.WorkOrderPayload}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("queue add: %v", err)
	}
	requireContains(t, out, "Queued ")

	out, _, err = runCLIWithInput(t, []string{"queue", "add", mutation.TypeSubmitCheck}, env.socketPath, env.configPath, testsupport.CheckPayload)
	if err != nil {
		t.Fatalf("queue add from stdin: %v", err)
	}
	requireContains(t, out, "Queued ")

	out, _, err = runCLI(t, []string{"queue", "list"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("queue list: %v", err)
	}
	requireContains(t, out, mutation.TypeCreateWorkOrder)
	requireContains(t, out, mutation.TypeSubmitCheck)
	if strings.Index(out, mutation.TypeCreateWorkOrder) > strings.Index(out, mutation.TypeSubmitCheck) {
		t.Fatalf("expected insertion order in listing:\n%s", out)
	}

	out, _, err = runCLI(t, []string{"queue", "list", "--json"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("queue list --json: %v", err)
	}
	var items []api.QueueItem
	if err := json.Unmarshal([]byte(out), &items); err != nil {
		t.Fatalf("decode json: %v\n%s", err, out)
	}
	if len(items) != 2 || items[0].Retries != 0 {
		t.Fatalf("unexpected items: %+v", items)
	}

	out, _, err = runCLI(t, []string{"queue", "clear"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("queue clear: %v", err)
	}
	requireContains(t, out, "Removed 2 queued mutations")

	out, _, err = runCLI(t, []string{"queue", "list"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("queue list: %v", err)
	}
	requireContains(t, out, "Queue is empty")
}

func TestQueueAddRejectsInvalidPayload(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := runCLI(t, []string{"queue", "add", mutation.TypeCreateWorkOrder, `{"assetId":"a"}`}, env.socketPath, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "invalid mutation payload") {
		t.Fatalf("expected validation error, got %v", err)
	}

	_, _, err = runCLI(t, []string{"queue", "add", mutation.TypeCreateWorkOrder, `{not json`}, env.socketPath, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "not valid JSON") {
		t.Fatalf("expected local JSON error, got %v", err)
	}
}

func TestSyncOfflineThenOnline(t *testing.T) {
	env := setupCLITestEnv(t)

	if _, _, err := runCLI(t, []string{"queue", "add", mutation.TypeSubmitCheck, testsupport.CheckPayload}, env.socketPath, env.configPath); err != nil {
		t.Fatalf("queue add: %v", err)
	}

	out, _, err := runCLI(t, []string{"sync"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	requireContains(t, out, "Sync skipped: offline")

	out, _, err = runCLI(t, []string{"status"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "Offline")
	requireContains(t, out, "Queued:")

	env.prober.Set(true)
	env.monitor.Recheck()
	waitFor(t, 3*time.Second, func() bool {
		out, _, err := runCLI(t, []string{"status", "--json"}, env.socketPath, env.configPath)
		if err != nil {
			return false
		}
		var status api.DaemonStatus
		if err := json.Unmarshal([]byte(out), &status); err != nil {
			return false
		}
		return status.Snapshot.IsOnline && len(status.Snapshot.QueueItems) == 0
	})
	if env.submitter.CallCount() != 1 {
		t.Fatalf("expected one delivery, got %d", env.submitter.CallCount())
	}
}

func TestDeadLetterCommands(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"dead", "list"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("dead list: %v", err)
	}
	requireContains(t, out, "No dead letters")

	_, _, err = runCLI(t, []string{"dead", "requeue", "missing"}, env.socketPath, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "requeue missing") {
		t.Fatalf("expected requeue error, got %v", err)
	}

	out, _, err = runCLI(t, []string{"dead", "purge"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("dead purge: %v", err)
	}
	requireContains(t, out, "Purged 0 dead letters")
}

func TestCommandsReportMissingDaemon(t *testing.T) {
	socket := filepath.Join(t.TempDir(), "absent.sock")
	cfg := testsupport.NewConfig(t)
	configPath := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	writeTestConfig(t, configPath, cfg)

	_, _, err := runCLI(t, []string{"queue", "list"}, socket, configPath)
	if err == nil || !strings.Contains(err.Error(), "fieldsync daemon") {
		t.Fatalf("expected hint to start the daemon, got %v", err)
	}
}

func TestReadPayload(t *testing.T) {
	payload, err := readPayload(strings.NewReader("  {\"a\":1}\n"), []string{"t"}, "")
	if err != nil {
		t.Fatalf("readPayload stdin: %v", err)
	}
	if string(payload) != `{"a":1}` {
		t.Fatalf("unexpected payload %q", payload)
	}
	if _, err := readPayload(nil, []string{"t", "{}"}, "x.json"); err == nil {
		t.Fatal("expected error when both argument and file are given")
	}
	if _, err := readPayload(strings.NewReader(""), []string{"t"}, ""); err == nil {
		t.Fatal("expected error for empty payload")
	}
}

func TestTestNotifyReportsDisabled(t *testing.T) {
	env := setupCLITestEnv(t)
	out, _, err := runCLI(t, []string{"test-notify"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("test-notify: %v", err)
	}
	requireContains(t, out, "Notifications disabled")
}
