package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"fieldsync/internal/config"
)

func TestLoadDefaultConfigExpandsPathsAndDerivesProbe(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("FIELDSYNC_REMOTE_TOKEN", "secret-token")
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantData := filepath.Join(tempHome, ".local", "share", "fieldsync")
	if cfg.Paths.DataDir != wantData {
		t.Fatalf("unexpected data dir: got %q want %q", cfg.Paths.DataDir, wantData)
	}
	if cfg.Paths.SocketPath != filepath.Join(wantData, "fieldsync.sock") {
		t.Fatalf("unexpected socket path: %q", cfg.Paths.SocketPath)
	}
	if cfg.QueueDBPath() != filepath.Join(wantData, "queue.db") {
		t.Fatalf("unexpected queue db path: %q", cfg.QueueDBPath())
	}
	if cfg.Remote.Token != "secret-token" {
		t.Fatalf("expected token from env, got %q", cfg.Remote.Token)
	}
	if cfg.Connectivity.ProbeAddress != "127.0.0.1:8080" {
		t.Fatalf("expected probe address derived from base url, got %q", cfg.Connectivity.ProbeAddress)
	}
	if cfg.SyncInterval() != 30*time.Second {
		t.Fatalf("expected 30s interval, got %s", cfg.SyncInterval())
	}
	if cfg.Sync.MaxRetries != 5 || cfg.Sync.BackoffBase != 2 {
		t.Fatalf("unexpected retry defaults: %+v", cfg.Sync)
	}
	if cfg.SyncedDisplay() != 2*time.Second || cfg.FailedDisplay() != 3*time.Second {
		t.Fatalf("unexpected display durations: %s %s", cfg.SyncedDisplay(), cfg.FailedDisplay())
	}
	if !cfg.Sync.DeadLetter {
		t.Fatal("expected dead letter enabled by default")
	}
}

func TestLoadCustomConfigFile(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	payload := map[string]any{
		"paths": map[string]any{
			"data_dir": "~/queue-data",
			"api_bind": "",
		},
		"remote": map[string]any{
			"base_url": "https://maint.example.com/",
			"token":    "  abc  ",
		},
		"sync": map[string]any{
			"interval":    10,
			"max_retries": 3,
		},
		"logging": map[string]any{
			"format": "JSON",
			"level":  "Debug",
		},
	}
	data, err := toml.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("expected config %q to exist, got %q exists=%v", path, resolved, exists)
	}
	if cfg.Paths.DataDir != filepath.Join(tempHome, "queue-data") {
		t.Fatalf("unexpected data dir: %q", cfg.Paths.DataDir)
	}
	if cfg.Paths.LogDir != filepath.Join(tempHome, ".local", "share", "fieldsync", "logs") {
		t.Fatalf("unexpected log dir: %q", cfg.Paths.LogDir)
	}
	if cfg.Paths.APIBind != "" {
		t.Fatalf("expected api bind disabled, got %q", cfg.Paths.APIBind)
	}
	if cfg.Remote.BaseURL != "https://maint.example.com" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.Remote.BaseURL)
	}
	if cfg.Remote.Token != "abc" {
		t.Fatalf("expected token trimmed, got %q", cfg.Remote.Token)
	}
	if cfg.Connectivity.ProbeAddress != "maint.example.com:443" {
		t.Fatalf("unexpected probe address: %q", cfg.Connectivity.ProbeAddress)
	}
	if cfg.Sync.Interval != 10 || cfg.Sync.MaxRetries != 3 {
		t.Fatalf("unexpected sync section: %+v", cfg.Sync)
	}
	if cfg.Logging.Format != "json" || cfg.Logging.Level != "debug" {
		t.Fatalf("expected logging normalized, got %+v", cfg.Logging)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"scheme", func(c *config.Config) { c.Remote.BaseURL = "ftp://example.com" }, "http or https"},
		{"interval", func(c *config.Config) { c.Sync.Interval = 0 }, "sync.interval"},
		{"retries", func(c *config.Config) { c.Sync.MaxRetries = 0 }, "sync.max_retries"},
		{"backoff", func(c *config.Config) { c.Sync.BackoffBase = 0 }, "sync.backoff_base"},
		{"submit timeout", func(c *config.Config) { c.Sync.SubmitTimeout = -1 }, "sync.submit_timeout"},
		{"probe", func(c *config.Config) { c.Connectivity.ProbeAddress = "nohost" }, "probe_address"},
		{"log format", func(c *config.Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"api bind", func(c *config.Config) { c.Paths.APIBind = "7490" }, "api_bind"},
		{"ntfy topic", func(c *config.Config) { c.Notifications.NtfyTopic = "fieldsync-alerts" }, "notifications.ntfy_topic"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Paths.DataDir = t.TempDir()
			cfg.Connectivity.ProbeAddress = "127.0.0.1:8080"
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatalf("expected validation error containing %q", tc.want)
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}

func TestCreateSampleIsLoadable(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load sample: %v", err)
	}
	if !exists {
		t.Fatal("expected sample config to exist")
	}
	if cfg.Sync.MaxRetries != 5 {
		t.Fatalf("unexpected max retries from sample: %d", cfg.Sync.MaxRetries)
	}
	if cfg.Notifications.NtfyTopic != "" || cfg.NotifyTimeout() != 10*time.Second {
		t.Fatalf("unexpected notifications from sample: %+v", cfg.Notifications)
	}
}
