package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestConfigInitValidateAndShow(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"config", "validate"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")

	out, _, err = runCLI(t, []string{"config", "validate", "--checks"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("config validate --checks: %v", err)
	}
	requireContains(t, out, "== Preflight ==")
	requireContains(t, out, "Data directory:")
	requireContains(t, out, "Remote API:")

	target := filepath.Join(t.TempDir(), "config.toml")
	out, _, err = runCLI(t, []string{"config", "init", "--path", target}, env.socketPath, "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}
	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, env.socketPath, ""); err == nil {
		t.Fatal("expected init to refuse overwriting")
	}

	out, _, err = runCLI(t, []string{"config", "show"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	requireContains(t, out, "base_url")
	if strings.Contains(out, "remote-secret") {
		t.Fatalf("expected token masked:\n%s", out)
	}
}

func TestTypesCommand(t *testing.T) {
	out, _, err := runCLI(t, []string{"types"}, "", "")
	if err != nil {
		t.Fatalf("types: %v", err)
	}
	requireContains(t, out, "create-work-order")
	requireContains(t, out, "submit-check")
}
