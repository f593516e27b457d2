package preflight

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"fieldsync/internal/config"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckRemote_OK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer good-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	result := CheckRemote(context.Background(), srv.URL, "good-token", time.Second)
	if !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
}

func TestCheckRemote_BadToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	result := CheckRemote(context.Background(), srv.URL, "bad", time.Second)
	if result.Passed {
		t.Fatal("expected failure for bad token")
	}
	if !strings.Contains(result.Detail, "remote.token") {
		t.Fatalf("expected token hint, got %q", result.Detail)
	}
}

func TestCheckRemote_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	if result := CheckRemote(context.Background(), srv.URL, "", time.Second); result.Passed {
		t.Fatal("expected failure for 502")
	}
}

func TestCheckProbe(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()

	if result := CheckProbe(context.Background(), addr, time.Second); !result.Passed {
		t.Fatalf("expected reachable probe, got %s", result.Detail)
	}
	ln.Close()
	if result := CheckProbe(context.Background(), addr, time.Second); result.Passed {
		t.Fatal("expected closed listener to fail the probe")
	}
	if result := CheckProbe(context.Background(), "", time.Second); result.Passed {
		t.Fatal("expected empty address to fail")
	}
}

func TestRunAllReportsEachCheck(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.DataDir = t.TempDir()
	cfg.Paths.LogDir = filepath.Join(t.TempDir(), "missing")
	cfg.Remote.BaseURL = "http://127.0.0.1:1"
	cfg.Connectivity.ProbeAddress = "127.0.0.1:1"
	cfg.Connectivity.ProbeTimeout = 1
	cfg.Remote.RequestTimeout = 1

	results := RunAll(context.Background(), &cfg)
	if len(results) != 4 {
		t.Fatalf("expected 4 results, got %d", len(results))
	}
	if !results[0].Passed {
		t.Fatalf("expected data dir to pass: %s", results[0].Detail)
	}
	failed := Failed(results)
	if len(failed) != 3 {
		t.Fatalf("expected log dir, probe and remote to fail, got %+v", failed)
	}
}
