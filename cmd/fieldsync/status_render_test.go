package main

import (
	"bytes"
	"testing"
)

func TestDisplayStatus(t *testing.T) {
	cases := map[string]string{
		"synced":  "Synced",
		"offline": "Offline",
		"":        "Unknown",
	}
	for in, want := range cases {
		if got := displayStatus(in); got != want {
			t.Fatalf("displayStatus(%q) = %q, want %q", in, got, want)
		}
	}
	if syncStatusKind("failed") != statusError || syncStatusKind("offline") != statusWarn {
		t.Fatal("unexpected status severity mapping")
	}
}

func TestStatusReportPlainOutput(t *testing.T) {
	var buf bytes.Buffer
	report := newStatusReport(&buf)
	report.section("Sync")
	report.line("Status", statusWarn, "Offline")
	report.section("Queue")
	report.line("Queued", statusInfo, "")

	want := "== Sync ==\n" +
		"----------\n" +
		"  Status:              [WARN] Offline\n" +
		"\n" +
		"== Queue ==\n" +
		"-----------\n" +
		"  Queued:              [INFO]\n"
	if buf.String() != want {
		t.Fatalf("unexpected report:\n%q\nwant:\n%q", buf.String(), want)
	}
}
