package reminder

import (
	"strings"
	"testing"
	"time"

	"todobot/internal/storage"
	logx "todobot/pkg/logx"
)

func TestFormatDigest(t *testing.T) {
	t.Parallel()
	due := time.Date(2026, 9, 1, 0, 0, 0, 0, time.Local)
	tasks := []storage.Task{
		{ID: 1, UserID: 1, Text: "buy milk"},
		{ID: 2, UserID: 1, Text: "done already", Done: true},
		{ID: 3, UserID: 1, Text: "file report", Deadline: &due},
	}

	got := formatDigest(tasks)
	if !strings.Contains(got, "2 open task(s)") {
		t.Fatalf("digest header wrong: %q", got)
	}
	if !strings.Contains(got, "1. buy milk") || !strings.Contains(got, "3. file report (due 2026-09-01)") {
		t.Fatalf("digest body wrong: %q", got)
	}
	if strings.Contains(got, "done already") {
		t.Fatalf("digest includes a done task: %q", got)
	}
}

func TestFormatDigestAllDone(t *testing.T) {
	t.Parallel()
	tasks := []storage.Task{{ID: 1, UserID: 1, Text: "x", Done: true}}
	if got := formatDigest(tasks); got != "" {
		t.Fatalf("digest for all-done user = %q, want empty", got)
	}
}

func TestNewDigestValidatesSpec(t *testing.T) {
	t.Parallel()
	st := &fakeStore{}
	n := &fakeNotifier{}

	if _, err := NewDigest(DigestConfig{Enabled: true, Spec: "not a cron"}, st, n, logx.Nop()); err == nil {
		t.Fatal("expected error for invalid cron spec")
	}
	if _, err := NewDigest(DigestConfig{Enabled: true, Timezone: "Mars/Olympus"}, st, n, logx.Nop()); err == nil {
		t.Fatal("expected error for invalid timezone")
	}
	if _, err := NewDigest(DigestConfig{Enabled: true}, st, n, logx.Nop()); err != nil {
		t.Fatalf("defaults rejected: %v", err)
	}
}
