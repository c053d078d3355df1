package cliconfig

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestWatcher_AppliesTunablesOnRewrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	writeConfig(t, path, `capture_delay = "60s"`)

	applied := make(chan Tunables, 4)
	w := NewWatcher(path, func(tn Tunables) { applied <- tn }, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	// Give the watch a moment to attach before replacing the file.
	time.Sleep(100 * time.Millisecond)
	writeConfig(t, path, `
capture_delay = "30s"
max_archive_mb = 10
retention_days = 3
`)

	select {
	case tn := <-applied:
		if tn.CaptureDelay != 30*time.Second {
			t.Fatalf("unexpected capture delay %v", tn.CaptureDelay)
		}
		if tn.MaxArchiveBytes != 10<<20 {
			t.Fatalf("unexpected max archive bytes %d", tn.MaxArchiveBytes)
		}
		if tn.RetentionDays != 3 {
			t.Fatalf("unexpected retention days %d", tn.RetentionDays)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("change never applied")
	}
}

func TestWatcher_IgnoresOtherFilesInDir(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	writeConfig(t, path, `capture_delay = "60s"`)

	applied := make(chan Tunables, 4)
	w := NewWatcher(path, func(tn Tunables) { applied <- tn }, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	time.Sleep(100 * time.Millisecond)
	writeConfig(t, filepath.Join(dir, "other.toml"), `capture_delay = "1s"`)

	select {
	case tn := <-applied:
		t.Fatalf("unrelated file triggered a reload: %+v", tn)
	case <-time.After(500 * time.Millisecond):
	}
}

func TestWatcher_BadFileKeepsCurrentSettings(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	writeConfig(t, path, `capture_delay = "60s"`)

	applied := make(chan Tunables, 4)
	w := NewWatcher(path, func(tn Tunables) { applied <- tn }, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	time.Sleep(100 * time.Millisecond)
	writeConfig(t, path, `this is not toml = = =`)

	select {
	case tn := <-applied:
		t.Fatalf("broken config must not be applied: %+v", tn)
	case <-time.After(500 * time.Millisecond):
	}
}

func writeConfig(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}
