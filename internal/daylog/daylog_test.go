package daylog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWriter_DropsWritesBeforeFirstRoll(t *testing.T) {
	w := New(t.TempDir())
	n, err := w.Write([]byte("early"))
	if err != nil || n != 5 {
		t.Fatalf("expected silent drop, got n=%d err=%v", n, err)
	}
}

func TestWriter_RollSwitchesFiles(t *testing.T) {
	dir := t.TempDir()
	w := New(dir)
	t.Cleanup(func() { w.Close() })

	if err := w.Roll("2024_01_02"); err != nil {
		t.Fatalf("roll: %v", err)
	}
	if _, err := w.Write([]byte("day one\n")); err != nil {
		t.Fatalf("write: %v", err)
	}

	if err := w.Roll("2024_01_03"); err != nil {
		t.Fatalf("roll: %v", err)
	}
	if _, err := w.Write([]byte("day two\n")); err != nil {
		t.Fatalf("write: %v", err)
	}

	first := readFile(t, filepath.Join(dir, "log_2024_01_02.log"))
	second := readFile(t, filepath.Join(dir, "log_2024_01_03.log"))
	if !strings.Contains(first, "day one") || strings.Contains(first, "day two") {
		t.Fatalf("first day log wrong: %q", first)
	}
	if !strings.Contains(second, "day two") || strings.Contains(second, "day one") {
		t.Fatalf("second day log wrong: %q", second)
	}
}

func TestWriter_RollSameDayAppends(t *testing.T) {
	dir := t.TempDir()
	w := New(dir)
	t.Cleanup(func() { w.Close() })

	if err := w.Roll("2024_01_02"); err != nil {
		t.Fatal(err)
	}
	w.Write([]byte("a\n"))
	if err := w.Roll("2024_01_02"); err != nil {
		t.Fatal(err)
	}
	w.Write([]byte("b\n"))

	got := readFile(t, w.PathFor("2024_01_02"))
	if got != "a\nb\n" {
		t.Fatalf("expected appended content, got %q", got)
	}
}

func TestWriter_CloseDropsFurtherWrites(t *testing.T) {
	dir := t.TempDir()
	w := New(dir)
	if err := w.Roll("2024_01_02"); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := w.Write([]byte("late\n")); err != nil {
		t.Fatalf("write after close must not fail: %v", err)
	}
	if got := readFile(t, w.PathFor("2024_01_02")); got != "" {
		t.Fatalf("expected empty file, got %q", got)
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return string(b)
}
