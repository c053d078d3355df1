package sweep

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/strzcam/dayroll/internal/ledger"
)

// recordingProc records the order of processed items; paths listed in fail
// return an error and stay unrecorded.
type recordingProc struct {
	led   *ledger.Ledger
	fail  map[string]bool
	calls []string
}

func (p *recordingProc) Process(ctx context.Context, path string) error {
	p.calls = append(p.calls, path)
	if p.fail[path] {
		return errors.New("pipeline failed")
	}
	return p.led.Append(ledger.Entry{ArchivePath: path})
}

func TestRun_ProcessesBacklogOldestFirst(t *testing.T) {
	tmp := t.TempDir()
	led := ledger.New(tmp, zerolog.Nop())
	mkDayDir(t, tmp, "2024_01_02")
	mkDayDir(t, tmp, "2024_01_01")
	proc := &recordingProc{led: led}

	s := New(led, proc, 0, zerolog.Nop())
	if err := s.Run(context.Background(), "2024_01_03", time.Now()); err != nil {
		t.Fatalf("run: %v", err)
	}

	want := []string{
		filepath.Join(tmp, "2024_01_01"),
		filepath.Join(tmp, "2024_01_02"),
	}
	if len(proc.calls) != 2 || proc.calls[0] != want[0] || proc.calls[1] != want[1] {
		t.Fatalf("expected %v, got %v", want, proc.calls)
	}
}

func TestRun_SecondSweepIsNoOp(t *testing.T) {
	tmp := t.TempDir()
	led := ledger.New(tmp, zerolog.Nop())
	mkDayDir(t, tmp, "2024_01_01")
	proc := &recordingProc{led: led}

	s := New(led, proc, 0, zerolog.Nop())
	if err := s.Run(context.Background(), "2024_01_03", time.Now()); err != nil {
		t.Fatalf("first run: %v", err)
	}

	// Our fake processor records the folder path but never removes it; the
	// ledger entry alone must stop the second pass.
	if err := s.Run(context.Background(), "2024_01_03", time.Now()); err != nil {
		t.Fatalf("second run: %v", err)
	}
	if len(proc.calls) != 1 {
		t.Fatalf("expected recorded day to be skipped, calls = %v", proc.calls)
	}
}

func TestRun_ItemFailureDoesNotStopTheRest(t *testing.T) {
	tmp := t.TempDir()
	led := ledger.New(tmp, zerolog.Nop())
	bad := mkDayDir(t, tmp, "2024_01_01")
	mkDayDir(t, tmp, "2024_01_02")
	proc := &recordingProc{led: led, fail: map[string]bool{bad: true}}

	s := New(led, proc, 0, zerolog.Nop())
	if err := s.Run(context.Background(), "2024_01_03", time.Now()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(proc.calls) != 2 {
		t.Fatalf("expected both candidates attempted, got %v", proc.calls)
	}
	if led.KnownDates()["2024_01_01"] {
		t.Fatal("failed day must stay unrecorded for the next sweep")
	}
}

func TestRun_ExcludesTodaysOpenFolder(t *testing.T) {
	tmp := t.TempDir()
	led := ledger.New(tmp, zerolog.Nop())
	mkDayDir(t, tmp, "2024_01_03")
	proc := &recordingProc{led: led}

	s := New(led, proc, 0, zerolog.Nop())
	if err := s.Run(context.Background(), "2024_01_03", time.Now()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(proc.calls) != 0 {
		t.Fatalf("today's folder must never be swept, got %v", proc.calls)
	}
}

func mkDayDir(t *testing.T, base, day string) string {
	t.Helper()
	dir := filepath.Join(base, day)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	return dir
}
