package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/strzcam/dayroll/internal/archive"
	"github.com/strzcam/dayroll/internal/ledger"
)

type sentMail struct {
	files   []string
	subject string
}

// fakeNotifier records sends and can be told to fail from call N on.
type fakeNotifier struct {
	sent    []sentMail
	failAt  int // 1-based call index that fails, 0 never
	sendErr error
}

func (f *fakeNotifier) Send(ctx context.Context, filePaths []string, subject, body string) error {
	call := len(f.sent) + 1
	if f.failAt > 0 && call >= f.failAt {
		return f.sendErr
	}
	// Attachments must still exist at send time.
	for _, p := range filePaths {
		if _, err := os.Stat(p); err != nil {
			return fmt.Errorf("attachment missing: %s", p)
		}
	}
	f.sent = append(f.sent, sentMail{files: append([]string(nil), filePaths...), subject: subject})
	return nil
}

func newTestRunner(t *testing.T, notifier Notifier, maxBytes int64) (*Runner, *ledger.Ledger, string, string) {
	t.Helper()
	tmp := t.TempDir()
	saveDir := filepath.Join(tmp, "images")
	logsDir := filepath.Join(tmp, "logs")
	for _, d := range []string{saveDir, logsDir} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			t.Fatal(err)
		}
	}
	led := ledger.New(saveDir, zerolog.Nop())
	r := NewRunner(Config{SaveDir: saveDir, LogsDir: logsDir, MaxArchiveBytes: maxBytes}, notifier, led, zerolog.Nop())
	return r, led, saveDir, logsDir
}

func seedDay(t *testing.T, saveDir, logsDir, day string, frames int) string {
	t.Helper()
	folder := filepath.Join(saveDir, day)
	if err := os.MkdirAll(folder, 0o755); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < frames; i++ {
		name := fmt.Sprintf("10_00_%02d.jpg", i)
		if err := os.WriteFile(filepath.Join(folder, name), bytes.Repeat([]byte{byte(i)}, 64), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(filepath.Join(logsDir, "log_"+day+".log"), []byte("log\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	return folder
}

func TestProcess_ArchivesSendsAndRecords(t *testing.T) {
	notifier := &fakeNotifier{}
	r, led, saveDir, logsDir := newTestRunner(t, notifier, 0)
	folder := seedDay(t, saveDir, logsDir, "2024_01_02", 3)

	if err := r.Process(context.Background(), folder); err != nil {
		t.Fatalf("process: %v", err)
	}

	archivePath := filepath.Join(saveDir, "2024_01_02.zip")
	if !pathExists(archivePath) {
		t.Fatal("expected archive on disk after a single send")
	}
	if pathExists(folder) {
		t.Fatal("expected day folder to be removed")
	}

	if len(notifier.sent) != 1 {
		t.Fatalf("expected 1 mail, got %d", len(notifier.sent))
	}
	m := notifier.sent[0]
	if len(m.files) != 2 || m.files[0] != archivePath {
		t.Fatalf("unexpected attachments %v", m.files)
	}
	if !strings.Contains(m.subject, "3 Images Archived") {
		t.Fatalf("unexpected subject %q", m.subject)
	}

	if !led.KnownDates()["2024_01_02"] {
		t.Fatal("expected day recorded in ledger")
	}
}

func TestProcess_MissingLogSendsWithoutIt(t *testing.T) {
	notifier := &fakeNotifier{}
	r, _, saveDir, logsDir := newTestRunner(t, notifier, 0)
	folder := seedDay(t, saveDir, logsDir, "2024_01_02", 1)
	if err := os.Remove(filepath.Join(logsDir, "log_2024_01_02.log")); err != nil {
		t.Fatal(err)
	}

	if err := r.Process(context.Background(), folder); err != nil {
		t.Fatalf("process: %v", err)
	}
	if len(notifier.sent) != 1 || len(notifier.sent[0].files) != 1 {
		t.Fatalf("expected one attachment, got %+v", notifier.sent)
	}
}

func TestProcess_SendFailureLeavesDayUnrecorded(t *testing.T) {
	notifier := &fakeNotifier{failAt: 1, sendErr: errors.New("smtp down")}
	r, led, saveDir, logsDir := newTestRunner(t, notifier, 0)
	folder := seedDay(t, saveDir, logsDir, "2024_01_02", 1)

	err := r.Process(context.Background(), folder)
	if !errors.Is(err, ErrSend) {
		t.Fatalf("expected ErrSend, got %v", err)
	}
	if len(led.KnownDates()) != 0 {
		t.Fatal("failed day must not be recorded")
	}
	// The archive survives so the next sweep can resend without recompressing.
	if !pathExists(filepath.Join(saveDir, "2024_01_02.zip")) {
		t.Fatal("expected archive retained after send failure")
	}
}

func TestProcess_RecoversFromExistingArchive(t *testing.T) {
	notifier := &fakeNotifier{}
	r, led, saveDir, logsDir := newTestRunner(t, notifier, 0)

	// Build a real zip, then hand Process the zip path, as the sweep does
	// when a previous run died after archiving.
	folder := seedDay(t, saveDir, logsDir, "2024_01_02", 2)
	if _, err := archive.Archive(folder, filepath.Join(saveDir, "2024_01_02.zip"), zerolog.Nop()); err != nil {
		t.Fatal(err)
	}

	if err := r.Process(context.Background(), filepath.Join(saveDir, "2024_01_02.zip")); err != nil {
		t.Fatalf("process: %v", err)
	}
	if len(notifier.sent) != 1 {
		t.Fatalf("expected 1 mail, got %d", len(notifier.sent))
	}
	if !strings.Contains(notifier.sent[0].subject, "2 Images Archived") {
		t.Fatalf("summary not rebuilt from zip: %q", notifier.sent[0].subject)
	}
	if !led.KnownDates()["2024_01_02"] {
		t.Fatal("expected recovered day recorded")
	}
}

func TestProcess_OversizedArchiveSentInParts(t *testing.T) {
	notifier := &fakeNotifier{}
	r, led, saveDir, logsDir := newTestRunner(t, notifier, 0)
	folder := seedDay(t, saveDir, logsDir, "2024_01_02", 4)

	// Archive first, then set the threshold from the real compressed size so
	// the split always comes out as exactly three parts.
	archivePath := filepath.Join(saveDir, "2024_01_02.zip")
	if _, err := archive.Archive(folder, archivePath, zerolog.Nop()); err != nil {
		t.Fatal(err)
	}
	size := mustSize(t, archivePath)
	r.SetMaxArchiveBytes(size/3 + 1)

	if err := r.Process(context.Background(), archivePath); err != nil {
		t.Fatalf("process: %v", err)
	}

	if len(notifier.sent) != 3 {
		t.Fatalf("expected 3 part mails, got %d", len(notifier.sent))
	}
	for i, m := range notifier.sent {
		wantTag := fmt.Sprintf("(part %d of 3)", i+1)
		if !strings.Contains(m.subject, wantTag) {
			t.Fatalf("mail %d subject %q missing %q", i, m.subject, wantTag)
		}
		wantFiles := 1
		if i == 0 {
			wantFiles = 2 // log rides along on part 1 only
		}
		if len(m.files) != wantFiles {
			t.Fatalf("mail %d has %d attachments, expected %d", i, len(m.files), wantFiles)
		}
	}

	// Every part and the oversized zip are gone once all parts went out.
	for i := 1; i <= 3; i++ {
		if pathExists(archive.PartName(archivePath, i)) {
			t.Fatalf("part %d not deleted after send", i)
		}
	}
	if pathExists(archivePath) {
		t.Fatal("oversized archive not deleted after all parts sent")
	}
	if !led.KnownDates()["2024_01_02"] {
		t.Fatal("expected day recorded after split send")
	}
}

func TestProcess_PartialSplitFailureKeepsRemainingParts(t *testing.T) {
	notifier := &fakeNotifier{failAt: 2, sendErr: errors.New("smtp down")}
	r, led, saveDir, logsDir := newTestRunner(t, notifier, 0)
	folder := seedDay(t, saveDir, logsDir, "2024_01_02", 4)

	archivePath := filepath.Join(saveDir, "2024_01_02.zip")
	if _, err := archive.Archive(folder, archivePath, zerolog.Nop()); err != nil {
		t.Fatal(err)
	}
	size := mustSize(t, archivePath)
	r.SetMaxArchiveBytes(size/3 + 1)

	err := r.Process(context.Background(), archivePath)
	if !errors.Is(err, ErrSend) {
		t.Fatalf("expected ErrSend, got %v", err)
	}

	// Part 1 went out and was deleted; parts 2 and 3 stay, and so does the
	// unsplit zip, so the next sweep can redo the whole day.
	if pathExists(archive.PartName(archivePath, 1)) {
		t.Fatal("sent part 1 should be deleted")
	}
	if !pathExists(archive.PartName(archivePath, 2)) || !pathExists(archive.PartName(archivePath, 3)) {
		t.Fatal("unsent parts must remain on disk")
	}
	if !pathExists(archivePath) {
		t.Fatal("unsplit archive must remain until every part is sent")
	}
	if len(led.KnownDates()) != 0 {
		t.Fatal("failed day must not be recorded")
	}

	// With the notifier healthy again, the recovery scan finds the retained
	// zip and a second pipeline run completes the day exactly once.
	notifier.failAt = 0
	candidates, err := led.FindUnprocessed("2024_01_03")
	if err != nil {
		t.Fatalf("find unprocessed: %v", err)
	}
	if len(candidates) != 1 || candidates[0] != archivePath {
		t.Fatalf("expected the retained zip as the sole candidate, got %v", candidates)
	}
	if err := r.Process(context.Background(), archivePath); err != nil {
		t.Fatalf("recovery process: %v", err)
	}
	known := led.KnownDates()
	if len(known) != 1 || !known["2024_01_02"] {
		t.Fatalf("expected exactly one ledger entry, got %v", known)
	}
	if pathExists(archivePath) {
		t.Fatal("archive must be deleted after the recovered split send")
	}
	for i := 1; i <= 3; i++ {
		if pathExists(archive.PartName(archivePath, i)) {
			t.Fatalf("part %d left behind after recovery", i)
		}
	}
}

func TestProcess_RejectsPathsWithoutDayStamp(t *testing.T) {
	r, _, _, _ := newTestRunner(t, &fakeNotifier{}, 0)
	if err := r.Process(context.Background(), "/tmp/whatever"); err == nil {
		t.Fatal("expected error for undated path")
	}
}

func mustSize(t *testing.T, path string) int64 {
	t.Helper()
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	return info.Size()
}

func pathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
