// Package daylog writes the agent's log stream into one file per calendar
// day, <logs_dir>/log_<date>.log. The scheduler rolls the file at the same
// moment it rolls the day folder, so the file the pipeline attaches to the
// daily mail covers exactly that day's capture activity.
package daylog

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/strzcam/dayroll/internal/dates"
)

// Writer is an io.Writer suitable as a zerolog sink. Writes before the first
// Roll are dropped silently; logging must never fail capture.
type Writer struct {
	dir string

	mu  sync.Mutex
	f   *os.File
	day string
}

// New creates a writer targeting dir. Call Roll to open the first file.
func New(dir string) *Writer {
	return &Writer{dir: dir}
}

// PathFor returns the log file path for a day stamp.
func (w *Writer) PathFor(day string) string {
	return filepath.Join(w.dir, dates.LogName(day))
}

// Roll switches output to the given day's file, creating it if needed and
// closing the previous one. Rolling to the already-open day is a no-op.
func (w *Writer) Roll(day string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if day == w.day && w.f != nil {
		return nil
	}
	f, err := os.OpenFile(w.PathFor(day), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("daylog: %w", err)
	}
	if w.f != nil {
		w.f.Close()
	}
	w.f = f
	w.day = day
	return nil
}

// Write appends to the current day's file.
func (w *Writer) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.f == nil {
		return len(p), nil
	}
	return w.f.Write(p)
}

// Close closes the current file. Further writes are dropped.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.f == nil {
		return nil
	}
	err := w.f.Close()
	w.f = nil
	w.day = ""
	return err
}
