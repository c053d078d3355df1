// Package ledger keeps the durable record of day folders whose full
// archive-and-notify pipeline has completed. Its absence of an entry is the
// sole signal that a day still needs processing, so entries are appended
// only after the final pipeline step and the file is rewritten only by the
// retention pass.
package ledger

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/strzcam/dayroll/internal/dates"
)

// FileName is the ledger file kept inside the save directory.
const FileName = "send_logs.txt"

// Entry records one fully processed day: the archive that was produced and
// the log file that was attached to its mail.
type Entry struct {
	ArchivePath string
	LogPath     string
}

// Ledger is an append-mostly line file, one Entry per line in the form
// "archive_path|log_path". Appends serialize behind the mutex; the startup
// sweep completes before capture begins, so Load never races Append.
type Ledger struct {
	path   string
	logger zerolog.Logger

	mu      sync.Mutex
	entries []Entry
}

// New creates a ledger persisted at <saveDir>/send_logs.txt.
func New(saveDir string, logger zerolog.Logger) *Ledger {
	return &Ledger{path: filepath.Join(saveDir, FileName), logger: logger}
}

// Path returns the backing file location.
func (l *Ledger) Path() string { return l.path }

// Load reads all entries and prunes those whose embedded date falls at or
// beyond the retention cutoff, deleting their archive and log files. A
// deletion failure keeps the entry so the record of the undeleted file is
// not lost. The surviving entries are rewritten to disk. retentionDays <= 0
// disables pruning.
func (l *Ledger) Load(retentionDays int, now time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries, err := l.read()
	if err != nil {
		return err
	}

	if retentionDays <= 0 {
		l.entries = entries
		return nil
	}

	cutoff := now.AddDate(0, 0, -retentionDays)
	kept := entries[:0]
	pruned := 0
	for _, e := range entries {
		day, ok := dates.FromPath(e.ArchivePath)
		if !ok {
			l.logger.Warn().Str("entry", e.ArchivePath).Msg("ledger: entry has no parsable date, keeping")
			kept = append(kept, e)
			continue
		}
		d, _ := dates.Parse(day)
		if d.After(cutoff) {
			kept = append(kept, e)
			continue
		}
		if err := removeIfExists(e.ArchivePath); err != nil {
			l.logger.Error().Err(err).Str("archive", e.ArchivePath).Msg("ledger: retention delete failed, keeping entry")
			kept = append(kept, e)
			continue
		}
		if err := removeIfExists(e.LogPath); err != nil {
			l.logger.Error().Err(err).Str("log", e.LogPath).Msg("ledger: retention delete failed, keeping entry")
			kept = append(kept, e)
			continue
		}
		pruned++
	}
	l.entries = kept

	if pruned > 0 {
		l.logger.Info().Int("pruned", pruned).Int("kept", len(kept)).Msg("ledger: retention pass complete")
	}
	return l.rewrite()
}

// Append records a completed day. The line is written with a single
// open-append so concurrent pipeline completions cannot interleave.
func (l *Ledger) Append(e Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("ledger append: %w", err)
	}
	_, werr := fmt.Fprintf(f, "%s|%s\n", e.ArchivePath, e.LogPath)
	if cerr := f.Close(); werr == nil {
		werr = cerr
	}
	if werr != nil {
		return fmt.Errorf("ledger append: %w", werr)
	}
	l.entries = append(l.entries, e)
	return nil
}

// KnownDates returns the set of day stamps already recorded.
func (l *Ledger) KnownDates() map[string]bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	known := make(map[string]bool, len(l.entries))
	for _, e := range l.entries {
		if day, ok := dates.FromPath(e.ArchivePath); ok {
			known[day] = true
		}
	}
	return known
}

// FindUnprocessed scans saveDir for date-named day folders or archives that
// are not in the ledger and not today's open folder. When both a folder and
// a stale archive exist for the same date the folder wins; re-archiving
// overwrites the partial zip. Candidates come back oldest first. Names that
// do not parse as dates are ignored.
func (l *Ledger) FindUnprocessed(today string) ([]string, error) {
	known := l.KnownDates()

	saveDir := filepath.Dir(l.path)
	ents, err := os.ReadDir(saveDir)
	if err != nil {
		return nil, fmt.Errorf("ledger scan: %w", err)
	}

	byDay := map[string]string{}
	for _, e := range ents {
		name := e.Name()
		switch {
		case e.IsDir():
			if _, ok := dates.Parse(name); !ok {
				continue
			}
			byDay[name] = filepath.Join(saveDir, name)
		case strings.HasSuffix(name, ".zip"):
			day := strings.TrimSuffix(name, ".zip")
			if _, ok := dates.Parse(day); !ok {
				continue
			}
			if _, have := byDay[day]; !have {
				byDay[day] = filepath.Join(saveDir, name)
			}
		}
	}

	var days []string
	for day := range byDay {
		if day == today || known[day] {
			continue
		}
		days = append(days, day)
	}
	sort.Strings(days)

	out := make([]string, 0, len(days))
	for _, day := range days {
		out = append(out, byDay[day])
	}
	return out, nil
}

func (l *Ledger) read() ([]Entry, error) {
	f, err := os.Open(l.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("ledger load: %w", err)
	}
	defer f.Close()

	var entries []Entry
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		archivePath, logPath, ok := strings.Cut(line, "|")
		if !ok {
			l.logger.Warn().Str("line", line).Msg("ledger: skipping malformed line")
			continue
		}
		entries = append(entries, Entry{ArchivePath: archivePath, LogPath: logPath})
	}
	if err := sc.Err(); err != nil {
		return entries, fmt.Errorf("ledger load: %w", err)
	}
	return entries, nil
}

// rewrite persists the in-memory entries with a tmp-and-rename so a crash
// mid-pass cannot truncate the ledger.
func (l *Ledger) rewrite() error {
	tmp := l.path + ".tmp"
	var b strings.Builder
	for _, e := range l.entries {
		fmt.Fprintf(&b, "%s|%s\n", e.ArchivePath, e.LogPath)
	}
	if err := os.WriteFile(tmp, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("ledger rewrite: %w", err)
	}
	return os.Rename(tmp, l.path)
}

func removeIfExists(path string) error {
	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
