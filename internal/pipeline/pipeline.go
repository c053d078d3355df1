// Package pipeline runs the ordered processing sequence for one completed
// day: archive the folder, split the archive if oversized, mail the result,
// and record completion in the ledger. Each run operates on a folder handed
// off exactly once (at rollover or by the startup sweep), so the only
// automatic retry path is the next recovery sweep.
package pipeline

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/strzcam/dayroll/internal/archive"
	"github.com/strzcam/dayroll/internal/dates"
	"github.com/strzcam/dayroll/internal/ledger"
)

// ErrSend marks a notifier failure. It aborts the remaining steps of the
// run; unsent parts and the archive stay on disk for the next sweep or for
// manual resend.
var ErrSend = errors.New("send failed")

// Notifier delivers files by mail. A failure must come back as an error,
// never a panic; the pipeline decides what happens next.
type Notifier interface {
	Send(ctx context.Context, filePaths []string, subject, body string) error
}

// Config holds the pipeline's fixed inputs.
type Config struct {
	SaveDir string
	LogsDir string

	// MaxArchiveBytes is the size above which an archive is split before
	// mailing. Zero disables splitting.
	MaxArchiveBytes int64

	// NotifyTimeout bounds a single notifier call. Zero means no deadline.
	NotifyTimeout time.Duration
}

// Runner executes the pipeline. Safe for concurrent use; distinct runs never
// touch the same day's files and ledger appends serialize inside the ledger.
type Runner struct {
	cfg      Config
	notifier Notifier
	ledger   *ledger.Ledger
	logger   zerolog.Logger

	maxArchiveBytes atomic.Int64
}

// NewRunner wires the pipeline to its collaborators.
func NewRunner(cfg Config, notifier Notifier, led *ledger.Ledger, logger zerolog.Logger) *Runner {
	r := &Runner{cfg: cfg, notifier: notifier, ledger: led, logger: logger}
	r.maxArchiveBytes.Store(cfg.MaxArchiveBytes)
	return r
}

// SetMaxArchiveBytes adjusts the split threshold at runtime (config reload).
func (r *Runner) SetMaxArchiveBytes(n int64) { r.maxArchiveBytes.Store(n) }

// Process runs the full pipeline for one day item: either a day folder still
// on disk or an already-produced archive found by recovery. On any failure
// the day is left unrecorded so the next sweep picks it up.
func (r *Runner) Process(ctx context.Context, path string) error {
	day, ok := dates.FromPath(path)
	if !ok {
		return fmt.Errorf("process %s: no day stamp in name", path)
	}
	log := r.logger.With().Str("day", day).Logger()

	// Step 1: archive, unless recovery handed us an existing zip.
	archivePath := filepath.Join(r.cfg.SaveDir, day+".zip")
	var sum archive.Summary
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		sum, err = archive.Archive(path, archivePath, log)
		if err != nil {
			log.Error().Err(err).Str("folder", path).Msg("pipeline: archiving failed, day left unprocessed")
			return err
		}
	} else {
		archivePath = path
		sum, err = summarizeExisting(archivePath)
		if err != nil {
			log.Error().Err(err).Str("archive", archivePath).Msg("pipeline: unreadable archive")
			return fmt.Errorf("%w: %s: %w", archive.ErrArchive, archivePath, err)
		}
	}

	// Step 2: size and same-day log.
	info, err := os.Stat(archivePath)
	if err != nil {
		return fmt.Errorf("%w: stat %s: %w", archive.ErrArchive, archivePath, err)
	}
	archiveSize := info.Size()

	logPath := filepath.Join(r.cfg.LogsDir, dates.LogName(day))
	if _, err := os.Stat(logPath); err != nil {
		log.Warn().Str("log", logPath).Msg("pipeline: no log file for day, sending without it")
		logPath = ""
	}

	subject, body := mailContent(day, sum)

	// Steps 3-5: send, splitting first when oversized.
	maxBytes := r.maxArchiveBytes.Load()
	if maxBytes > 0 && archiveSize > maxBytes {
		if err := r.sendSplit(ctx, log, archivePath, logPath, maxBytes, subject, body); err != nil {
			return err
		}
	} else {
		attachments := []string{archivePath}
		if logPath != "" {
			attachments = append(attachments, logPath)
		}
		if err := r.send(ctx, attachments, subject, body); err != nil {
			log.Error().Err(err).Msg("pipeline: send failed, day left unprocessed")
			return err
		}
	}

	// Step 6: record completion.
	if err := r.ledger.Append(ledger.Entry{ArchivePath: archivePath, LogPath: logPath}); err != nil {
		log.Error().Err(err).Msg("pipeline: ledger append failed")
		return err
	}
	log.Info().Str("archive", archivePath).Msg("pipeline: day fully processed")
	return nil
}

// sendSplit mails the archive as ordered parts, attaching the day log only
// to part 1. Each sent part is deleted immediately; a failure stops the run
// with the remaining parts (and the unsplit archive) on disk. Only after
// every part went out is the oversized archive removed.
func (r *Runner) sendSplit(ctx context.Context, log zerolog.Logger, archivePath, logPath string, maxBytes int64, subject, body string) error {
	parts, err := archive.Split(archivePath, maxBytes)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", archive.ErrArchive, archivePath, err)
	}
	log.Info().Int("parts", len(parts)).Msg("pipeline: archive oversized, split for sending")

	for i, part := range parts {
		attachments := []string{part}
		if i == 0 && logPath != "" {
			attachments = append(attachments, logPath)
		}
		partSubject := fmt.Sprintf("%s (part %d of %d)", subject, i+1, len(parts))
		if err := r.send(ctx, attachments, partSubject, body); err != nil {
			log.Error().Err(err).
				Str("part", part).
				Int("sent", i).
				Int("remaining", len(parts)-i).
				Msg("pipeline: part send failed, leaving remaining parts on disk")
			return err
		}
		if err := os.Remove(part); err != nil {
			log.Warn().Err(err).Str("part", part).Msg("pipeline: sent part not deleted")
		}
	}

	if err := os.Remove(archivePath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Warn().Err(err).Str("archive", archivePath).Msg("pipeline: oversized archive not deleted after split send")
	}
	return nil
}

func (r *Runner) send(ctx context.Context, files []string, subject, body string) error {
	if r.cfg.NotifyTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.NotifyTimeout)
		defer cancel()
	}
	if err := r.notifier.Send(ctx, files, subject, body); err != nil {
		return fmt.Errorf("%w: %w", ErrSend, err)
	}
	return nil
}

// summarizeExisting rebuilds the mail summary from an archive produced by an
// earlier crashed run: image count and uncompressed size come from the zip
// directory.
func summarizeExisting(path string) (archive.Summary, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return archive.Summary{}, err
	}
	defer zr.Close()

	sum := archive.Summary{Path: path}
	for _, f := range zr.File {
		sum.ImageCount++
		sum.TotalBytes += int64(f.UncompressedSize64)
	}
	return sum, nil
}

func mailContent(day string, sum archive.Summary) (subject, body string) {
	sizeMB := float64(sum.TotalBytes) / (1024 * 1024)
	subject = fmt.Sprintf("Daily Capture Summary: %d Images Archived (%.2f MB)", sum.ImageCount, sizeMB)
	body = fmt.Sprintf(`Image capture for the date %s has been successfully completed.
A total of %d images, with a combined size of %.2f MB, have been archived and attached to this email.
Additionally, the log file for this day's activity is also attached. The log file contains detailed information about the capture process, including any errors or issues encountered.

Sent by Automated System`, day, sum.ImageCount, sizeMB)
	return subject, body
}
