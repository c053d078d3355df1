// Package scheduler owns the capture loop: it pulls the latest frame from
// the camera reader, writes it into today's folder, detects the calendar
// date rolling over, and hands the finished day to a background pipeline job
// without ever blocking capture.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/strzcam/dayroll/internal/camera"
	"github.com/strzcam/dayroll/internal/dates"
	"github.com/strzcam/dayroll/internal/daylog"
)

// State is the scheduler's lifecycle state. There is no transition back to
// Running; a stopped scheduler is done and a new one must be created.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateStopped
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateRunning:
		return "Running"
	case StateStopped:
		return "Stopped"
	default:
		return "Unknown"
	}
}

var (
	// ErrAlreadyStarted is returned by Start on a non-idle scheduler.
	ErrAlreadyStarted = errors.New("scheduler: already started")

	// ErrNotRunning is returned by Stop unless the scheduler is running.
	ErrNotRunning = errors.New("scheduler: not running")
)

// FrameSource is the camera reader as the scheduler sees it.
type FrameSource interface {
	Start()
	Frame() (*camera.Frame, error)
	Stop()
}

// Processor runs the day pipeline for one folder. Implemented by
// pipeline.Runner.
type Processor interface {
	Process(ctx context.Context, path string) error
}

// Config holds the capture loop's parameters.
type Config struct {
	SaveDir string
	LogsDir string

	// CaptureDelay is the pause between persisted frames.
	CaptureDelay time.Duration

	// FramePollInterval is the pause before retrying when the camera has
	// not produced a frame yet.
	FramePollInterval time.Duration

	// OutputWidth/OutputHeight resize frames before persisting; zero keeps
	// the captured size.
	OutputWidth  int
	OutputHeight int
}

// Scheduler is the capture state machine. One instance owns the process-wide
// "current day"; nothing else mutates it.
type Scheduler struct {
	cfg    Config
	source FrameSource
	proc   Processor
	jobs   *Jobs
	daylog *daylog.Writer
	logger zerolog.Logger

	// now is replaceable in tests.
	now func() time.Time

	mu           sync.RWMutex
	state        State
	cancel       context.CancelFunc
	done         chan struct{}
	currentDay   string
	captureDelay time.Duration
}

// New creates an idle scheduler.
func New(cfg Config, source FrameSource, proc Processor, jobs *Jobs, dl *daylog.Writer, logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		cfg:          cfg,
		source:       source,
		proc:         proc,
		jobs:         jobs,
		daylog:       dl,
		logger:       logger,
		now:          time.Now,
		captureDelay: cfg.CaptureDelay,
	}
}

// State returns the current lifecycle state.
func (s *Scheduler) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// CurrentDay returns the day stamp of the folder currently open for writes.
func (s *Scheduler) CurrentDay() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentDay
}

// SetCaptureDelay adjusts the per-capture pause at runtime (config reload).
func (s *Scheduler) SetCaptureDelay(d time.Duration) {
	if d <= 0 {
		return
	}
	s.mu.Lock()
	s.captureDelay = d
	s.mu.Unlock()
	s.logger.Info().Dur("delay", d).Msg("capture delay updated")
}

// Start transitions Idle -> Running: creates the required directories,
// starts the frame reader and launches the capture loop. Failing to create
// directories is the one fatal startup condition.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}

	for _, dir := range []string{s.cfg.SaveDir, s.cfg.LogsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			s.mu.Unlock()
			return fmt.Errorf("scheduler: create %s: %w", dir, err)
		}
	}

	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.state = StateRunning
	s.currentDay = dates.Format(s.now())
	day := s.currentDay
	s.mu.Unlock()

	if err := s.daylog.Roll(day); err != nil {
		s.logger.Warn().Err(err).Msg("day log not available")
	}

	s.logger.Info().Str("from", StateIdle.String()).Str("to", StateRunning.String()).Msg("state transition")
	s.source.Start()
	go s.loop(loopCtx)
	return nil
}

// Stop transitions Running -> Stopped: signals the loop, waits for it to
// exit, and stops the frame reader. In-flight pipeline jobs are not
// cancelled; use Jobs.Wait to bound how long shutdown waits for them.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if s.state != StateRunning {
		s.mu.Unlock()
		return ErrNotRunning
	}
	s.state = StateStopped
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	cancel()
	<-done
	s.source.Stop()
	s.logger.Info().Str("from", StateRunning.String()).Str("to", StateStopped.String()).Msg("state transition")
	return nil
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.done)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		frame, err := s.source.Frame()
		if err != nil {
			s.logger.Warn().Msg("no frame available yet")
			if !sleepCtx(ctx, s.cfg.FramePollInterval) {
				return
			}
			continue
		}

		s.capture(ctx, frame)

		s.mu.RLock()
		delay := s.captureDelay
		s.mu.RUnlock()
		if !sleepCtx(ctx, delay) {
			return
		}
	}
}

// capture attributes the frame to its calendar day, triggers rollover when
// the day changed, and persists the frame. The date comparison happens
// before the write so no frame of a new day ever lands in the old folder.
func (s *Scheduler) capture(ctx context.Context, frame *camera.Frame) {
	day := dates.Format(frame.CapturedAt)
	label := frame.CapturedAt.Format(dates.TimeLayout)

	dayDir := filepath.Join(s.cfg.SaveDir, day)
	if err := os.MkdirAll(dayDir, 0o755); err != nil {
		s.logger.Error().Err(err).Str("dir", dayDir).Msg("cannot create day folder, frame dropped")
		return
	}

	s.mu.Lock()
	prevDay := s.currentDay
	if day != prevDay {
		s.currentDay = day
	}
	s.mu.Unlock()

	if day != prevDay {
		s.rollover(ctx, prevDay, day)
	}

	data := frame.Data
	if s.cfg.OutputWidth > 0 && s.cfg.OutputHeight > 0 {
		resized, err := camera.Resize(data, s.cfg.OutputWidth, s.cfg.OutputHeight)
		if err != nil {
			s.logger.Warn().Err(err).Msg("resize failed, keeping original size")
		} else {
			data = resized
		}
	}

	framePath := filepath.Join(dayDir, label+".jpg")
	if err := os.WriteFile(framePath, data, 0o644); err != nil {
		s.logger.Error().Err(err).Str("path", framePath).Msg("frame write failed")
		return
	}
	s.logger.Info().Str("path", framePath).Msg("frame saved")
}

// rollover hands the finished day to a background pipeline job and switches
// the day log. Detected at most once per date transition: the remembered day
// was already advanced under the lock by the caller.
func (s *Scheduler) rollover(ctx context.Context, prevDay, day string) {
	s.logger.Info().Str("from", prevDay).Str("to", day).Msg("day rollover")

	if err := s.daylog.Roll(day); err != nil {
		s.logger.Warn().Err(err).Msg("day log roll failed")
	}

	// The job survives Stop: only the capture loop is cancelled, never an
	// in-flight pipeline.
	jobCtx := context.WithoutCancel(ctx)
	prevFolder := filepath.Join(s.cfg.SaveDir, prevDay)
	s.jobs.Dispatch(prevFolder, func() error {
		return s.proc.Process(jobCtx, prevFolder)
	})
}

// sleepCtx pauses for d, returning false if the context ended first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
