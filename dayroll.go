// Package dayroll runs a timelapse capture agent: it saves camera frames
// into per-day folders, archives and mails each finished day when the date
// rolls over, recovers unprocessed days at startup, and prunes archives past
// the retention window.
//
// Example usage:
//
//	cfg := cliconfig.DefaultConfig()
//	cfg.VideoSrc = "http://cam.local/stream"
//	cfg.SMTPHost = "smtp.example.com"
//	if err := cfg.Validate(); err != nil {
//	    log.Fatal(err)
//	}
//	if err := dayroll.Run(context.Background(), cfg); err != nil {
//	    log.Fatal(err)
//	}
package dayroll

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/strzcam/dayroll/internal/camera"
	"github.com/strzcam/dayroll/internal/cliconfig"
	"github.com/strzcam/dayroll/internal/dates"
	"github.com/strzcam/dayroll/internal/daylog"
	"github.com/strzcam/dayroll/internal/ledger"
	"github.com/strzcam/dayroll/internal/notify"
	"github.com/strzcam/dayroll/internal/pipeline"
	"github.com/strzcam/dayroll/internal/scheduler"
	"github.com/strzcam/dayroll/internal/sweep"
	"github.com/strzcam/dayroll/internal/viewer"
)

// ShutdownTimeout bounds how long Run waits for in-flight day pipelines
// after the capture loop has stopped.
const ShutdownTimeout = 30 * time.Second

// Config is the agent configuration. Use cliconfig.DefaultConfig for
// defaults.
type Config = cliconfig.Config

type options struct {
	device     camera.Device
	notifier   pipeline.Notifier
	configFile string
}

// Option customizes Run.
type Option func(*options)

// WithDevice supplies a camera device, overriding the one derived from
// VideoSrc. Use it to plug in a hardware decoder.
func WithDevice(d camera.Device) Option {
	return func(o *options) { o.device = d }
}

// WithNotifier supplies a delivery mechanism, overriding SMTP.
func WithNotifier(n pipeline.Notifier) Option {
	return func(o *options) { o.notifier = n }
}

// WithConfigWatch enables hot-reload of runtime tunables from the given
// config file.
func WithConfigWatch(path string) Option {
	return func(o *options) { o.configFile = path }
}

// Run executes the agent until ctx is cancelled: recovery sweep first, then
// continuous capture. Returns only for invalid configuration or an
// unrecoverable startup condition.
func Run(ctx context.Context, cfg Config, opts ...Option) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	for _, dir := range []string{cfg.SaveDir, cfg.LogsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}

	dlw := daylog.New(cfg.LogsDir)
	defer dlw.Close()
	today := dates.Format(time.Now())
	if err := dlw.Roll(today); err != nil {
		return fmt.Errorf("open day log: %w", err)
	}
	logger := cliconfig.LoggerWithSink(dlw)

	device := o.device
	if device == nil {
		var err error
		device, err = deviceFor(cfg.VideoSrc)
		if err != nil {
			return err
		}
	}

	notifier := o.notifier
	if notifier == nil {
		if cfg.SMTPHost != "" {
			m, err := notify.NewMailer(notify.Config{
				Host:       cfg.SMTPHost,
				Port:       cfg.SMTPPort,
				Sender:     cfg.SenderEmail,
				Password:   cfg.SMTPPassword,
				Recipients: cfg.Recipients,
			}, logger)
			if err != nil {
				return err
			}
			notifier = m
		} else {
			notifier = notify.Noop{Logger: logger}
		}
	}

	led := ledger.New(cfg.SaveDir, logger)
	runner := pipeline.NewRunner(pipeline.Config{
		SaveDir:         cfg.SaveDir,
		LogsDir:         cfg.LogsDir,
		MaxArchiveBytes: cfg.MaxArchiveBytes(),
		NotifyTimeout:   cfg.NotifyTimeout,
	}, notifier, led, logger)

	// The sweep finishes before capture starts, so recovery and rollover
	// never touch the same folder. A failed sweep is not fatal; unprocessed
	// days stay unrecorded and the next start retries them.
	sweeper := sweep.New(led, runner, cfg.RetentionDays, logger)
	if err := sweeper.Run(ctx, today, time.Now()); err != nil {
		logger.Error().Err(err).Msg("recovery sweep failed")
	}

	reader := camera.NewReader(device, camera.ReconnectPolicy{Delay: cfg.ReconnectDelay}, logger)
	jobs := scheduler.NewJobs(logger)
	sched := scheduler.New(scheduler.Config{
		SaveDir:           cfg.SaveDir,
		LogsDir:           cfg.LogsDir,
		CaptureDelay:      cfg.CaptureDelay,
		FramePollInterval: cfg.FramePollInterval,
		OutputWidth:       cfg.OutputWidth,
		OutputHeight:      cfg.OutputHeight,
	}, reader, runner, jobs, dlw, logger)

	if o.configFile != "" {
		watcher := cliconfig.NewWatcher(o.configFile, func(t cliconfig.Tunables) {
			if t.CaptureDelay > 0 {
				sched.SetCaptureDelay(t.CaptureDelay)
			}
			if t.MaxArchiveBytes > 0 {
				runner.SetMaxArchiveBytes(t.MaxArchiveBytes)
			}
			if t.RetentionDays > 0 && t.RetentionDays != cfg.RetentionDays {
				logger.Info().Int("retention_days", t.RetentionDays).Msg("retention change takes effect at next start")
			}
		}, logger)
		go watcher.Run(ctx)
	}

	if cfg.ViewerAddr != "" {
		v := viewer.New(cfg.SaveDir, cfg.LogsDir, logger)
		go func() {
			if err := v.ListenAndServe(ctx, cfg.ViewerAddr); err != nil {
				logger.Error().Err(err).Msg("viewer stopped")
			}
		}()
	}

	if err := sched.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()

	if err := sched.Stop(); err != nil {
		logger.Warn().Err(err).Msg("stop failed")
	}
	if err := jobs.Wait(ShutdownTimeout); err != nil {
		logger.Warn().Strs("pending", jobs.Pending()).Msg("exiting with unfinished background jobs")
	}
	logger.Info().Msg("shutdown complete")
	return nil
}

// deviceFor derives a camera device from the video source identifier.
// Hardware decoders are not built in; pass one with WithDevice.
func deviceFor(src string) (camera.Device, error) {
	switch {
	case strings.HasPrefix(src, "dir:"):
		return camera.NewDirDevice(strings.TrimPrefix(src, "dir:")), nil
	case strings.HasPrefix(src, "http://"), strings.HasPrefix(src, "https://"):
		return camera.NewMJPEGDevice(src), nil
	default:
		return nil, fmt.Errorf("config: unsupported video source %q (use an http(s) MJPEG URL or dir:/path, or embed a custom device)", src)
	}
}
