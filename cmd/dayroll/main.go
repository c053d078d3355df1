package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"github.com/strzcam/dayroll"
	"github.com/strzcam/dayroll/internal/cliconfig"
	"github.com/strzcam/dayroll/internal/viewer"
)

const helpBanner = `
 ██████████     █████████   █████ █████ ███████████      ███████    █████       █████
░░███░░░░███   ███░░░░░███ ░░███ ░░███ ░░███░░░░░███   ███░░░░░███ ░░███       ░░███
 ░███   ░░███ ░███    ░███  ░░███ ███   ░███    ░███  ███     ░░███ ░███        ░███
 ░███    ░███ ░███████████   ░░█████    ░██████████  ░███      ░███ ░███        ░███
 ░███    ░███ ░███░░░░░███    ░░███     ░███░░░░░███ ░███      ░███ ░███        ░███
 ░███    ███  ░███    ░███     ░███     ░███    ░███ ░░███     ███  ░███      █ ░███      █
 ██████████   █████   █████    █████    █████   █████ ░░░███████░   ███████████ ███████████
░░░░░░░░░░   ░░░░░   ░░░░░    ░░░░░    ░░░░░   ░░░░░    ░░░░░░░    ░░░░░░░░░░░ ░░░░░░░░░░░
`

const helpDescription = `
Capture timelapse frames from a camera, one image per interval, into per-day
folders. When the date rolls over the finished day is zipped, split if it is
too large to mail, emailed with that day's log, and recorded; archives past
the retention window are pruned at startup.

Highlights:
  - Survives camera disconnects; reconnects forever with a fixed backoff.
  - Crash-safe: unprocessed days are found and completed at the next start.
  - Oversized archives are emailed in ordered parts that reassemble exactly.
  - Configure via file (~/.dayroll/config.toml), DAYROLL_* env, or flags.
`

var longHelp = strings.TrimSpace(helpBanner) + "\n\n" + strings.TrimSpace(helpDescription)

var exampleUsage = strings.TrimSpace(`
  dayroll --video-src http://cam.local/stream --smtp-host smtp.mail.ru --sender-email cam@mail.ru --recipients ops@mail.ru
  dayroll --config /etc/dayroll/config.toml
  dayroll view --save-dir images --logs-dir logs --addr :8080
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func main() {
	cfg := cliconfig.DefaultConfig()
	var cfgPath string
	var recipients []string

	log := cliconfig.Logger()

	root := &cobra.Command{
		Use:     "dayroll",
		Short:   "Timelapse capture agent with daily archival and mail delivery",
		Long:    longHelp,
		Example: exampleUsage,
		Version: fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgFile := cfgPath
			if cfgFile == "" {
				cfgFile = cliconfig.DefaultConfigPath()
			}

			// Build set of changed flags
			changed := map[string]bool{}
			cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })
			if changed["recipients"] {
				cfg.Recipients = recipients
			}

			if cfgFile != "" && cliconfig.FileExists(cfgFile) {
				fc, err := cliconfig.LoadFileConfig(cfgFile)
				if err != nil {
					return fmt.Errorf("load config: %w", err)
				}
				if err := cliconfig.ApplyFileConfig(&cfg, fc, changed); err != nil {
					return err
				}
			}

			// Environment overrides file config but is overridden by flags.
			if err := cliconfig.ApplyEnvConfig(&cfg, changed); err != nil {
				return err
			}

			if err := cfg.Validate(); err != nil {
				return err
			}

			// Log configuration (masking the SMTP password)
			logCfg := cfg
			if len(logCfg.SMTPPassword) > 0 {
				logCfg.SMTPPassword = "*****"
			}
			log.Info().Interface("config", logCfg).Msg("configuration")

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			var opts []dayroll.Option
			if cfgFile != "" && cliconfig.FileExists(cfgFile) {
				opts = append(opts, dayroll.WithConfigWatch(cfgFile))
			}
			return dayroll.Run(ctx, cfg, opts...)
		},
	}

	root.Flags().StringVar(&cfgPath, "config", "", "path to config file (default: $HOME/.dayroll/config.toml)")
	root.Flags().StringVar(&cfg.VideoSrc, "video-src", cfg.VideoSrc, "camera source: MJPEG URL or dir:/path simulator")
	root.Flags().StringVar(&cfg.SaveDir, "save-dir", cfg.SaveDir, "directory for day folders and archives")
	root.Flags().StringVar(&cfg.LogsDir, "logs-dir", cfg.LogsDir, "directory for per-day log files")

	root.Flags().DurationVar(&cfg.CaptureDelay, "delay", cfg.CaptureDelay, "pause between captured frames")
	root.Flags().DurationVar(&cfg.FramePollInterval, "frame-poll", cfg.FramePollInterval, "retry interval while no frame is available")
	root.Flags().DurationVar(&cfg.ReconnectDelay, "reconnect-delay", cfg.ReconnectDelay, "camera reconnect backoff")
	root.Flags().IntVar(&cfg.OutputWidth, "output-width", cfg.OutputWidth, "resize frames to this width (0 keeps native)")
	root.Flags().IntVar(&cfg.OutputHeight, "output-height", cfg.OutputHeight, "resize frames to this height (0 keeps native)")

	root.Flags().IntVar(&cfg.RetentionDays, "retention-days", cfg.RetentionDays, "days to keep processed archives (0 disables pruning)")
	root.Flags().IntVar(&cfg.MaxArchiveMB, "max-archive-mb", cfg.MaxArchiveMB, "split archives larger than this before mailing (0 disables)")
	root.Flags().DurationVar(&cfg.NotifyTimeout, "notify-timeout", cfg.NotifyTimeout, "deadline per mail send (0 means none)")

	root.Flags().StringVar(&cfg.SMTPHost, "smtp-host", cfg.SMTPHost, "SMTP server for daily mails (empty disables mailing)")
	root.Flags().IntVar(&cfg.SMTPPort, "smtp-port", cfg.SMTPPort, "SMTP port (implicit TLS)")
	root.Flags().StringVar(&cfg.SenderEmail, "sender-email", cfg.SenderEmail, "sender address, doubles as SMTP login")
	root.Flags().StringVar(&cfg.SMTPPassword, "smtp-password", cfg.SMTPPassword, "SMTP password (prefer DAYROLL_SMTP_PASSWORD)")
	if err := root.Flags().MarkHidden("smtp-password"); err != nil {
		log.Info().Err(err).Msg("failed to hide smtp-password flag")
	}
	root.Flags().StringSliceVar(&recipients, "recipients", nil, "mail recipients (comma separated)")

	root.Flags().StringVar(&cfg.ViewerAddr, "viewer-addr", cfg.ViewerAddr, "also serve the HTTP viewer on this address (empty disables)")

	root.AddCommand(viewCmd(&cfgPath))

	if err := root.Execute(); err != nil {
		log.Error().Err(err).Msg("dayroll")
		os.Exit(1)
	}
}

// viewCmd serves the read-only browser standalone, e.g. on a machine that
// only mounts the capture output.
func viewCmd(cfgPath *string) *cobra.Command {
	saveDir := "images"
	logsDir := "logs"
	addr := ":8080"

	cmd := &cobra.Command{
		Use:   "view",
		Short: "Serve the HTTP viewer for captured days, archives and logs",
		RunE: func(cmd *cobra.Command, args []string) error {
			changed := map[string]bool{}
			cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

			cfgFile := *cfgPath
			if cfgFile == "" {
				cfgFile = cliconfig.DefaultConfigPath()
			}
			if cfgFile != "" && cliconfig.FileExists(cfgFile) {
				fc, err := cliconfig.LoadFileConfig(cfgFile)
				if err != nil {
					return fmt.Errorf("load config: %w", err)
				}
				if !changed["save-dir"] && fc.SaveDir != "" {
					saveDir = fc.SaveDir
				}
				if !changed["logs-dir"] && fc.LogsDir != "" {
					logsDir = fc.LogsDir
				}
				if !changed["addr"] && fc.ViewerAddr != "" {
					addr = fc.ViewerAddr
				}
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := cliconfig.Logger()
			return viewer.New(saveDir, logsDir, log).ListenAndServe(ctx, addr)
		},
	}

	cmd.Flags().StringVar(&saveDir, "save-dir", saveDir, "directory holding day folders and archives")
	cmd.Flags().StringVar(&logsDir, "logs-dir", logsDir, "directory holding per-day log files")
	cmd.Flags().StringVar(&addr, "addr", addr, "listen address")
	return cmd
}
