package cliconfig

import "os"

// ApplyEnvConfig applies configuration from environment variables
// (DAYROLL_*). It respects flags that have been explicitly set (changed
// map). Returns an error if any variable has an invalid format.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("video-src", os.Getenv("DAYROLL_VIDEO_SRC"), &cfg.VideoSrc)
	s.setString("save-dir", os.Getenv("DAYROLL_SAVE_DIR"), &cfg.SaveDir)
	s.setString("logs-dir", os.Getenv("DAYROLL_LOGS_DIR"), &cfg.LogsDir)
	s.setString("smtp-host", os.Getenv("DAYROLL_SMTP_HOST"), &cfg.SMTPHost)
	s.setString("sender-email", os.Getenv("DAYROLL_SENDER_EMAIL"), &cfg.SenderEmail)
	s.setString("smtp-password", os.Getenv("DAYROLL_SMTP_PASSWORD"), &cfg.SMTPPassword)
	s.setString("viewer-addr", os.Getenv("DAYROLL_VIEWER_ADDR"), &cfg.ViewerAddr)

	if err := s.setDuration("delay", os.Getenv("DAYROLL_CAPTURE_DELAY"), &cfg.CaptureDelay); err != nil {
		return err
	}
	if err := s.setDuration("frame-poll", os.Getenv("DAYROLL_FRAME_POLL_INTERVAL"), &cfg.FramePollInterval); err != nil {
		return err
	}
	if err := s.setDuration("reconnect-delay", os.Getenv("DAYROLL_RECONNECT_DELAY"), &cfg.ReconnectDelay); err != nil {
		return err
	}
	if err := s.setDuration("notify-timeout", os.Getenv("DAYROLL_NOTIFY_TIMEOUT"), &cfg.NotifyTimeout); err != nil {
		return err
	}

	if err := s.setIntFromString("output-width", os.Getenv("DAYROLL_OUTPUT_WIDTH"), &cfg.OutputWidth); err != nil {
		return err
	}
	if err := s.setIntFromString("output-height", os.Getenv("DAYROLL_OUTPUT_HEIGHT"), &cfg.OutputHeight); err != nil {
		return err
	}
	if err := s.setIntFromString("retention-days", os.Getenv("DAYROLL_RETENTION_DAYS"), &cfg.RetentionDays); err != nil {
		return err
	}
	if err := s.setIntFromString("max-archive-mb", os.Getenv("DAYROLL_MAX_ARCHIVE_MB"), &cfg.MaxArchiveMB); err != nil {
		return err
	}
	if err := s.setIntFromString("smtp-port", os.Getenv("DAYROLL_SMTP_PORT"), &cfg.SMTPPort); err != nil {
		return err
	}

	s.setStringsFromString("recipients", os.Getenv("DAYROLL_RECIPIENTS"), &cfg.Recipients)

	return nil
}
