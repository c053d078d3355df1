package cliconfig

import (
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
)

// FileConfig mirrors Config but uses strings for durations to make TOML
// friendly.
type FileConfig struct {
	VideoSrc string `toml:"video_src"`
	SaveDir  string `toml:"save_dir"`
	LogsDir  string `toml:"logs_dir"`

	CaptureDelay      string `toml:"capture_delay"`
	FramePollInterval string `toml:"frame_poll_interval"`
	ReconnectDelay    string `toml:"reconnect_delay"`

	OutputWidth  int `toml:"output_width"`
	OutputHeight int `toml:"output_height"`

	RetentionDays int    `toml:"retention_days"`
	MaxArchiveMB  int    `toml:"max_archive_mb"`
	NotifyTimeout string `toml:"notify_timeout"`

	SMTPHost     string   `toml:"smtp_host"`
	SMTPPort     int      `toml:"smtp_port"`
	SenderEmail  string   `toml:"sender_email"`
	SMTPPassword string   `toml:"smtp_password"`
	Recipients   []string `toml:"recipients"`

	ViewerAddr string `toml:"viewer_addr"`
}

// LoadFileConfig reads and parses a TOML config file from the given path.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

// DefaultConfigPath returns ~/.dayroll/config.toml if the user home
// directory is accessible.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".dayroll", "config.toml")
	}
	return ""
}

// ApplyFileConfig applies configuration from a file to the Config struct.
// It respects flags that have been explicitly set (changed map).
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("video-src", fc.VideoSrc, &cfg.VideoSrc)
	s.setString("save-dir", fc.SaveDir, &cfg.SaveDir)
	s.setString("logs-dir", fc.LogsDir, &cfg.LogsDir)
	s.setString("smtp-host", fc.SMTPHost, &cfg.SMTPHost)
	s.setString("sender-email", fc.SenderEmail, &cfg.SenderEmail)
	s.setString("smtp-password", fc.SMTPPassword, &cfg.SMTPPassword)
	s.setString("viewer-addr", fc.ViewerAddr, &cfg.ViewerAddr)

	if err := s.setDuration("delay", fc.CaptureDelay, &cfg.CaptureDelay); err != nil {
		return err
	}
	if err := s.setDuration("frame-poll", fc.FramePollInterval, &cfg.FramePollInterval); err != nil {
		return err
	}
	if err := s.setDuration("reconnect-delay", fc.ReconnectDelay, &cfg.ReconnectDelay); err != nil {
		return err
	}
	if err := s.setDuration("notify-timeout", fc.NotifyTimeout, &cfg.NotifyTimeout); err != nil {
		return err
	}

	s.setInt("output-width", fc.OutputWidth, &cfg.OutputWidth)
	s.setInt("output-height", fc.OutputHeight, &cfg.OutputHeight)
	s.setInt("retention-days", fc.RetentionDays, &cfg.RetentionDays)
	s.setInt("max-archive-mb", fc.MaxArchiveMB, &cfg.MaxArchiveMB)
	s.setInt("smtp-port", fc.SMTPPort, &cfg.SMTPPort)

	s.setStrings("recipients", fc.Recipients, &cfg.Recipients)

	return nil
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
