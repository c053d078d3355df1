// Package cliconfig loads the agent's configuration with the usual
// precedence: command-line flags override DAYROLL_* environment variables,
// which override the TOML config file, which overrides built-in defaults.
package cliconfig

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the full configuration of the capture agent and the viewer.
type Config struct {
	// VideoSrc identifies the camera: an MJPEG stream URL or "dir:/path"
	// for the directory-backed simulator. Local hardware decoders are
	// supplied programmatically via dayroll.WithDevice.
	VideoSrc string

	SaveDir string
	LogsDir string

	CaptureDelay      time.Duration
	FramePollInterval time.Duration
	ReconnectDelay    time.Duration

	// OutputWidth/OutputHeight request a resize from the decoder; zero
	// keeps the native frame size.
	OutputWidth  int
	OutputHeight int

	RetentionDays int
	MaxArchiveMB  int
	NotifyTimeout time.Duration

	SMTPHost     string
	SMTPPort     int
	SenderEmail  string
	SMTPPassword string
	Recipients   []string

	// ViewerAddr enables the embedded HTTP viewer when non-empty.
	ViewerAddr string
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		SaveDir:           "images",
		LogsDir:           "logs",
		CaptureDelay:      60 * time.Second,
		FramePollInterval: 1 * time.Second,
		ReconnectDelay:    10 * time.Second,
		RetentionDays:     7,
		MaxArchiveMB:      24,
		SMTPPort:          465,
		SMTPPassword:      os.Getenv("DAYROLL_SMTP_PASSWORD"),
	}
}

// Validate checks the configuration for errors. Notifier settings are
// optional as a group: with no SMTP host the agent archives without mailing.
func (c *Config) Validate() error {
	if c.VideoSrc == "" {
		return fmt.Errorf("video-src is required")
	}
	if c.SaveDir == "" || c.LogsDir == "" {
		return fmt.Errorf("save-dir and logs-dir are required")
	}
	if c.CaptureDelay <= 0 {
		return fmt.Errorf("capture delay must be positive")
	}
	if c.FramePollInterval <= 0 {
		return fmt.Errorf("frame poll interval must be positive")
	}
	if c.ReconnectDelay <= 0 {
		return fmt.Errorf("reconnect delay must be positive")
	}
	if c.RetentionDays < 0 {
		return fmt.Errorf("retention days cannot be negative")
	}
	if c.MaxArchiveMB < 0 {
		return fmt.Errorf("max archive size cannot be negative")
	}
	if (c.OutputWidth == 0) != (c.OutputHeight == 0) {
		return fmt.Errorf("output width and height must be set together")
	}
	if c.SMTPHost != "" {
		if c.SenderEmail == "" {
			return fmt.Errorf("sender-email is required when smtp-host is set")
		}
		if len(c.Recipients) == 0 {
			return fmt.Errorf("at least one recipient is required when smtp-host is set")
		}
	}
	return nil
}

// MaxArchiveBytes converts the configured MB limit, zero meaning unlimited.
func (c *Config) MaxArchiveBytes() int64 {
	return int64(c.MaxArchiveMB) << 20
}

// configSetter helps apply configuration values while respecting flag
// precedence. It only applies values if the corresponding flag hasn't been
// explicitly set.
type configSetter struct {
	changed map[string]bool
}

func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

func (s *configSetter) setInt(flag string, value int, dst *int) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

func (s *configSetter) setStrings(flag string, value []string, dst *[]string) {
	if len(value) == 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setDuration parses and sets a duration from string if valid and flag not
// changed.
func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

// setIntFromString parses an int from an environment variable value.
func (s *configSetter) setIntFromString(flag, value string, dst *int) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if i <= 0 {
		return nil
	}
	*dst = i
	return nil
}

// setStringsFromString splits a comma-separated environment variable value.
func (s *configSetter) setStringsFromString(flag, value string, dst *[]string) {
	if value == "" || s.changed[flag] {
		return
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) > 0 {
		*dst = out
	}
}
