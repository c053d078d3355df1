package notify

import (
	"context"

	"github.com/rs/zerolog"
)

// Noop is used when no SMTP settings are configured: the pipeline archives
// and records days normally but nothing is mailed.
type Noop struct {
	Logger zerolog.Logger
}

// Send logs the skipped delivery and reports success.
func (n Noop) Send(_ context.Context, filePaths []string, subject, _ string) error {
	n.Logger.Warn().
		Strs("files", filePaths).
		Str("subject", subject).
		Msg("no notifier configured, skipping send")
	return nil
}
