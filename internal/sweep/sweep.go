// Package sweep reconciles disk against the ledger at startup: it loads and
// prunes the ledger, finds day folders and archives the ledger has no record
// of, and runs the day pipeline on each before capture begins. Running it
// twice with no new data is a no-op.
package sweep

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/strzcam/dayroll/internal/ledger"
)

// Processor runs the day pipeline for one recovered item.
type Processor interface {
	Process(ctx context.Context, path string) error
}

// Sweeper performs the startup recovery pass.
type Sweeper struct {
	ledger        *ledger.Ledger
	proc          Processor
	retentionDays int
	logger        zerolog.Logger
}

// New wires a sweeper. retentionDays <= 0 disables pruning.
func New(led *ledger.Ledger, proc Processor, retentionDays int, logger zerolog.Logger) *Sweeper {
	return &Sweeper{ledger: led, proc: proc, retentionDays: retentionDays, logger: logger}
}

// Run executes one sweep: prune, discover, process. Candidates are handled
// synchronously oldest first; one candidate's failure does not stop the
// rest. today's open folder is always excluded; it belongs to the capture
// loop. The returned error covers only the ledger itself; per-item failures
// are logged and left for the next sweep.
func (s *Sweeper) Run(ctx context.Context, today string, now time.Time) error {
	if err := s.ledger.Load(s.retentionDays, now); err != nil {
		return err
	}

	candidates, err := s.ledger.FindUnprocessed(today)
	if err != nil {
		return err
	}
	if len(candidates) == 0 {
		s.logger.Info().Msg("recovery sweep: nothing to process")
		return nil
	}

	s.logger.Info().Int("candidates", len(candidates)).Msg("recovery sweep: processing backlog")
	for _, item := range candidates {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := s.proc.Process(ctx, item); err != nil {
			s.logger.Error().Err(err).Str("item", item).Msg("recovery sweep: item failed, will retry next start")
			continue
		}
		s.logger.Info().Str("item", item).Msg("recovery sweep: item processed")
	}
	return nil
}
