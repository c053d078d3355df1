package scheduler

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrJobsTimeout is returned when background jobs do not finish within the
// shutdown grace period.
var ErrJobsTimeout = errors.New("scheduler: pending jobs did not finish in time")

// Jobs tracks dispatched day-processing tasks so pending work is enumerable
// and failures surface in the log, instead of fire-and-forget goroutines.
type Jobs struct {
	logger zerolog.Logger

	mu      sync.Mutex
	pending map[uuid.UUID]string
	wg      sync.WaitGroup
}

// NewJobs creates an empty registry.
func NewJobs(logger zerolog.Logger) *Jobs {
	return &Jobs{logger: logger, pending: make(map[uuid.UUID]string)}
}

// Dispatch runs fn for item on its own goroutine, tracking it until it
// returns. The job's error is logged, not propagated; an unprocessed day is
// recovered by the next startup sweep.
func (j *Jobs) Dispatch(item string, fn func() error) {
	id := uuid.New()

	j.mu.Lock()
	j.pending[id] = item
	j.mu.Unlock()

	j.wg.Add(1)
	go func() {
		defer func() {
			j.mu.Lock()
			delete(j.pending, id)
			j.mu.Unlock()
			j.wg.Done()
		}()

		log := j.logger.With().Str("job", id.String()).Str("item", item).Logger()
		log.Info().Msg("job started")
		if err := fn(); err != nil {
			log.Error().Err(err).Msg("job failed")
			return
		}
		log.Info().Msg("job finished")
	}()
}

// Pending returns the items currently being processed, sorted for stable
// output.
func (j *Jobs) Pending() []string {
	j.mu.Lock()
	defer j.mu.Unlock()

	items := make([]string, 0, len(j.pending))
	for _, item := range j.pending {
		items = append(items, item)
	}
	sort.Strings(items)
	return items
}

// Wait blocks until all dispatched jobs finish or the timeout expires.
// In-flight pipelines are never cancelled; the timeout only bounds how long
// process shutdown waits for them.
func (j *Jobs) Wait(timeout time.Duration) error {
	done := make(chan struct{})
	go func() {
		j.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		j.logger.Warn().
			Strs("pending", j.Pending()).
			Dur("timeout", timeout).
			Msg("giving up waiting for background jobs")
		return ErrJobsTimeout
	}
}
