package scheduler

import (
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestJobs_WaitReturnsWhenAllFinish(t *testing.T) {
	j := NewJobs(zerolog.Nop())

	release := make(chan struct{})
	j.Dispatch("a", func() error { <-release; return nil })
	j.Dispatch("b", func() error { <-release; return errors.New("boom") })

	pending := j.Pending()
	if len(pending) != 2 || pending[0] != "a" || pending[1] != "b" {
		t.Fatalf("unexpected pending items %v", pending)
	}

	close(release)
	if err := j.Wait(2 * time.Second); err != nil {
		t.Fatalf("wait: %v", err)
	}
	if got := j.Pending(); len(got) != 0 {
		t.Fatalf("expected no pending items, got %v", got)
	}
}

func TestJobs_WaitTimesOutOnStuckJob(t *testing.T) {
	j := NewJobs(zerolog.Nop())

	release := make(chan struct{})
	defer close(release)
	j.Dispatch("stuck", func() error { <-release; return nil })

	if err := j.Wait(10 * time.Millisecond); !errors.Is(err, ErrJobsTimeout) {
		t.Fatalf("expected ErrJobsTimeout, got %v", err)
	}
	if got := j.Pending(); len(got) != 1 || got[0] != "stuck" {
		t.Fatalf("expected the stuck item to stay pending, got %v", got)
	}
}

func TestJobs_FailureDoesNotBlockOthers(t *testing.T) {
	j := NewJobs(zerolog.Nop())

	j.Dispatch("fails", func() error { return errors.New("boom") })
	j.Dispatch("works", func() error { return nil })

	if err := j.Wait(2 * time.Second); err != nil {
		t.Fatalf("wait: %v", err)
	}
}
