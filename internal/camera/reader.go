package camera

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Reader keeps the most recent frame from a Device available without ever
// blocking its callers. It runs one background goroutine that reads frames
// continuously, reconnecting on failure, and publishes each frame into a
// single-slot mailbox (atomic pointer swap, last write wins).
type Reader struct {
	dev    Device
	policy ReconnectPolicy
	logger zerolog.Logger

	slot atomic.Pointer[Frame]

	mu      sync.Mutex
	stop    chan struct{}
	done    chan struct{}
	started bool
}

// NewReader wraps dev. Start must be called before Frame returns anything.
func NewReader(dev Device, policy ReconnectPolicy, logger zerolog.Logger) *Reader {
	if policy.Delay <= 0 {
		policy = DefaultReconnectPolicy()
	}
	return &Reader{dev: dev, policy: policy, logger: logger}
}

// Start launches the background reader. Calling Start on a running reader is
// a no-op.
func (r *Reader) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return
	}
	r.stop = make(chan struct{})
	r.done = make(chan struct{})
	r.started = true
	go r.loop(r.stop, r.done)
}

// Frame returns the most recently captured frame, or ErrNoFrame if the
// device has not produced one yet. Safe to call concurrently with the
// reader's writes.
func (r *Reader) Frame() (*Frame, error) {
	f := r.slot.Load()
	if f == nil {
		return nil, ErrNoFrame
	}
	return f, nil
}

// Stop signals the reader to halt, blocks until the goroutine has exited,
// then releases the device. A stopped reader cannot be restarted.
func (r *Reader) Stop() {
	r.mu.Lock()
	if !r.started {
		r.mu.Unlock()
		return
	}
	stop, done := r.stop, r.done
	r.started = false
	r.mu.Unlock()

	close(stop)
	<-done
	if err := r.dev.Close(); err != nil {
		r.logger.Warn().Err(err).Msg("camera: close failed")
	}
}

func (r *Reader) loop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	opened := false
	for {
		select {
		case <-stop:
			return
		default:
		}

		if !opened {
			if err := r.dev.Open(); err != nil {
				r.logger.Warn().Err(err).
					Dur("retry_in", r.policy.Delay).
					Msg("camera: open failed, will retry")
				if !r.sleep(stop) {
					return
				}
				continue
			}
			opened = true
		}

		frame, err := r.dev.Read()
		if err != nil {
			r.logger.Warn().Err(err).
				Dur("retry_in", r.policy.Delay).
				Msg("camera: read failed, reconnecting")
			if cerr := r.dev.Close(); cerr != nil {
				r.logger.Warn().Err(cerr).Msg("camera: close during reconnect failed")
			}
			opened = false
			if !r.sleep(stop) {
				return
			}
			continue
		}

		r.slot.Store(frame)
	}
}

// sleep waits out the reconnect delay. Returns false if stopped meanwhile.
func (r *Reader) sleep(stop <-chan struct{}) bool {
	t := time.NewTimer(r.policy.Delay)
	defer t.Stop()
	select {
	case <-stop:
		return false
	case <-t.C:
		return true
	}
}
