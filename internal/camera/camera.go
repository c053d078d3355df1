package camera

import (
	"errors"
	"time"
)

// ErrNoFrame is returned by Reader.Frame when no frame has been captured yet.
var ErrNoFrame = errors.New("camera: no frame available")

// Frame is a single captured image, already encoded (JPEG bytes) by the
// device. The reader owns a frame until it is published to the slot; readers
// of the slot must not mutate Data.
type Frame struct {
	Data       []byte
	CapturedAt time.Time
}

// Device abstracts a camera handle. Implementations wrap whatever actually
// decodes frames (a local device, a network stream, a directory of images);
// the agent never interprets the source identifier itself.
//
// Open may fail transiently (network camera hiccup); the reader retries it
// indefinitely. Read blocks until a frame is available or the device fails.
type Device interface {
	Open() error
	Read() (*Frame, error)
	Close() error
}

// ReconnectPolicy names the reader's retry behavior so tests can shrink it.
// The reader retries forever; Delay is the pause between attempts.
type ReconnectPolicy struct {
	Delay time.Duration
}

// DefaultReconnectPolicy is a fixed 10s backoff between attempts.
func DefaultReconnectPolicy() ReconnectPolicy {
	return ReconnectPolicy{Delay: 10 * time.Second}
}
