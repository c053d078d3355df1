package camera

import (
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"
	"sync"
	"time"
)

// MJPEGDevice reads frames from a network camera exposing an MJPEG stream
// (multipart/x-mixed-replace over HTTP). Each part of the stream is one
// JPEG frame.
type MJPEGDevice struct {
	url    string
	client *http.Client

	mu   sync.Mutex
	body io.ReadCloser
	mr   *multipart.Reader
}

// NewMJPEGDevice creates a device for the given stream URL. The client has
// no overall timeout; the stream is long-lived and a stalled read surfaces
// as a Read error that triggers the reader's reconnect.
func NewMJPEGDevice(url string) *MJPEGDevice {
	return &MJPEGDevice{url: url, client: &http.Client{}}
}

func (d *MJPEGDevice) Open() error {
	resp, err := d.client.Get(d.url)
	if err != nil {
		return fmt.Errorf("mjpeg: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return fmt.Errorf("mjpeg: %s returned %s", d.url, resp.Status)
	}
	mediaType, params, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil || !strings.HasPrefix(mediaType, "multipart/") || params["boundary"] == "" {
		resp.Body.Close()
		return fmt.Errorf("mjpeg: %s is not a multipart stream (%s)", d.url, resp.Header.Get("Content-Type"))
	}

	d.mu.Lock()
	d.body = resp.Body
	d.mr = multipart.NewReader(resp.Body, params["boundary"])
	d.mu.Unlock()
	return nil
}

func (d *MJPEGDevice) Read() (*Frame, error) {
	d.mu.Lock()
	mr := d.mr
	d.mu.Unlock()
	if mr == nil {
		return nil, fmt.Errorf("mjpeg: not open")
	}

	part, err := mr.NextPart()
	if err != nil {
		return nil, fmt.Errorf("mjpeg: %w", err)
	}
	data, err := io.ReadAll(part)
	part.Close()
	if err != nil {
		return nil, fmt.Errorf("mjpeg: %w", err)
	}
	return &Frame{Data: data, CapturedAt: time.Now()}, nil
}

func (d *MJPEGDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.mr = nil
	if d.body == nil {
		return nil
	}
	err := d.body.Close()
	d.body = nil
	return err
}
