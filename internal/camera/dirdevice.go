package camera

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// DirDevice replays JPEG files from a directory in name order, wrapping
// around at the end. It stands in for real hardware during development and
// tests; select it with a "dir:/path" video source.
type DirDevice struct {
	dir string

	mu    sync.Mutex
	files []string
	next  int
	open  bool
}

// NewDirDevice creates a device backed by dir. The directory is scanned at
// Open so files added between reconnects are picked up.
func NewDirDevice(dir string) *DirDevice {
	return &DirDevice{dir: dir}
}

func (d *DirDevice) Open() error {
	ents, err := os.ReadDir(d.dir)
	if err != nil {
		return fmt.Errorf("dir device: %w", err)
	}
	var files []string
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := strings.ToLower(e.Name())
		if strings.HasSuffix(name, ".jpg") || strings.HasSuffix(name, ".jpeg") {
			files = append(files, filepath.Join(d.dir, e.Name()))
		}
	}
	if len(files) == 0 {
		return fmt.Errorf("dir device: no jpeg files in %s", d.dir)
	}
	sort.Strings(files)

	d.mu.Lock()
	d.files = files
	d.next = 0
	d.open = true
	d.mu.Unlock()
	return nil
}

func (d *DirDevice) Read() (*Frame, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.open {
		return nil, fmt.Errorf("dir device: not open")
	}
	path := d.files[d.next%len(d.files)]
	d.next++
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("dir device: %w", err)
	}
	return &Frame{Data: b, CapturedAt: time.Now()}, nil
}

func (d *DirDevice) Close() error {
	d.mu.Lock()
	d.open = false
	d.mu.Unlock()
	return nil
}
