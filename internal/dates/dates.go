// Package dates fixes the on-disk naming scheme shared by every component:
// day folders, archives, log files and ledger entries all embed the same
// calendar-date stamp.
package dates

import (
	"path/filepath"
	"strings"
	"time"
)

// Layout is the calendar-date stamp used in folder, archive and log names.
const Layout = "2006_01_02"

// TimeLayout is the time-of-capture label used for image file names, chosen
// so lexical order equals capture order within a day.
const TimeLayout = "15_04_05"

// Format returns the day stamp for t.
func Format(t time.Time) string { return t.Format(Layout) }

// Parse reports whether name is a valid day stamp and returns its date.
func Parse(name string) (time.Time, bool) {
	t, err := time.Parse(Layout, name)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// FromPath extracts the day stamp embedded in a day folder or archive path
// ("/save/2024_01_02" or "/save/2024_01_02.zip").
func FromPath(path string) (string, bool) {
	name := strings.TrimSuffix(filepath.Base(path), ".zip")
	if _, ok := Parse(name); !ok {
		return "", false
	}
	return name, true
}

// LogName returns the log file name for a day stamp.
func LogName(day string) string { return "log_" + day + ".log" }
