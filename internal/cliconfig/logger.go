package cliconfig

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger returns the console logger used before the day-scoped file sink
// exists (flag parsing, config errors).
func Logger() zerolog.Logger {
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	return zerolog.New(out).With().Timestamp().Logger()
}

// LoggerWithSink returns the agent logger writing both to the console and to
// the given sink (the per-day log file the pipeline mails out).
func LoggerWithSink(sink io.Writer) zerolog.Logger {
	console := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	return zerolog.New(zerolog.MultiLevelWriter(console, sink)).With().Timestamp().Logger()
}
