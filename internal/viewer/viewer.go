// Package viewer exposes read-only HTTP browsing of the capture output:
// open day folders, archived days, and per-day logs. It consumes the same
// on-disk layout the capture agent writes and never mutates it.
package viewer

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/strzcam/dayroll/internal/dates"
)

// Server serves the viewer pages.
type Server struct {
	saveDir string
	logsDir string
	logger  zerolog.Logger
}

// New creates a viewer over the agent's save and logs directories.
func New(saveDir, logsDir string, logger zerolog.Logger) *Server {
	return &Server{saveDir: saveDir, logsDir: logsDir, logger: logger}
}

// Handler returns the viewer's routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /days", s.handleDays)
	mux.HandleFunc("GET /days/{day}", s.handleDay)
	mux.HandleFunc("GET /days/{day}/{file}", s.handleImage)
	mux.HandleFunc("GET /logs", s.handleLogs)
	mux.HandleFunc("GET /logs/{day}", s.handleLog)
	return mux
}

// ListenAndServe runs the viewer until ctx ends, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Handler()}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", addr).Msg("viewer listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

type dayListing struct {
	Open     []string
	Archived []string
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/days", http.StatusFound)
}

func (s *Server) handleDays(w http.ResponseWriter, r *http.Request) {
	ents, err := os.ReadDir(s.saveDir)
	if err != nil {
		s.fail(w, err, http.StatusInternalServerError)
		return
	}

	var listing dayListing
	for _, e := range ents {
		name := e.Name()
		switch {
		case e.IsDir():
			if _, ok := dates.Parse(name); ok {
				listing.Open = append(listing.Open, name)
			}
		case strings.HasSuffix(name, ".zip"):
			day := strings.TrimSuffix(name, ".zip")
			if _, ok := dates.Parse(day); ok {
				listing.Archived = append(listing.Archived, day)
			}
		}
	}
	sort.Strings(listing.Open)
	sort.Strings(listing.Archived)
	s.render(w, daysTmpl, listing)
}

type dayPage struct {
	Day      string
	Archived bool
	Images   []string
}

func (s *Server) handleDay(w http.ResponseWriter, r *http.Request) {
	day := r.PathValue("day")
	if _, ok := dates.Parse(day); !ok {
		http.NotFound(w, r)
		return
	}

	page := dayPage{Day: day}
	dayDir := filepath.Join(s.saveDir, day)
	if info, err := os.Stat(dayDir); err == nil && info.IsDir() {
		ents, err := os.ReadDir(dayDir)
		if err != nil {
			s.fail(w, err, http.StatusInternalServerError)
			return
		}
		for _, e := range ents {
			if !e.IsDir() {
				page.Images = append(page.Images, e.Name())
			}
		}
	} else {
		names, err := zipNames(dayDir + ".zip")
		if err != nil {
			http.NotFound(w, r)
			return
		}
		page.Archived = true
		page.Images = names
	}
	sort.Strings(page.Images)
	s.render(w, dayTmpl, page)
}

func (s *Server) handleImage(w http.ResponseWriter, r *http.Request) {
	day, file := r.PathValue("day"), r.PathValue("file")
	if _, ok := dates.Parse(day); !ok || file != filepath.Base(file) {
		http.NotFound(w, r)
		return
	}

	dayDir := filepath.Join(s.saveDir, day)
	if info, err := os.Stat(dayDir); err == nil && info.IsDir() {
		http.ServeFile(w, r, filepath.Join(dayDir, file))
		return
	}

	if err := serveFromZip(w, dayDir+".zip", file); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			http.NotFound(w, r)
			return
		}
		s.fail(w, err, http.StatusInternalServerError)
	}
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	ents, err := os.ReadDir(s.logsDir)
	if err != nil {
		s.fail(w, err, http.StatusInternalServerError)
		return
	}

	var days []string
	for _, e := range ents {
		name := e.Name()
		if !strings.HasPrefix(name, "log_") || !strings.HasSuffix(name, ".log") {
			continue
		}
		day := strings.TrimSuffix(strings.TrimPrefix(name, "log_"), ".log")
		if _, ok := dates.Parse(day); ok {
			days = append(days, day)
		}
	}
	sort.Strings(days)
	s.render(w, logsTmpl, days)
}

type logPage struct {
	Day     string
	Content string
}

func (s *Server) handleLog(w http.ResponseWriter, r *http.Request) {
	day := r.PathValue("day")
	if _, ok := dates.Parse(day); !ok {
		http.NotFound(w, r)
		return
	}
	b, err := os.ReadFile(filepath.Join(s.logsDir, dates.LogName(day)))
	if err != nil {
		http.NotFound(w, r)
		return
	}
	s.render(w, logTmpl, logPage{Day: day, Content: string(b)})
}

func (s *Server) render(w http.ResponseWriter, tmpl *template.Template, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.Execute(w, data); err != nil {
		s.logger.Warn().Err(err).Msg("viewer: template render failed")
	}
}

func (s *Server) fail(w http.ResponseWriter, err error, code int) {
	s.logger.Warn().Err(err).Msg("viewer: request failed")
	http.Error(w, http.StatusText(code), code)
}

func zipNames(path string) ([]string, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	names := make([]string, 0, len(zr.File))
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	return names, nil
}

func serveFromZip(w http.ResponseWriter, zipPath, name string) error {
	zr, err := zip.OpenReader(zipPath)
	if err != nil {
		return err
	}
	defer zr.Close()

	f, err := zr.Open(name)
	if err != nil {
		return fmt.Errorf("%s: %w", name, os.ErrNotExist)
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg":
		w.Header().Set("Content-Type", "image/jpeg")
	case ".png":
		w.Header().Set("Content-Type", "image/png")
	case ".webp":
		w.Header().Set("Content-Type", "image/webp")
	default:
		w.Header().Set("Content-Type", "application/octet-stream")
	}
	_, err = io.Copy(w, f)
	return err
}

var (
	daysTmpl = template.Must(template.New("days").Parse(`<!doctype html>
<title>Captured days</title>
<h1>Captured days</h1>
<h2>Open</h2>
<ul>{{range .Open}}<li><a href="/days/{{.}}">{{.}}</a></li>{{else}}<li>none</li>{{end}}</ul>
<h2>Archived</h2>
<ul>{{range .Archived}}<li><a href="/days/{{.}}">{{.}}</a></li>{{else}}<li>none</li>{{end}}</ul>
<p><a href="/logs">Logs</a></p>
`))

	dayTmpl = template.Must(template.New("day").Parse(`<!doctype html>
<title>{{.Day}}</title>
<h1>{{.Day}}{{if .Archived}} (archived){{end}}</h1>
<ul>{{range .Images}}<li><a href="/days/{{$.Day}}/{{.}}">{{.}}</a></li>{{else}}<li>no images</li>{{end}}</ul>
<p><a href="/days">Back</a></p>
`))

	logsTmpl = template.Must(template.New("logs").Parse(`<!doctype html>
<title>Logs</title>
<h1>Logs</h1>
<ul>{{range .}}<li><a href="/logs/{{.}}">{{.}}</a></li>{{else}}<li>none</li>{{end}}</ul>
<p><a href="/days">Days</a></p>
`))

	logTmpl = template.Must(template.New("log").Parse(`<!doctype html>
<title>Log {{.Day}}</title>
<h1>Log {{.Day}}</h1>
<pre>{{.Content}}</pre>
<p><a href="/logs">Back</a></p>
`))
)
