// Package server serves the public root over HTTP and pushes live reload
// messages to connected browsers when generated files change.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/a-h/templ"

	"github.com/conneroisu/sitepipe/internal/build"
	"github.com/conneroisu/sitepipe/internal/config"
	pipeerrors "github.com/conneroisu/sitepipe/internal/errors"
	"github.com/conneroisu/sitepipe/internal/logging"
	"github.com/conneroisu/sitepipe/internal/version"
	"github.com/conneroisu/sitepipe/internal/watcher"
)

// Reserved paths. They live under a prefix no generated file uses.
const (
	LiveReloadPath = "/__sitepipe/livereload"
	StatusPath     = "/__sitepipe/status"
	HealthPath     = "/__sitepipe/health"
)

// ReportSource supplies the most recent build report. *build.Builder
// implements it.
type ReportSource interface {
	LastReport() *build.Report
}

// Server is the development file server.
type Server struct {
	cfg      config.ServerConfig
	root     string
	debounce time.Duration
	reports  ReportSource
	failures *pipeerrors.Collector
	hub      *Hub
	logger   logging.Logger
	started  time.Time

	mu         sync.Mutex
	httpServer *http.Server
	listener   net.Listener
}

// New creates a server for the public root in cfg. reports and failures
// may be nil.
func New(cfg config.Config, reports ReportSource, failures *pipeerrors.Collector, logger logging.Logger) *Server {
	if failures == nil {
		failures = pipeerrors.NewCollector()
	}
	logger = logger.WithComponent("server")
	return &Server{
		cfg:      cfg.Server,
		root:     cfg.Paths.Public,
		debounce: cfg.Watch.Debounce,
		reports:  reports,
		failures: failures,
		hub:      NewHub(logger),
		logger:   logger,
		started:  time.Now(),
	}
}

// Hub returns the live reload hub.
func (s *Server) Hub() *Hub { return s.hub }

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	if s.cfg.LiveReload {
		mux.Handle(LiveReloadPath, s.hub)
	}
	mux.HandleFunc(StatusPath, s.handleStatus)
	mux.HandleFunc(HealthPath, s.handleHealth)
	mux.Handle("/", &fileHandler{
		root:        s.root,
		defaultFile: s.cfg.DefaultFile,
		liveReload:  s.cfg.LiveReload,
		notFound:    http.HandlerFunc(s.handleNotFound),
	})
	return s.logRequests(mux)
}

// Addr returns the listening address once Run has bound it, or the
// configured address before that.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
}

// Run serves until ctx is cancelled, then shuts down gracefully. Build
// failures elsewhere never stop it.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port)))
	if err != nil {
		return fmt.Errorf("listening on %s:%d: %w", s.cfg.Host, s.cfg.Port, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go s.hub.Run(ctx)

	if s.cfg.LiveReload {
		stop, err := s.watchPublic(ctx)
		if err != nil {
			return err
		}
		defer stop()
	}

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.mu.Lock()
	s.httpServer = srv
	s.listener = ln
	s.mu.Unlock()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	s.logger.Info(ctx, "Serving", "url", "http://"+ln.Addr().String(), "root", s.root, "livereload", s.cfg.LiveReload)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
	defer done()
	s.logger.Info(shutdownCtx, "Shutting down server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	return nil
}

// watchPublic broadcasts reload messages for changes below the public
// root. The root is created if a failed build left it missing.
func (s *Server) watchPublic(ctx context.Context) (func(), error) {
	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return nil, pipeerrors.NewFSError("mkdir", s.root, err)
	}

	fw, err := watcher.NewFileWatcher(s.debounce, s.logger)
	if err != nil {
		return nil, err
	}
	fw.AddFilter(watcher.NoTempFilter)
	fw.AddHandler(func(ctx context.Context, events []watcher.ChangeEvent) error {
		for _, msg := range changeMessages(s.root, events) {
			s.logger.Debug(ctx, "Broadcasting reload", "type", msg.Type, "target", msg.Target)
			s.hub.Broadcast(msg)
		}
		return nil
	})
	if err := fw.AddRecursive(s.root); err != nil {
		_ = fw.Stop()
		return nil, err
	}
	if err := fw.Start(ctx); err != nil {
		_ = fw.Stop()
		return nil, err
	}
	return func() { _ = fw.Stop() }, nil
}

func (s *Server) lastReport() *build.Report {
	if s.reports == nil {
		return nil
	}
	return s.reports.LastReport()
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	templ.Handler(statusPage(s.lastReport(), s.failures.Entries(), s.hub.Clients())).ServeHTTP(w, r)
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	templ.Handler(notFoundPage(r.URL.Path), templ.WithStatus(http.StatusNotFound)).ServeHTTP(w, r)
}

// handleHealth returns the server health status for health checks
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	status := "healthy"
	lastBuild := "none"
	if report := s.lastReport(); report != nil {
		lastBuild = "succeeded"
		if !report.Succeeded() {
			lastBuild = "failed"
			status = "degraded"
		}
	}
	if s.failures.HasErrors() {
		status = "degraded"
	}

	health := map[string]interface{}{
		"status":     status,
		"timestamp":  time.Now().UTC(),
		"uptime":     time.Since(s.started).Round(time.Second).String(),
		"version":    version.GetShortVersion(),
		"last_build": lastBuild,
		"failures":   len(s.failures.Entries()),
		"clients":    s.hub.Clients(),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(health); err != nil {
		s.logger.Warn(r.Context(), err, "Failed to encode health response")
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug(r.Context(), "Request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start).String())
	})
}
