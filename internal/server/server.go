package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"ATHScanner/internal/logger"
	"ATHScanner/internal/model"
	"ATHScanner/internal/recorder"
)

// Scanner is the part of the orchestrator the API drives.
type Scanner interface {
	StartScan(ctx context.Context) (string, error)
	CancelScan() error
	CurrentProgress() model.ScanProgress
	LastReport() *model.ScanReport
}

// ResultsSource serves the last published results document.
type ResultsSource interface {
	Latest() (*recorder.ResultsDocument, error)
}

// HistorySource lists past scans.
type HistorySource interface {
	History(ctx context.Context, limit int) ([]recorder.ScanSummary, error)
}

// SymbolCounter reports the directory size and whether it came from cache.
type SymbolCounter interface {
	Count(ctx context.Context) (int, bool, error)
}

// Config holds the HTTP server settings.
type Config struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	LogTail      int
}

// Deps are the collaborators behind the routes. Only Scanner is required.
type Deps struct {
	Scanner  Scanner
	Results  ResultsSource
	History  HistorySource
	Symbols  SymbolCounter
	Hub      *Hub
	Metrics  http.Handler
	LogFile  string
	Location *time.Location
}

// Server is the HTTP API server.
type Server struct {
	router *mux.Router
	server *http.Server
	cfg    Config
	deps   Deps
	log    *logrus.Entry
}

func New(cfg Config, deps Deps) *Server {
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 15 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 15 * time.Second
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = 60 * time.Second
	}
	if cfg.LogTail <= 0 {
		cfg.LogTail = 100
	}
	if deps.Location == nil {
		deps.Location = time.Local
	}

	s := &Server{
		router: mux.NewRouter(),
		cfg:    cfg,
		deps:   deps,
		log:    logger.GetLogger().WithComponent("server"),
	}
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(s.requestIDMiddleware)
	s.router.Use(s.requestLoggingMiddleware)

	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	if s.deps.Metrics != nil {
		s.router.Handle("/metrics", s.deps.Metrics).Methods(http.MethodGet)
	}
	if s.deps.Hub != nil {
		s.router.HandleFunc("/api/ws", s.deps.Hub.ServeWS).Methods(http.MethodGet)
	}

	api := s.router.PathPrefix("/api").Subrouter()
	api.Use(jsonContentTypeMiddleware)
	api.HandleFunc("/results", s.handleResults).Methods(http.MethodGet)
	api.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	api.HandleFunc("/scan", s.handleStartScan).Methods(http.MethodPost)
	api.HandleFunc("/scan/cancel", s.handleCancelScan).Methods(http.MethodPost)
	api.HandleFunc("/log", s.handleLog).Methods(http.MethodGet)
	api.HandleFunc("/symbols/count", s.handleSymbolCount).Methods(http.MethodGet)
	api.HandleFunc("/history", s.handleHistory).Methods(http.MethodGet)
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.router }

// Start blocks until the server stops. It returns nil after Shutdown.
func (s *Server) Start() error {
	s.log.Infof("HTTP server listening on %s", s.cfg.Addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Shutting down HTTP server")
	if s.deps.Hub != nil {
		s.deps.Hub.Close()
	}
	return s.server.Shutdown(ctx)
}
