// Package server provides the HTTP API for mitsukeru.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hyperjump/mitsukeru/internal/config"
	"github.com/hyperjump/mitsukeru/internal/dates"
	"github.com/hyperjump/mitsukeru/internal/indexer"
	"github.com/hyperjump/mitsukeru/internal/search"
	"github.com/hyperjump/mitsukeru/internal/session"
	"github.com/hyperjump/mitsukeru/internal/storage"
	"go.uber.org/zap"
)

// WatchService manages the set of watched directories.
type WatchService interface {
	Directories() []string
	AddDirectory(path string, syncExisting bool) error
	RemoveDirectory(path string) error
}

// Server is the HTTP server for the mitsukeru API.
type Server struct {
	engine    *search.Engine
	indexer   *indexer.Indexer
	storage   storage.Storage
	config    *config.Config
	extractor *dates.Extractor
	sessions  *registry
	logger    *zap.Logger
	server    *http.Server

	watch      WatchService
	configPath string
	configMu   sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
}

// Option configures a Server.
type Option func(*Server)

// WithWatch exposes the watch directory endpoints. When configPath is set,
// directory edits are saved back to the config file.
func WithWatch(ws WatchService, configPath string) Option {
	return func(s *Server) {
		s.watch = ws
		s.configPath = configPath
	}
}

// WithExtractor sets the date extractor used by the parse endpoint.
func WithExtractor(e *dates.Extractor) Option {
	return func(s *Server) {
		if e != nil {
			s.extractor = e
		}
	}
}

// WithSessionFactory overrides how sessions are built.
func WithSessionFactory(f SessionFactory) Option {
	return func(s *Server) {
		if f != nil {
			s.sessions.factory = f
		}
	}
}

// NewServer creates a server with the given dependencies.
func NewServer(
	engine *search.Engine,
	idx *indexer.Indexer,
	store storage.Storage,
	cfg *config.Config,
	logger *zap.Logger,
	opts ...Option,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		engine:    engine,
		indexer:   idx,
		storage:   store,
		config:    cfg,
		extractor: dates.NewExtractor(),
		logger:    logger,
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.sessions = newRegistry(func(pageSize int) *session.Session {
		return session.New(engine,
			session.WithPageSize(pageSize),
			session.WithExtractor(s.extractor),
			session.WithLogger(logger),
		)
	}, cfg.Server.SessionIdleTimeout, logger)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the API router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))

	r.Get("/health", s.handleHealth)
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Post("/parse", s.handleParse)
		r.Post("/index", s.handleIndex)

		r.Post("/sessions", s.handleSessionCreate)
		r.Route("/sessions/{id}", func(r chi.Router) {
			r.Get("/", s.handleSessionGet)
			r.Delete("/", s.handleSessionDelete)
			r.Post("/search", s.handleSessionSearch)
			r.Post("/more", s.handleSessionMore)
			r.Get("/thumbnail", s.handleSessionThumbnail)
		})

		r.Post("/documents/open", s.handleDocumentOpen)
		r.Post("/documents/pin", s.handleDocumentPin)
		r.Get("/documents/{id}", s.handleGetDocument)
		r.Delete("/documents/{id}", s.handleDeleteDocument)

		r.Get("/watch/directories", s.handleWatchDirectoriesList)
		r.Post("/watch/directories", s.handleWatchDirectoriesAdd)
		r.Delete("/watch/directories", s.handleWatchDirectoriesRemove)
	})
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	go s.sessions.run(s.ctx)

	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.Handler(),
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server and closes open sessions.
func (s *Server) Stop(ctx context.Context) error {
	s.cancel()
	defer s.sessions.closeAll()
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
