// Package server implements the Strataflow HTTP API: sankey generation,
// session-scoped tree mutation, histograms, filter options, item lookup,
// and cross-session comparison.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/strataviz/strataflow/pkg/cache"
	"github.com/strataviz/strataflow/pkg/dataset"
	"github.com/strataviz/strataflow/pkg/observability"
	"github.com/strataviz/strataflow/pkg/pipeline"
	"github.com/strataviz/strataflow/pkg/tree"
)

// Server wires the dataset, session store, and pipeline runner behind a
// chi router.
type Server struct {
	cfg      Config
	logger   *log.Logger
	data     *dataset.Dataset
	sessions *SessionStore
	runner   *pipeline.Runner
	router   chi.Router
}

// New assembles a server from configuration: it loads the dataset from
// the configured source, opens the configured cache backend, and builds
// the route table. The returned server is ready for Run.
func New(ctx context.Context, cfg Config, logger *log.Logger) (*Server, error) {
	if logger == nil {
		logger = log.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	src, err := openSource(ctx, cfg.Dataset)
	if err != nil {
		return nil, err
	}
	records, err := src.Load(ctx)
	if err != nil {
		_ = src.Close(ctx)
		return nil, fmt.Errorf("load dataset: %w", err)
	}
	if err := src.Close(ctx); err != nil {
		logger.Warn("close dataset source", "err", err)
	}
	logger.Info("loaded dataset", "records", len(records))

	c, err := openCache(ctx, cfg.Cache)
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:      cfg,
		logger:   logger,
		data:     dataset.New(records),
		sessions: NewSessionStore(tree.DefaultCatalog(), cfg.SessionTTL.Duration),
		runner:   pipeline.NewRunner(c, nil, logger),
	}
	s.router = s.routes()
	return s, nil
}

func openSource(ctx context.Context, cfg DatasetConfig) (dataset.Source, error) {
	if cfg.Mongo.URI != "" {
		return dataset.NewMongoSource(ctx, dataset.MongoOptions{
			URI:        cfg.Mongo.URI,
			Database:   cfg.Mongo.Database,
			Collection: cfg.Mongo.Collection,
		})
	}
	if cfg.URL != "" {
		return dataset.NewHTTPSource(cfg.URL, dataset.HTTPOptions{}), nil
	}
	if cfg.Path == "" {
		return nil, fmt.Errorf("no dataset source configured")
	}
	return dataset.NewFileSource(cfg.Path), nil
}

func openCache(ctx context.Context, cfg CacheConfig) (cache.Cache, error) {
	if cfg.Redis.Addr != "" {
		return cache.NewRedisCache(ctx, cache.RedisOptions{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}
	if cfg.Dir != "" {
		return cache.NewFileCache(cfg.Dir)
	}
	return cache.NewNullCache(), nil
}

// Handler returns the server's root handler, exposed for tests.
func (s *Server) Handler() http.Handler { return s.router }

// routes builds the route table.
func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(s.observe)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/filter-options", s.handleFilterOptions)
		r.Post("/histogram", s.handleHistogram)
		r.Post("/sets", s.handleSetCounts)
		r.Get("/items/{id}", s.handleItem)

		r.Post("/sessions", s.handleCreateSession)
		r.Route("/sessions/{sessionID}", func(r chi.Router) {
			r.Delete("/", s.handleDeleteSession)
			r.Get("/tree", s.handleTree)
			r.Post("/sankey", s.handleSankey)
			r.Get("/stage-types", s.handleStageTypes)
			r.Post("/stages", s.handleAddStage)
			r.Delete("/stages/{nodeID}", s.handleRemoveStage)
			r.Post("/reset", s.handleReset)
		})

		r.Post("/compare", s.handleCompare)
	})
	return r
}

// observe logs every request and forwards it to the HTTP hooks.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		observability.HTTP().OnRequest(r.Context(), r.Method, r.Host, r.URL.Path)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		duration := time.Since(start)
		observability.HTTP().OnResponse(r.Context(), r.Method, r.Host, r.URL.Path, ww.Status(), duration)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", duration)
	})
}

// Run serves until the context is cancelled, then shuts down gracefully.
// A background ticker reaps expired sessions while the server runs.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go s.reapSessions(ctx)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", s.cfg.Listen)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		s.logger.Info("server stopped")
		return nil
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen on %s: %w", s.cfg.Listen, err)
		}
		return nil
	}
}

// Close releases the runner's cache backend.
func (s *Server) Close() error {
	return s.runner.Close()
}

func (s *Server) reapSessions(ctx context.Context) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.sessions.Cleanup(); n > 0 {
				s.logger.Info("reaped sessions", "count", n)
			}
		}
	}
}
