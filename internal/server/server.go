// Package server provides the HTTP API for kiji.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hyperjump/kiji/internal/analysis"
	"github.com/hyperjump/kiji/internal/config"
	"github.com/hyperjump/kiji/internal/search"
	"github.com/hyperjump/kiji/internal/storage"
	"github.com/hyperjump/kiji/pkg/utils"
	"go.uber.org/zap"
)

// Server is the HTTP server for the kiji API.
type Server struct {
	orchestrator *search.Orchestrator
	analyzer     *analysis.Analyzer
	library      *analysis.Library
	storage      storage.Storage
	live         *config.Live
	configPath   string
	// configMu serialises writes of the config file.
	configMu  sync.Mutex
	logger    *zap.Logger
	server    *http.Server
	startedAt time.Time
}

// NewServer creates a server with the given dependencies. configPath may be empty, in
// which case settings changes are not persisted.
func NewServer(
	orchestrator *search.Orchestrator,
	analyzer *analysis.Analyzer,
	library *analysis.Library,
	store storage.Storage,
	live *config.Live,
	logger *zap.Logger,
	configPath string,
) *Server {
	return &Server{
		orchestrator: orchestrator,
		analyzer:     analyzer,
		library:      library,
		storage:      store,
		live:         live,
		configPath:   configPath,
		logger:       utils.OrNop(logger),
		startedAt:    time.Now(),
	}
}

// Handler returns the API router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)
	r.Use(middleware.Timeout(5 * time.Minute))
	r.Use(middleware.Compress(5))

	r.Get("/health", s.handleHealth)
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", s.handleStatus)

		r.Post("/search", s.handleSearch)
		r.Post("/search/feed", s.handleSearchFeed)
		r.Post("/synonyms", s.handleSynonyms)

		r.Post("/analyze", s.handleAnalyze)

		r.Get("/articles", s.handleListArticles)
		r.Get("/articles/latest", s.handleLatestArticles)
		r.Post("/articles", s.handleSaveArticle)
		r.Post("/articles/links", s.handleLinkDetails)
		r.Get("/articles/{id}", s.handleGetArticle)
		r.Delete("/articles/{id}", s.handleDeleteArticle)

		r.Get("/feeds", s.handleListFeeds)
		r.Post("/feeds", s.handleAddFeed)
		r.Put("/feeds", s.handleUpdateFeed)
		r.Delete("/feeds", s.handleDeleteFeed)

		r.Get("/settings/feeds", s.handleGetFeedSettings)
		r.Put("/settings/feeds", s.handleUpdateFeedSettings)
	})
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	cfg := s.live.Get().Server
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())))
	})
}
