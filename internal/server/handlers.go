package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hyperjump/kiji/internal/analysis"
	"github.com/hyperjump/kiji/internal/config"
	"github.com/hyperjump/kiji/internal/models"
	"github.com/hyperjump/kiji/internal/storage"
	"go.uber.org/zap"
)

const (
	// HeaderRole carries the caller's role.
	HeaderRole = "X-Kiji-Role"
	// HeaderUser carries the caller's id.
	HeaderUser = "X-Kiji-User"
)

// callerFrom reads the caller from request headers. A missing role is a plain user.
func callerFrom(r *http.Request) models.Caller {
	return models.Caller{
		ID:   strings.TrimSpace(r.Header.Get(HeaderUser)),
		Role: models.ParseRole(r.Header.Get(HeaderRole)),
	}
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req models.SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("search request", zap.String("query", req.Query))
	resp, err := s.orchestrator.GlobalSearch(r.Context(), req.Query)
	if err != nil {
		s.logger.Error("search failed", zap.Error(err))
		if resp != nil {
			s.respondJSON(w, http.StatusInternalServerError, map[string]interface{}{
				"error": err.Error(),
				"log":   resp.Log,
			})
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleLatestArticles(w http.ResponseWriter, r *http.Request) {
	resp, err := s.orchestrator.Latest(r.Context())
	if err != nil {
		s.logger.Error("latest articles failed", zap.Error(err))
		s.respondJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"error": err.Error(),
			"log":   resp.Log,
		})
		return
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSearchFeed(w http.ResponseWriter, r *http.Request) {
	var req models.FeedSearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Feed.URL) == "" {
		s.respondError(w, http.StatusBadRequest, "feed url is required")
		return
	}
	if req.Index < 1 {
		req.Index = 1
	}
	if req.Total < req.Index {
		req.Total = req.Index
	}
	res := s.orchestrator.SearchSingleFeed(r.Context(), req.Groups, req.Feed, req.Index, req.Total)
	s.respondJSON(w, http.StatusOK, res)
}

func (s *Server) handleSynonyms(w http.ResponseWriter, r *http.Request) {
	var req models.SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	groups := s.orchestrator.ExpandQuery(r.Context(), req.Query)
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"query": req.Query, "groups": groups})
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var in analysis.AnalyzeInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	res, err := s.analyzer.Analyze(r.Context(), in)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, res)
}

func (s *Server) handleListArticles(w http.ResponseWriter, r *http.Request) {
	articles, err := s.storage.ListAll(r.Context())
	if err != nil {
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"articles": articles, "total": len(articles)})
}

func (s *Server) handleGetArticle(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	a, err := s.storage.GetByID(r.Context(), id)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, a)
}

func (s *Server) handleSaveArticle(w http.ResponseWriter, r *http.Request) {
	var in analysis.SaveInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	res, err := s.library.Save(r.Context(), callerFrom(r), in)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	status := http.StatusOK
	if res.Operation == models.SaveNew {
		status = http.StatusCreated
	}
	s.respondJSON(w, status, res)
}

func (s *Server) handleDeleteArticle(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.logger.Debug("delete article request", zap.String("id", id))
	if err := s.library.Delete(r.Context(), callerFrom(r), id); err != nil {
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"id": id, "status": "deleted"})
}

func (s *Server) handleLinkDetails(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IDs []string `json:"ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	details, err := s.library.LinkDetails(r.Context(), req.IDs)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"articles": details})
}

func (s *Server) handleListFeeds(w http.ResponseWriter, r *http.Request) {
	feeds, err := s.storage.ListFeeds(r.Context())
	if err != nil {
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"feeds": feeds})
}

func (s *Server) handleAddFeed(w http.ResponseWriter, r *http.Request) {
	if !callerFrom(r).CanManage() {
		s.respondErr(w, analysis.ErrForbidden)
		return
	}
	var f models.FeedSource
	if err := json.NewDecoder(r.Body).Decode(&f); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := f.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.storage.AddFeed(r.Context(), f); err != nil {
		s.respondErr(w, err)
		return
	}
	s.logger.Info("feed added", zap.String("name", f.Name), zap.String("url", f.URL))
	s.respondJSON(w, http.StatusCreated, f)
}

func (s *Server) handleUpdateFeed(w http.ResponseWriter, r *http.Request) {
	if !callerFrom(r).CanManage() {
		s.respondErr(w, analysis.ErrForbidden)
		return
	}
	original := r.URL.Query().Get("url")
	if original == "" {
		s.respondError(w, http.StatusBadRequest, "url query parameter is required")
		return
	}
	var f models.FeedSource
	if err := json.NewDecoder(r.Body).Decode(&f); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := f.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.storage.UpdateFeed(r.Context(), original, f); err != nil {
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, f)
}

func (s *Server) handleDeleteFeed(w http.ResponseWriter, r *http.Request) {
	if !callerFrom(r).CanManage() {
		s.respondErr(w, analysis.ErrForbidden)
		return
	}
	url := r.URL.Query().Get("url")
	if url == "" {
		s.respondError(w, http.StatusBadRequest, "url query parameter is required")
		return
	}
	if err := s.storage.DeleteFeed(r.Context(), url); err != nil {
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"url": url, "status": "removed"})
}

// feedSettings is the editable subset of config.FeedsConfig. Nil fields are unchanged.
type feedSettings struct {
	TimeoutSeconds     *int  `json:"timeout_seconds,omitempty"`
	MaxFeedsPerSearch  *int  `json:"max_feeds_per_search,omitempty"`
	MaxArticlesPerFeed *int  `json:"max_articles_per_feed,omitempty"`
	AutoRemoveBadFeeds *bool `json:"auto_remove_bad_feeds,omitempty"`
	Concurrency        *int  `json:"concurrency,omitempty"`
}

func settingsOf(f config.FeedsConfig) feedSettings {
	return feedSettings{
		TimeoutSeconds:     &f.TimeoutSeconds,
		MaxFeedsPerSearch:  &f.MaxFeedsPerSearch,
		MaxArticlesPerFeed: &f.MaxArticlesPerFeed,
		AutoRemoveBadFeeds: &f.AutoRemoveBadFeeds,
		Concurrency:        &f.Concurrency,
	}
}

func (s *Server) handleGetFeedSettings(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, settingsOf(s.live.Feeds()))
}

func (s *Server) handleUpdateFeedSettings(w http.ResponseWriter, r *http.Request) {
	if !callerFrom(r).CanManage() {
		s.respondErr(w, analysis.ErrForbidden)
		return
	}
	var req feedSettings
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	for _, v := range []*int{req.TimeoutSeconds, req.MaxFeedsPerSearch, req.MaxArticlesPerFeed, req.Concurrency} {
		if v != nil && *v < 1 {
			s.respondError(w, http.StatusBadRequest, "numeric settings must be at least 1")
			return
		}
	}

	s.configMu.Lock()
	defer s.configMu.Unlock()
	cfg := *s.live.Get()
	if req.TimeoutSeconds != nil {
		cfg.Feeds.TimeoutSeconds = *req.TimeoutSeconds
	}
	if req.MaxFeedsPerSearch != nil {
		cfg.Feeds.MaxFeedsPerSearch = *req.MaxFeedsPerSearch
	}
	if req.MaxArticlesPerFeed != nil {
		cfg.Feeds.MaxArticlesPerFeed = *req.MaxArticlesPerFeed
	}
	if req.AutoRemoveBadFeeds != nil {
		cfg.Feeds.AutoRemoveBadFeeds = *req.AutoRemoveBadFeeds
	}
	if req.Concurrency != nil {
		cfg.Feeds.Concurrency = *req.Concurrency
	}
	s.live.Set(&cfg)
	if s.configPath != "" {
		if err := config.Save(s.configPath, &cfg); err != nil {
			s.logger.Warn("failed to persist feed settings", zap.Error(err))
		}
	}
	s.respondJSON(w, http.StatusOK, settingsOf(cfg.Feeds))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	articleCount, err := s.storage.CountArticles(ctx)
	if err != nil {
		s.logger.Error("status: count articles failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	feeds, err := s.storage.ListFeeds(ctx)
	if err != nil {
		s.logger.Error("status: list feeds failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	cfg := s.live.Get()
	resp := map[string]interface{}{
		"saved_articles": articleCount,
		"feeds":          len(feeds),
		"uptime_seconds": int64(time.Since(s.startedAt).Seconds()),
	}
	if diskBytes, err := storage.DatabaseSizeBytes(cfg.Storage.DatabasePath); err == nil {
		resp["disk_usage_bytes"] = diskBytes
	}
	resp["config"] = map[string]interface{}{
		"database_path":         cfg.Storage.DatabasePath,
		"feed_timeout_seconds":  cfg.Feeds.TimeoutSeconds,
		"max_feeds_per_search":  cfg.Feeds.MaxFeedsPerSearch,
		"max_articles_per_feed": cfg.Feeds.MaxArticlesPerFeed,
		"auto_remove_bad_feeds": cfg.Feeds.AutoRemoveBadFeeds,
		"feed_concurrency":      cfg.Feeds.Concurrency,
		"similarity_threshold":  cfg.Similarity.ConfidenceThreshold,
		"ai_host":               cfg.AI.Host,
		"ai_model":              cfg.AI.Model,
	}
	s.respondJSON(w, http.StatusOK, resp)
}

// respondErr maps domain errors onto HTTP statuses.
func (s *Server) respondErr(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, analysis.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, analysis.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, storage.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, storage.ErrFeedExists):
		status = http.StatusConflict
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", zap.Error(err))
	}
	s.respondError(w, status, err.Error())
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
