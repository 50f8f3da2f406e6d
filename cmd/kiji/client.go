package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/hyperjump/kiji/internal/cli"
	"github.com/hyperjump/kiji/internal/models"
	"github.com/hyperjump/kiji/internal/server"
	"github.com/hyperjump/kiji/internal/storage"
)

// apiClient talks to a running kiji server.
type apiClient struct {
	baseURL string
	role    models.Role
	http    *http.Client
}

func newAPIClient(baseURL string, role models.Role) *apiClient {
	return &apiClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		role:    role,
		// a global search waits for every feed in turn
		http: &http.Client{Timeout: 10 * time.Minute},
	}
}

// do sends body as JSON and decodes a response with status want into out.
func (c *apiClient) do(method, path string, body, out interface{}, want int) error {
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, c.baseURL+path, r)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.role != "" {
		req.Header.Set(server.HeaderRole, string(c.role))
		req.Header.Set(server.HeaderUser, "kiji-cli")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != want {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *apiClient) search(query string) (*models.GlobalSearchResponse, error) {
	var resp models.GlobalSearchResponse
	if err := c.do(http.MethodPost, "/api/v1/search", models.SearchRequest{Query: query}, &resp, http.StatusOK); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *apiClient) latest() (*models.GlobalSearchResponse, error) {
	var resp models.GlobalSearchResponse
	if err := c.do(http.MethodGet, "/api/v1/articles/latest", nil, &resp, http.StatusOK); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *apiClient) listFeeds() ([]models.FeedSource, error) {
	var out struct {
		Feeds []models.FeedSource `json:"feeds"`
	}
	if err := c.do(http.MethodGet, "/api/v1/feeds", nil, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return out.Feeds, nil
}

func (c *apiClient) addFeed(f models.FeedSource) error {
	return c.do(http.MethodPost, "/api/v1/feeds", f, nil, http.StatusCreated)
}

func (c *apiClient) removeFeed(feedURL string) error {
	return c.do(http.MethodDelete, "/api/v1/feeds?url="+url.QueryEscape(feedURL), nil, nil, http.StatusOK)
}

func (c *apiClient) status() (*statusResponse, error) {
	var s statusResponse
	if err := c.do(http.MethodGet, "/api/v1/status", nil, &s, http.StatusOK); err != nil {
		return nil, err
	}
	return &s, nil
}

// localStatus builds the status report from storage without a server.
func localStatus(ctx context.Context, c *Components) (*statusResponse, error) {
	count, err := c.Storage.CountArticles(ctx)
	if err != nil {
		return nil, fmt.Errorf("count articles: %w", err)
	}
	feeds, err := c.Storage.ListFeeds(ctx)
	if err != nil {
		return nil, fmt.Errorf("list feeds: %w", err)
	}
	cfg := c.Live.Get()
	s := &statusResponse{
		SavedArticles: count,
		Feeds:         len(feeds),
		Config: map[string]interface{}{
			"database_path":         cfg.Storage.DatabasePath,
			"feed_timeout_seconds":  cfg.Feeds.TimeoutSeconds,
			"max_feeds_per_search":  cfg.Feeds.MaxFeedsPerSearch,
			"max_articles_per_feed": cfg.Feeds.MaxArticlesPerFeed,
			"auto_remove_bad_feeds": cfg.Feeds.AutoRemoveBadFeeds,
			"feed_concurrency":      cfg.Feeds.Concurrency,
			"similarity_threshold":  cfg.Similarity.ConfidenceThreshold,
			"ai_host":               cfg.AI.Host,
			"ai_model":              cfg.AI.Model,
		},
	}
	if size, err := storage.DatabaseSizeBytes(cfg.Storage.DatabasePath); err == nil {
		s.DiskUsageBytes = &size
	}
	return s, nil
}

func writeStatus(w io.Writer, s *statusResponse, format cli.OutputFormat) error {
	if format == cli.OutputJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(s)
	}
	fmt.Fprintf(w, "saved_articles:     %d   # count of saved analyses\n", s.SavedArticles)
	fmt.Fprintf(w, "feeds:              %d   # configured live feeds\n", s.Feeds)
	if s.UptimeSeconds > 0 {
		fmt.Fprintf(w, "uptime_seconds:     %d\n", s.UptimeSeconds)
	}
	if s.DiskUsageBytes != nil {
		fmt.Fprintf(w, "disk_usage_bytes:   %d   # database files on disk\n", *s.DiskUsageBytes)
	}
	if len(s.Config) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "# configuration")
		keys := make([]string, 0, len(s.Config))
		for k := range s.Config {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(w, "%-22s %v\n", k+":", s.Config[k])
		}
	}
	return nil
}
