package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hyperjump/kiji/internal/ai/mock"
	"github.com/hyperjump/kiji/internal/analysis"
	"github.com/hyperjump/kiji/internal/config"
	"github.com/hyperjump/kiji/internal/feed"
	"github.com/hyperjump/kiji/internal/models"
	"github.com/hyperjump/kiji/internal/search"
	"github.com/hyperjump/kiji/internal/similarity"
	"github.com/hyperjump/kiji/internal/storage"
	"github.com/hyperjump/kiji/internal/synonym"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const wireRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
  <title>Test Wire</title>
  <link>https://wire.example.com/</link>
  <item>
    <title>Climate bill passes parliament</title>
    <link>https://wire.example.com/climate-bill</link>
    <guid>wire-1</guid>
    <pubDate>Mon, 06 Jan 2025 10:00:00 GMT</pubDate>
    <description>Lawmakers approved the climate bill on Monday.</description>
  </item>
  <item>
    <title>Cup final tickets sold out</title>
    <link>https://wire.example.com/cup-final</link>
    <guid>wire-2</guid>
    <pubDate>Sun, 05 Jan 2025 10:00:00 GMT</pubDate>
    <description>Fans queued overnight.</description>
  </item>
</channel>
</rss>`

type harness struct {
	srv     *Server
	handler http.Handler
	store   *storage.SQLiteStorage
	ai      *mock.Provider
	live    *config.Live
	feedURL string
}

func newHarness(t *testing.T, configPath string) *harness {
	t.Helper()
	rss := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(wireRSS))
	}))
	t.Cleanup(rss.Close)

	store, err := storage.NewSQLiteStorage(storage.MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.AddFeed(context.Background(), models.FeedSource{Name: "Test Wire", URL: rss.URL, Category: "World"}))

	cfg := config.Default()
	cfg.Storage.DatabasePath = storage.MemoryPath
	live := config.NewLive(cfg)

	m := mock.NewProvider()
	expander := synonym.NewExpander(m)
	orch := search.NewOrchestrator(expander, search.NewSavedSearcher(store, expander), store, feed.NewFetcher(),
		search.WithSettings(live.Feeds))
	engine, err := similarity.NewEngine(m)
	require.NoError(t, err)
	t.Cleanup(engine.Release)

	srv := NewServer(orch, analysis.NewAnalyzer(m, store), analysis.NewLibrary(store, engine), store, live, nil, configPath)
	return &harness{srv: srv, handler: srv.Handler(), store: store, ai: m, live: live, feedURL: rss.URL}
}

func (h *harness) do(t *testing.T, method, path string, body interface{}, role models.Role) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	r := httptest.NewRequest(method, path, &buf)
	if role != "" {
		r.Header.Set(HeaderRole, string(role))
		r.Header.Set(HeaderUser, "tester")
	}
	w := httptest.NewRecorder()
	h.handler.ServeHTTP(w, r)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(w.Body).Decode(out))
}

func longContent(tag string) string {
	return tag + ". " + strings.Repeat("Lawmakers debated the climate bill for many hours. ", 3)
}

func TestHandleHealth(t *testing.T) {
	h := newHarness(t, "")
	w := h.do(t, http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"ok"`)
}

func TestHandleSearch(t *testing.T) {
	h := newHarness(t, "")
	w := h.do(t, http.MethodPost, "/api/v1/search", models.SearchRequest{Query: "climate"}, "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp models.GlobalSearchResponse
	decode(t, w, &resp)
	require.Len(t, resp.Articles, 1)
	assert.Equal(t, "Climate bill passes parliament", resp.Articles[0].Title)
	assert.Equal(t, "Test Wire", resp.Articles[0].Source)
	require.NotEmpty(t, resp.Log)
	assert.Equal(t, `Global Search for "climate":`, resp.Log[0])
	assert.Equal(t, "Global search complete: Found 1 unique article(s) in total.", resp.Log[len(resp.Log)-1])
}

func TestHandleSearch_badBody(t *testing.T) {
	h := newHarness(t, "")
	w := h.do(t, http.MethodPost, "/api/v1/search", "{not json", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleSynonymsAndSingleFeed(t *testing.T) {
	h := newHarness(t, "")
	h.ai.SynonymsFunc = func(ctx context.Context, word string) ([]string, error) {
		return []string{"tickets"}, nil
	}

	w := h.do(t, http.MethodPost, "/api/v1/synonyms", models.SearchRequest{Query: "Cup"}, "")
	require.Equal(t, http.StatusOK, w.Code)
	var syn struct {
		Groups [][]string `json:"groups"`
	}
	decode(t, w, &syn)
	assert.Equal(t, [][]string{{"cup", "tickets"}}, syn.Groups)

	w = h.do(t, http.MethodPost, "/api/v1/search/feed", models.FeedSearchRequest{
		Groups: syn.Groups,
		Feed:   models.FeedSource{Name: "Test Wire", URL: h.feedURL, Category: "World"},
		Index:  1,
		Total:  1,
	}, "")
	require.Equal(t, http.StatusOK, w.Code)
	var res models.FeedSearchResult
	decode(t, w, &res)
	require.Len(t, res.Articles, 1)
	assert.Equal(t, "Cup final tickets sold out", res.Articles[0].Title)
	assert.Equal(t, "(1/1) Searched Test Wire with expanded terms: Found 1 article(s).", res.LogEntry)
}

func TestHandleSearchFeed_missingURL(t *testing.T) {
	h := newHarness(t, "")
	w := h.do(t, http.MethodPost, "/api/v1/search/feed", models.FeedSearchRequest{Groups: [][]string{{"x"}}}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleAnalyze(t *testing.T) {
	h := newHarness(t, "")

	w := h.do(t, http.MethodPost, "/api/v1/analyze", analysis.AnalyzeInput{Content: "too short"}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = h.do(t, http.MethodPost, "/api/v1/analyze", analysis.AnalyzeInput{
		Content:         longContent("Bill"),
		Link:            "https://wire.example.com/climate-bill",
		GenerateNeutral: true,
	}, "")
	require.Equal(t, http.StatusOK, w.Code)
	var res analysis.Result
	decode(t, w, &res)
	assert.Equal(t, "Bill.", res.Summary)
	assert.Equal(t, models.BiasCenter, res.Bias)
	assert.NotEmpty(t, res.NeutralSummary)
	assert.False(t, res.Cached)
}

func TestArticleLifecycle(t *testing.T) {
	h := newHarness(t, "")
	in := analysis.SaveInput{
		ArticleLink:     "https://wire.example.com/climate-bill",
		SourceName:      "Test Wire",
		Summary:         "Parliament passes the climate bill.",
		Bias:            models.BiasCenter,
		OriginalContent: longContent("Original"),
	}

	w := h.do(t, http.MethodPost, "/api/v1/articles", in, models.RoleUser)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = h.do(t, http.MethodPost, "/api/v1/articles", in, "")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = h.do(t, http.MethodPost, "/api/v1/articles", in, models.RoleAdmin)
	require.Equal(t, http.StatusCreated, w.Code)
	var created analysis.SaveResult
	decode(t, w, &created)
	assert.Equal(t, models.SaveNew, created.Operation)
	id := created.Article.ID

	in.Summary = "Updated summary."
	w = h.do(t, http.MethodPost, "/api/v1/articles", in, models.RoleSuperAdmin)
	require.Equal(t, http.StatusOK, w.Code)
	var updated analysis.SaveResult
	decode(t, w, &updated)
	assert.Equal(t, models.SaveUpdated, updated.Operation)
	assert.Equal(t, id, updated.Article.ID)

	w = h.do(t, http.MethodGet, "/api/v1/articles/"+id, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var got models.SavedArticle
	decode(t, w, &got)
	assert.Equal(t, "Updated summary.", got.Summary)

	w = h.do(t, http.MethodGet, "/api/v1/articles", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Articles []models.SavedArticle `json:"articles"`
		Total    int                   `json:"total"`
	}
	decode(t, w, &list)
	assert.Equal(t, 1, list.Total)

	w = h.do(t, http.MethodPost, "/api/v1/articles/links", map[string][]string{"ids": {id, "gone"}}, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), id)

	w = h.do(t, http.MethodDelete, "/api/v1/articles/"+id, nil, models.RoleUser)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = h.do(t, http.MethodDelete, "/api/v1/articles/"+id, nil, models.RoleAdmin)
	assert.Equal(t, http.StatusOK, w.Code)
	w = h.do(t, http.MethodDelete, "/api/v1/articles/"+id, nil, models.RoleAdmin)
	assert.Equal(t, http.StatusOK, w.Code, "delete is idempotent")

	w = h.do(t, http.MethodGet, "/api/v1/articles/"+id, nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestFeedManagement(t *testing.T) {
	h := newHarness(t, "")
	bbc := models.FeedSource{Name: "BBC", URL: "https://feeds.bbci.co.uk/news/rss.xml", Category: "World"}

	w := h.do(t, http.MethodPost, "/api/v1/feeds", bbc, models.RoleUser)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = h.do(t, http.MethodPost, "/api/v1/feeds", bbc, models.RoleAdmin)
	assert.Equal(t, http.StatusCreated, w.Code)
	w = h.do(t, http.MethodPost, "/api/v1/feeds", bbc, models.RoleAdmin)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = h.do(t, http.MethodPost, "/api/v1/feeds", models.FeedSource{Name: "Bad", URL: "ftp://x", Category: "World"}, models.RoleAdmin)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	renamed := bbc
	renamed.Name = "BBC News"
	w = h.do(t, http.MethodPut, "/api/v1/feeds?url="+bbc.URL, renamed, models.RoleAdmin)
	assert.Equal(t, http.StatusOK, w.Code)
	w = h.do(t, http.MethodPut, "/api/v1/feeds?url=https://missing.example.com/rss", renamed, models.RoleAdmin)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = h.do(t, http.MethodGet, "/api/v1/feeds", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Feeds []models.FeedSource `json:"feeds"`
	}
	decode(t, w, &list)
	require.Len(t, list.Feeds, 2)
	assert.Equal(t, "Test Wire", list.Feeds[0].Name)
	assert.Equal(t, "BBC News", list.Feeds[1].Name)

	w = h.do(t, http.MethodDelete, "/api/v1/feeds?url="+bbc.URL, nil, models.RoleAdmin)
	assert.Equal(t, http.StatusOK, w.Code)
	w = h.do(t, http.MethodDelete, "/api/v1/feeds?url="+bbc.URL, nil, models.RoleAdmin)
	assert.Equal(t, http.StatusOK, w.Code)
	w = h.do(t, http.MethodDelete, "/api/v1/feeds", nil, models.RoleAdmin)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestFeedSettings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	h := newHarness(t, path)

	w := h.do(t, http.MethodPut, "/api/v1/settings/feeds", map[string]interface{}{"auto_remove_bad_feeds": true}, models.RoleUser)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = h.do(t, http.MethodPut, "/api/v1/settings/feeds", map[string]interface{}{"max_feeds_per_search": 0}, models.RoleAdmin)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = h.do(t, http.MethodPut, "/api/v1/settings/feeds", map[string]interface{}{
		"auto_remove_bad_feeds": true,
		"timeout_seconds":       3,
	}, models.RoleAdmin)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, h.live.Feeds().AutoRemoveBadFeeds)
	assert.Equal(t, 3, h.live.Feeds().TimeoutSeconds)
	assert.Equal(t, 20, h.live.Feeds().MaxFeedsPerSearch)

	saved, err := config.Load(path)
	require.NoError(t, err)
	assert.True(t, saved.Feeds.AutoRemoveBadFeeds)
	assert.Equal(t, 3, saved.Feeds.TimeoutSeconds)

	w = h.do(t, http.MethodGet, "/api/v1/settings/feeds", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"timeout_seconds":3`)
}

func TestHandleStatus(t *testing.T) {
	h := newHarness(t, "")
	w := h.do(t, http.MethodGet, "/api/v1/status", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var out map[string]interface{}
	decode(t, w, &out)
	assert.EqualValues(t, 0, out["saved_articles"])
	assert.EqualValues(t, 1, out["feeds"])
	cfg, ok := out["config"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "qwen2.5:3b", cfg["ai_model"])
}

func TestCallerFrom(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Equal(t, models.RoleUser, callerFrom(r).Role)

	r.Header.Set(HeaderRole, "admin")
	r.Header.Set(HeaderUser, " ed ")
	c := callerFrom(r)
	assert.Equal(t, models.Caller{ID: "ed", Role: models.RoleAdmin}, c)
	assert.True(t, c.CanManage())
}

func TestHandleLatestArticles(t *testing.T) {
	h := newHarness(t, "")
	ctx := context.Background()
	links := []models.SimilarityLink{{ID: "other", Confidence: 0.8, Reasoning: "same vote"}}
	_, _, err := h.store.Save(ctx, &models.SavedArticle{
		ID:              "saved-bill",
		ArticleLink:     "https://wire.example.com/climate-bill",
		Summary:         "Parliament approved the climate bill.",
		Bias:            models.BiasLeft,
		BiasExplanation: "Sympathetic framing.",
		SimilarArticles: links,
	})
	require.NoError(t, err)

	w := h.do(t, http.MethodGet, "/api/v1/articles/latest", nil, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp models.GlobalSearchResponse
	decode(t, w, &resp)
	require.Len(t, resp.Articles, 2)
	assert.Equal(t, "wire-1", resp.Articles[0].ID)
	assert.Equal(t, models.BiasLeft, resp.Articles[0].Bias)
	assert.Equal(t, "Parliament approved the climate bill.", resp.Articles[0].Summary)
	assert.Equal(t, links, resp.Articles[0].SimilarArticles)
	assert.Equal(t, models.BiasUnknown, resp.Articles[1].Bias)
}
