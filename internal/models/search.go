package models

// SearchRequest is the body of a global search request.
type SearchRequest struct {
	Query string `json:"query"`
}

// GlobalSearchResponse carries the merged, deduplicated, date-sorted articles and the
// ordered, user-visible progress log.
type GlobalSearchResponse struct {
	Query     string     `json:"query"`
	Articles  []*Article `json:"articles"`
	Log       []string   `json:"log"`
	QueryTime int64      `json:"query_time_ms"`
}

// AddLog appends a progress line.
func (r *GlobalSearchResponse) AddLog(line string) {
	r.Log = append(r.Log, line)
}

// FeedSearchRequest is the body of a single-feed search request.
type FeedSearchRequest struct {
	Groups [][]string `json:"groups"`
	Feed   FeedSource `json:"feed"`
	Index  int        `json:"index"`
	Total  int        `json:"total"`
}

// FeedSearchResult is the outcome of searching one feed.
type FeedSearchResult struct {
	Feed        FeedSource `json:"feed"`
	Articles    []*Article `json:"articles"`
	LogEntry    string     `json:"log_entry"`
	Error       string     `json:"error,omitempty"`
	ErrorKind   string     `json:"error_kind,omitempty"`
	LimitHit    bool       `json:"limit_hit,omitempty"`
	FeedRemoved bool       `json:"feed_removed,omitempty"`
	// Cancelled is set when the request context ended before the feed answered.
	Cancelled bool `json:"cancelled,omitempty"`
}

// SaveOperation tells whether a save created a new record or updated one found by link.
type SaveOperation string

const (
	SaveNew     SaveOperation = "new"
	SaveUpdated SaveOperation = "updated"
)
