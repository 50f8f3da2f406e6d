// Package cli formats kiji results for the command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/hyperjump/kiji/internal/models"
	"github.com/hyperjump/kiji/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat accepts "text" or "json".
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(strings.ToLower(strings.TrimSpace(s))) {
	case "", OutputText:
		return OutputText, nil
	case OutputJSON:
		return OutputJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want text or json)", s)
	}
}

// WriteSearchResults writes a global search response to w in the given format.
// Text output prints the progress log before the articles.
func WriteSearchResults(w io.Writer, response *models.GlobalSearchResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, response)
	}
	writeSearchResultsText(w, response)
	return nil
}

func writeSearchResultsText(w io.Writer, response *models.GlobalSearchResponse) {
	for _, line := range response.Log {
		fmt.Fprintln(w, line)
	}
	fmt.Fprintf(w, "\nFound %d article(s) in %dms\n\n", len(response.Articles), response.QueryTime)
	for i, a := range response.Articles {
		writeOneArticle(w, i+1, a)
	}
}

func writeOneArticle(w io.Writer, rank int, a *models.Article) {
	fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
	fmt.Fprintf(w, "%d. %s\n", rank, a.Title)
	meta := []string{a.Source}
	if a.Category != "" {
		meta = append(meta, a.Category)
	}
	if !a.PublishedAt.IsZero() {
		meta = append(meta, a.PublishedAt.Format("2006-01-02 15:04"))
	}
	if a.Bias != "" && a.Bias != models.BiasUnknown {
		meta = append(meta, "bias: "+string(a.Bias))
	}
	fmt.Fprintf(w, "%s\n", strings.Join(meta, " | "))
	if a.Link != "" {
		fmt.Fprintf(w, "%s\n", a.Link)
	}
	if a.Summary != "" && a.Summary != a.Title {
		fmt.Fprintf(w, "\n%s\n", TruncateWords(a.Summary, 40))
	}
	if n := len(a.SimilarArticles); n > 0 {
		fmt.Fprintf(w, "Similar saved articles: %d\n", n)
	}
	fmt.Fprintln(w)
}

// PrintSearchResults prints a search response to stdout in text format.
func PrintSearchResults(response *models.GlobalSearchResponse) {
	_ = WriteSearchResults(os.Stdout, response, OutputText)
}

// WriteFeeds writes the configured feed list to w.
func WriteFeeds(w io.Writer, feeds []models.FeedSource, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, map[string]interface{}{"feeds": feeds})
	}
	if len(feeds) == 0 {
		fmt.Fprintln(w, "No feeds configured.")
		return nil
	}
	for i, f := range feeds {
		fmt.Fprintf(w, "%2d. %-30s %-12s %s\n", i+1, utils.Excerpt(f.Name, 27), f.Category, f.URL)
	}
	return nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// TruncateWords returns up to maxWords from the space-separated string.
func TruncateWords(s string, maxWords int) string {
	words := strings.Fields(s)
	if len(words) <= maxWords {
		return s
	}
	return strings.Join(words[:maxWords], " ") + "..."
}
