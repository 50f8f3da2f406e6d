package feed

import (
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/hyperjump/kiji/internal/models"
	"github.com/hyperjump/kiji/pkg/utils"
	"github.com/mmcdole/gofeed"
)

const (
	PlaceholderImageURL = "https://placehold.co/600x400.png"
	HintFoundImage      = "news media"
	HintNoImage         = "news article"

	// SummaryMaxRunes is the cut-off for article summaries built from feed items.
	SummaryMaxRunes = 250
	// snippetMinLength is the snippet length above which it is preferred over the full content.
	snippetMinLength = 50
)

// now is replaced in tests.
var now = time.Now

// ItemText is the plain text of a feed item.
type ItemText struct {
	Title   string
	Snippet string
	Content string
}

// TextOf strips markup from the item's title, description and content. Content falls back
// to the snippet when the item has no separate body.
func TextOf(item *gofeed.Item) ItemText {
	t := ItemText{
		Title:   utils.StripHTML(item.Title),
		Snippet: utils.StripHTML(item.Description),
		Content: utils.StripHTML(item.Content),
	}
	if t.Snippet == "" {
		t.Snippet = t.Content
	}
	if t.Content == "" {
		t.Content = t.Snippet
	}
	return t
}

// ToArticle converts a feed item into an Article. feedLink is the feed's site link, used to
// resolve relative image URLs.
//
// Items without a GUID or link get an id built from the source URL, title, current time and
// a random number. That id is not stable across fetches: the same item fetched twice gets two
// ids. Saving keys off the article link, not the id, for this reason.
func ToArticle(item *gofeed.Item, feedLink string, source models.FeedSource) *models.Article {
	text := TextOf(item)
	return toArticle(item, feedLink, source, text)
}

func toArticle(item *gofeed.Item, feedLink string, source models.FeedSource, text ItemText) *models.Article {
	title := text.Title
	if title == "" {
		title = "No title"
	}
	link := item.Link
	if link == "" {
		link = source.URL
	}

	summary := text.Content
	if len(text.Snippet) > snippetMinLength {
		summary = text.Snippet
	}

	image := ExtractImage(item, feedLink)
	hint := HintFoundImage
	if image == "" {
		image = PlaceholderImageURL
		hint = HintNoImage
	}

	category := source.Category
	if category == "" && len(item.Categories) > 0 {
		category = item.Categories[0]
	}

	return &models.Article{
		ID:          articleID(item, source, text.Title),
		Title:       title,
		Link:        link,
		Source:      source.Name,
		SourceURL:   source.URL,
		PublishedAt: publishedAt(item),
		Content:     text.Content,
		Summary:     utils.Excerpt(summary, SummaryMaxRunes),
		Bias:        models.BiasUnknown,
		ImageURL:    image,
		ImageHint:   hint,
		Category:    category,
	}
}

func articleID(item *gofeed.Item, source models.FeedSource, title string) string {
	if item.GUID != "" {
		return item.GUID
	}
	if item.Link != "" {
		return item.Link
	}
	if title == "" {
		title = "untitled"
	}
	return source.URL + "-" + title + "-" + strconv.FormatInt(now().UnixNano(), 10) + "-" + strconv.FormatUint(rand.Uint64(), 36)
}

func publishedAt(item *gofeed.Item) time.Time {
	if item.PublishedParsed != nil {
		return item.PublishedParsed.UTC()
	}
	if item.UpdatedParsed != nil {
		return item.UpdatedParsed.UTC()
	}
	return now().UTC()
}
