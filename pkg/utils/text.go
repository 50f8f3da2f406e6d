// Package utils provides shared utilities for text, math, and logging.
package utils

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
)

// blockElements get a separating space so adjacent paragraphs do not run together.
var blockElements = map[string]bool{
	"p": true, "br": true, "div": true, "li": true, "ul": true, "ol": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"tr": true, "td": true, "th": true, "blockquote": true, "figure": true, "figcaption": true,
}

// StripHTML removes markup from s, decodes entities, and collapses whitespace.
// Text inside script and style elements is dropped.
func StripHTML(s string) string {
	if s == "" {
		return ""
	}
	var b strings.Builder
	z := html.NewTokenizer(strings.NewReader(s))
	skip := 0
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			// io.EOF or a malformed remainder; either way keep what was read.
			return CollapseSpace(b.String())
		case html.TextToken:
			if skip == 0 {
				b.Write(z.Text())
			}
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			tag := string(name)
			if tag == "script" || tag == "style" {
				if tt == html.StartTagToken {
					skip++
				}
				continue
			}
			if blockElements[tag] {
				b.WriteByte(' ')
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			tag := string(name)
			if (tag == "script" || tag == "style") && skip > 0 {
				skip--
				continue
			}
			if blockElements[tag] {
				b.WriteByte(' ')
			}
		}
	}
}

// CollapseSpace replaces runs of whitespace (including non-breaking spaces) with a single
// space and trims the result.
func CollapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Excerpt returns s cut to maxRunes runes, with "..." appended if cut.
// If maxRunes is 0 or negative, returns s unchanged.
func Excerpt(s string, maxRunes int) string {
	if maxRunes <= 0 || utf8.RuneCountInString(s) <= maxRunes {
		return s
	}
	r := []rune(s)
	return string(r[:maxRunes]) + "..."
}

// Truncate returns s truncated to at most maxLen bytes, with "..." appended if truncated.
// The cut never splits a UTF-8 sequence. If maxLen is 0 or negative, returns s unchanged.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
