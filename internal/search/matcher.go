// Package search runs synonym-expanded searches over saved analyses and live feeds.
package search

import "strings"

// Matches reports whether every group has at least one term that occurs in text,
// ignoring case. No groups never match.
func Matches(text string, groups [][]string) bool {
	return MatchesFields([]string{text}, groups)
}

// MatchesFields is Matches over several fields: a term matches when it occurs inside any
// single field. Terms never match across field boundaries.
func MatchesFields(fields []string, groups [][]string) bool {
	if len(groups) == 0 {
		return false
	}
	lowered := make([]string, len(fields))
	for i, f := range fields {
		lowered[i] = strings.ToLower(f)
	}
	for _, group := range groups {
		if !groupMatches(lowered, group) {
			return false
		}
	}
	return true
}

func groupMatches(fields []string, group []string) bool {
	for _, term := range group {
		term = strings.ToLower(term)
		if term == "" {
			continue
		}
		for _, f := range fields {
			if strings.Contains(f, term) {
				return true
			}
		}
	}
	return false
}

// SearchableText joins the parts with spaces and lower-cases the result.
func SearchableText(parts ...string) string {
	return strings.ToLower(strings.Join(parts, " "))
}
