package models

import (
	"fmt"
	"net/url"
	"strings"
)

// FeedSource is a configured RSS/Atom source. URL is its identity.
type FeedSource struct {
	Name     string `json:"name" yaml:"name"`
	URL      string `json:"url" yaml:"url"`
	Category string `json:"category" yaml:"category"`
}

// Validate trims fields and checks that name, category and an absolute http(s) URL are set.
func (f *FeedSource) Validate() error {
	f.Name = strings.TrimSpace(f.Name)
	f.URL = strings.TrimSpace(f.URL)
	f.Category = strings.TrimSpace(f.Category)
	if f.Name == "" {
		return fmt.Errorf("feed name cannot be empty")
	}
	if f.Category == "" {
		return fmt.Errorf("feed category cannot be empty")
	}
	u, err := url.Parse(f.URL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("invalid feed url: %q", f.URL)
	}
	return nil
}
