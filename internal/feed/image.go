package feed

import (
	"net/url"
	"path"
	"strings"

	"github.com/mmcdole/gofeed"
	ext "github.com/mmcdole/gofeed/extensions"
	"golang.org/x/net/html"
)

var imageExtensions = map[string]bool{
	".jpeg": true,
	".jpg":  true,
	".gif":  true,
	".png":  true,
	".webp": true,
}

// ExtractImage returns the best image URL for item, or "" when none is usable. Sources in
// order: image enclosure, media:thumbnail / media:content, item image, iTunes image, then the
// first <img> in the item body. Only the <img> candidate is resolved against the item link
// (or feedLink) and must end in a known image extension.
func ExtractImage(item *gofeed.Item, feedLink string) string {
	for _, enc := range item.Enclosures {
		if enc != nil && strings.HasPrefix(strings.ToLower(enc.Type), "image/") && isAbsoluteHTTP(enc.URL) {
			return enc.URL
		}
	}
	if u := mediaImage(item.Extensions); u != "" {
		return u
	}
	if item.Image != nil && isAbsoluteHTTP(item.Image.URL) {
		return item.Image.URL
	}
	if item.ITunesExt != nil && isAbsoluteHTTP(item.ITunesExt.Image) {
		return item.ITunesExt.Image
	}

	base := item.Link
	if base == "" {
		base = feedLink
	}
	for _, body := range []string{item.Content, item.Description} {
		src := firstImgSrc(body)
		if src == "" {
			continue
		}
		if u := resolveImage(src, base); u != "" {
			return u
		}
	}
	return ""
}

func mediaImage(exts ext.Extensions) string {
	media, ok := exts["media"]
	if !ok {
		return ""
	}
	if u := firstMediaURL(media["thumbnail"], false); u != "" {
		return u
	}
	if u := firstMediaURL(media["content"], true); u != "" {
		return u
	}
	for _, group := range media["group"] {
		if u := firstMediaURL(group.Children["thumbnail"], false); u != "" {
			return u
		}
		if u := firstMediaURL(group.Children["content"], true); u != "" {
			return u
		}
	}
	return ""
}

// firstMediaURL returns the first absolute url attribute. With requireImage, media:content
// entries must declare an image medium or type, or point at an image file.
func firstMediaURL(list []ext.Extension, requireImage bool) string {
	for _, e := range list {
		u := e.Attrs["url"]
		if !isAbsoluteHTTP(u) {
			continue
		}
		if requireImage && !isImageMedia(e.Attrs, u) {
			continue
		}
		return u
	}
	return ""
}

func isImageMedia(attrs map[string]string, u string) bool {
	if strings.EqualFold(attrs["medium"], "image") {
		return true
	}
	if strings.HasPrefix(strings.ToLower(attrs["type"]), "image/") {
		return true
	}
	return hasImageExtension(u)
}

// firstImgSrc returns the src of the first <img> element in fragment.
func firstImgSrc(fragment string) string {
	if !strings.Contains(fragment, "<") {
		return ""
	}
	z := html.NewTokenizer(strings.NewReader(fragment))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return ""
		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			if string(name) != "img" || !hasAttr {
				continue
			}
			for {
				key, val, more := z.TagAttr()
				if string(key) == "src" {
					return strings.TrimSpace(string(val))
				}
				if !more {
					break
				}
			}
		}
	}
}

func resolveImage(src, base string) string {
	ref, err := url.Parse(src)
	if err != nil {
		return ""
	}
	if !ref.IsAbs() {
		b, err := url.Parse(base)
		if err != nil || !b.IsAbs() {
			return ""
		}
		ref = b.ResolveReference(ref)
	}
	if ref.Scheme != "http" && ref.Scheme != "https" {
		return ""
	}
	if !hasImageExtension(ref.String()) {
		return ""
	}
	return ref.String()
}

func hasImageExtension(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return imageExtensions[strings.ToLower(path.Ext(u.Path))]
}

func isAbsoluteHTTP(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
