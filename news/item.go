// Package news turns raw feed entries into canonical briefing items.
package news

import (
	"regexp"
	"strings"
	"time"

	"github.com/scipunch/newsbrief/fetcher"
)

// tagPattern removes markup tags from feed text. It is a light
// heuristic, not a sanitizer: which text survives is part of the
// observable behavior, so it stays a pattern match rather than a full
// HTML parse.
var tagPattern = regexp.MustCompile(`<[^<]+?>`)

// imgSrcPattern finds the src attribute of the first img tag inside an
// HTML content fragment.
var imgSrcPattern = regexp.MustCompile(`(?i)<img\s+[^>]*src=['"]([^'"]+)['"]`)

// Item is the canonical representation of one news entry. A zero
// Timestamp means the source provided no parseable time; such items
// stay in the fetch cache but never match a date filter.
type Item struct {
	Title       string `json:"title"`
	Link        string `json:"link"`
	Published   string `json:"published,omitempty"`
	Timestamp   int64  `json:"timestamp,omitempty"`
	Source      string `json:"source"`
	ImageURL    string `json:"image_url,omitempty"`
	Description string `json:"description,omitempty"`
	Content     string `json:"content,omitempty"`
}

// Time returns the item's publication time in UTC, and whether one is
// known.
func (it Item) Time() (time.Time, bool) {
	if it.Timestamp == 0 {
		return time.Time{}, false
	}
	return time.Unix(it.Timestamp, 0).UTC(), true
}

// Normalize converts a raw entry from source into an Item. It reports
// false for entries missing a title or link. The update time wins over
// the published time when both are present.
func Normalize(e fetcher.Entry, source string) (Item, bool) {
	if e.Title == "" || e.Link == "" {
		return Item{}, false
	}

	it := Item{
		Title:       e.Title,
		Link:        e.Link,
		Published:   e.Published,
		Source:      source,
		ImageURL:    extractImage(e),
		Description: stripTags(e.Description),
		Content:     joinContents(e.Contents),
	}
	if ts := e.UpdatedAt; ts != nil {
		it.Timestamp = ts.Unix()
	} else if ts := e.PublishedAt; ts != nil {
		it.Timestamp = ts.Unix()
	}
	return it, true
}

func stripTags(raw string) string {
	return strings.TrimSpace(tagPattern.ReplaceAllString(raw, ""))
}

// joinContents cleans each content fragment and joins the non-empty
// results with a blank line.
func joinContents(fragments []fetcher.ContentFragment) string {
	var pieces []string
	for _, frag := range fragments {
		if plain := stripTags(frag.Value); plain != "" {
			pieces = append(pieces, plain)
		}
	}
	return strings.Join(pieces, "\n\n")
}

// extractImage looks for a thumbnail reference first, then for an img
// tag inside the first HTML content fragment. Fragments after the
// first HTML one are never consulted.
func extractImage(e fetcher.Entry) string {
	if e.Thumbnail != "" {
		return e.Thumbnail
	}
	for _, frag := range e.Contents {
		if !strings.Contains(frag.Type, "html") {
			continue
		}
		if m := imgSrcPattern.FindStringSubmatch(frag.Value); m != nil {
			return m[1]
		}
		break
	}
	return ""
}
