package fetcher

import (
	"time"

	"github.com/mmcdole/gofeed"
)

// ContentFragment is one piece of an entry's body together with its
// declared media type.
type ContentFragment struct {
	Value string
	Type  string
}

// Entry is a raw feed entry as delivered by a source, before any
// normalization or filtering.
type Entry struct {
	Title       string
	Link        string
	Published   string
	PublishedAt *time.Time
	UpdatedAt   *time.Time
	Description string
	Contents    []ContentFragment
	Thumbnail   string
}

// entryFromItem converts a parsed gofeed item into an Entry. Atom
// content and content:encoded arrive as a single HTML fragment;
// media:thumbnail and item-level images map to Thumbnail.
func entryFromItem(item *gofeed.Item) Entry {
	e := Entry{
		Title:       item.Title,
		Link:        item.Link,
		Published:   item.Published,
		PublishedAt: item.PublishedParsed,
		UpdatedAt:   item.UpdatedParsed,
		Description: item.Description,
		Thumbnail:   mediaThumbnail(item),
	}
	if item.Content != "" {
		e.Contents = append(e.Contents, ContentFragment{Value: item.Content, Type: "text/html"})
	}
	return e
}

// mediaThumbnail returns the first media:thumbnail URL, falling back
// to the item image.
func mediaThumbnail(item *gofeed.Item) string {
	for _, ext := range item.Extensions["media"]["thumbnail"] {
		if url := ext.Attrs["url"]; url != "" {
			return url
		}
	}
	if item.Image != nil {
		return item.Image.URL
	}
	return ""
}
