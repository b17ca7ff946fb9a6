// Package briefing fetches the configured news feeds, filters them to
// a requested date, and keeps the per-session state that makes
// conditional refetches and follow-up questions work.
package briefing

import (
	"github.com/scipunch/newsbrief/fetcher"
	"github.com/scipunch/newsbrief/news"
)

// FetchCache remembers, per source, the validators presented on the
// next conditional fetch and the full unfiltered item set from the
// most recent fetch cycle. Items never mix two cycles for the same
// source: the collection is replaced wholesale at commit time.
type FetchCache struct {
	Validators map[string]fetcher.Validator `json:"validators,omitempty"`
	Items      []news.Item                  `json:"items,omitempty"`
}

// ItemsFromSource returns the cached items that originated from the
// given source, in their stored order. Used to stand in for a feed
// that reported 304 Not Modified.
func (c FetchCache) ItemsFromSource(url string) []news.Item {
	var items []news.Item
	for _, it := range c.Items {
		if it.Source == url {
			items = append(items, it)
		}
	}
	return items
}

// Clone returns a deep copy of the cache.
func (c FetchCache) Clone() FetchCache {
	out := FetchCache{Items: append([]news.Item(nil), c.Items...)}
	if c.Validators != nil {
		out.Validators = make(map[string]fetcher.Validator, len(c.Validators))
		for url, v := range c.Validators {
			out.Validators[url] = v
		}
	}
	return out
}

// State holds the two briefing slots a session carries: the fetch
// cache, and the items shown in the most recent briefing. Presented is
// either exactly the last non-empty filtered result or empty; a
// request that filters to nothing clears it rather than leaving stale
// items for follow-ups.
type State struct {
	Cache     FetchCache  `json:"cache"`
	Presented []news.Item `json:"presented,omitempty"`
}

// Clone returns a deep copy of the state.
func (s State) Clone() State {
	return State{
		Cache:     s.Cache.Clone(),
		Presented: append([]news.Item(nil), s.Presented...),
	}
}

// Result statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Result is the structured outcome handed back to the conversational
// agent: a status plus either the filtered items or a user-facing
// error message. An empty Items with StatusSuccess means no news
// matched, which is a valid outcome, not an error.
type Result struct {
	Status  string      `json:"status"`
	Items   []news.Item `json:"items,omitempty"`
	Message string      `json:"message,omitempty"`
}
