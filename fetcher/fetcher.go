// Package fetcher downloads and parses syndication feeds, using
// conditional requests so an origin can answer 304 Not Modified
// instead of resending content.
package fetcher

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/mmcdole/gofeed"
)

const (
	defaultUserAgent = "newsbrief/1.0"
	maxBodyBytes     = 5 * 1024 * 1024
)

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Validator carries the conditional-request metadata a source returned
// on a previous fetch. Empty fields mean the server never supplied them.
type Validator struct {
	ETag         string `json:"etag,omitempty"`
	LastModified string `json:"last_modified,omitempty"`
}

// IsZero reports whether no validator data is known.
func (v Validator) IsZero() bool {
	return v.ETag == "" && v.LastModified == ""
}

// Result is the outcome of one feed fetch. Unchanged is set when the
// origin answered 304 Not Modified; Entries and Validator are populated
// only on a fresh fetch, and Validator is non-zero only when the origin
// supplied at least one caching header.
type Result struct {
	Unchanged bool
	Entries   []Entry
	Validator Validator
}

// StatusError reports a non-success HTTP status from a source.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server responded with HTTP status: %d", e.Code)
}

// Fetcher downloads and parses feeds.
type Fetcher struct {
	client    HTTPClient
	parser    *gofeed.Parser
	userAgent string
}

// New creates a Fetcher with the given HTTP client.
func New(client HTTPClient) *Fetcher {
	return &Fetcher{
		client:    client,
		parser:    gofeed.NewParser(),
		userAgent: defaultUserAgent,
	}
}

// Fetch retrieves the feed at url, presenting the known validators so
// the origin can report "unchanged". Fetch keeps no state of its own;
// the caller owns the validator lifecycle.
func (f *Fetcher) Fetch(ctx context.Context, url string, v Validator) (Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Result{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	if v.ETag != "" {
		req.Header.Set("If-None-Match", v.ETag)
	}
	if v.LastModified != "" {
		req.Header.Set("If-Modified-Since", v.LastModified)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("http get: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotModified {
		return Result{Unchanged: true}, nil
	}
	if resp.StatusCode >= 400 {
		return Result{}, &StatusError{Code: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return Result{}, fmt.Errorf("read body: %w", err)
	}

	feed, err := f.parser.Parse(bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("parse feed: %w", err)
	}

	res := Result{
		Validator: Validator{
			ETag:         resp.Header.Get("Etag"),
			LastModified: resp.Header.Get("Last-Modified"),
		},
		Entries: make([]Entry, 0, len(feed.Items)),
	}
	for _, item := range feed.Items {
		res.Entries = append(res.Entries, entryFromItem(item))
	}
	return res, nil
}
