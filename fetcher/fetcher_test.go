package fetcher

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

type mockTransport struct {
	lastReq *http.Request
	resp    *http.Response
	err     error
}

func (m *mockTransport) Do(req *http.Request) (*http.Response, error) {
	m.lastReq = req
	if m.err != nil {
		return nil, m.err
	}
	return m.resp, nil
}

func loadFixture(t *testing.T, name string) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	if err != nil {
		t.Fatalf("read fixture %s: %v", name, err)
	}
	return data
}

func feedResponse(status int, body []byte, headers map[string]string) *http.Response {
	resp := &http.Response{
		StatusCode: status,
		Header:     make(http.Header),
		Body:       io.NopCloser(bytes.NewReader(body)),
	}
	for k, v := range headers {
		resp.Header.Set(k, v)
	}
	return resp
}

func timePtr(t time.Time) *time.Time { return &t }

func TestFetchParsesEntries(t *testing.T) {
	mock := &mockTransport{
		resp: feedResponse(http.StatusOK, loadFixture(t, "world.xml"), map[string]string{
			"Etag":          `"abc123"`,
			"Last-Modified": "Wed, 10 Apr 2024 09:00:00 GMT",
		}),
	}
	f := New(mock)

	got, err := f.Fetch(context.Background(), "https://news.example.com/rss.xml", Validator{})
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if got.Unchanged {
		t.Fatal("Fetch reported unchanged for a 200 response")
	}

	wantValidator := Validator{ETag: `"abc123"`, LastModified: "Wed, 10 Apr 2024 09:00:00 GMT"}
	if diff := cmp.Diff(wantValidator, got.Validator); diff != "" {
		t.Errorf("validator mismatch (-want +got):\n%s", diff)
	}

	wantEntries := []Entry{
		{
			Title:       "Port city reopens after storm",
			Link:        "https://news.example.com/world/port-city-reopens",
			Published:   "Wed, 10 Apr 2024 08:30:00 GMT",
			PublishedAt: timePtr(time.Date(2024, 4, 10, 8, 30, 0, 0, time.UTC)),
			Description: "Cleanup crews cleared the last of the debris overnight.",
			Thumbnail:   "https://img.example.com/port-city.jpg",
		},
		{
			Title:       "Markets steady ahead of rate decision",
			Link:        "https://news.example.com/world/markets-steady",
			Published:   "Tue, 09 Apr 2024 17:05:00 GMT",
			PublishedAt: timePtr(time.Date(2024, 4, 9, 17, 5, 0, 0, time.UTC)),
			Description: "Investors held their positions on Tuesday.",
		},
	}
	if diff := cmp.Diff(wantEntries, got.Entries); diff != "" {
		t.Errorf("entries mismatch (-want +got):\n%s", diff)
	}

	if ua := mock.lastReq.Header.Get("User-Agent"); ua != defaultUserAgent {
		t.Errorf("User-Agent = %q, want %q", ua, defaultUserAgent)
	}
}

func TestFetchConditionalHeaders(t *testing.T) {
	tests := []struct {
		name              string
		validator         Validator
		wantIfNoneMatch   string
		wantModifiedSince string
	}{
		{
			name: "no validator known",
		},
		{
			name:              "both validators",
			validator:         Validator{ETag: `"v1"`, LastModified: "Tue, 09 Apr 2024 17:05:00 GMT"},
			wantIfNoneMatch:   `"v1"`,
			wantModifiedSince: "Tue, 09 Apr 2024 17:05:00 GMT",
		},
		{
			name:            "etag only",
			validator:       Validator{ETag: `"v2"`},
			wantIfNoneMatch: `"v2"`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &mockTransport{
				resp: feedResponse(http.StatusOK, loadFixture(t, "world.xml"), nil),
			}
			f := New(mock)
			if _, err := f.Fetch(context.Background(), "https://news.example.com/rss.xml", tt.validator); err != nil {
				t.Fatalf("Fetch returned error: %v", err)
			}
			if got := mock.lastReq.Header.Get("If-None-Match"); got != tt.wantIfNoneMatch {
				t.Errorf("If-None-Match = %q, want %q", got, tt.wantIfNoneMatch)
			}
			if got := mock.lastReq.Header.Get("If-Modified-Since"); got != tt.wantModifiedSince {
				t.Errorf("If-Modified-Since = %q, want %q", got, tt.wantModifiedSince)
			}
		})
	}
}

func TestFetchNotModified(t *testing.T) {
	mock := &mockTransport{
		resp: feedResponse(http.StatusNotModified, nil, nil),
	}
	f := New(mock)

	got, err := f.Fetch(context.Background(), "https://news.example.com/rss.xml", Validator{ETag: `"abc123"`})
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if !got.Unchanged {
		t.Error("Fetch did not report unchanged for a 304 response")
	}
	if len(got.Entries) != 0 {
		t.Errorf("Fetch returned %d entries for a 304 response", len(got.Entries))
	}
	if !got.Validator.IsZero() {
		t.Errorf("Fetch returned validator %+v for a 304 response", got.Validator)
	}
}

func TestFetchStatusError(t *testing.T) {
	mock := &mockTransport{
		resp: feedResponse(http.StatusInternalServerError, nil, nil),
	}
	f := New(mock)

	_, err := f.Fetch(context.Background(), "https://news.example.com/rss.xml", Validator{})
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("Fetch error = %v, want StatusError", err)
	}
	if statusErr.Code != http.StatusInternalServerError {
		t.Errorf("StatusError.Code = %d, want %d", statusErr.Code, http.StatusInternalServerError)
	}
}

func TestFetchNetworkError(t *testing.T) {
	netErr := errors.New("connection refused")
	mock := &mockTransport{err: netErr}
	f := New(mock)

	_, err := f.Fetch(context.Background(), "https://news.example.com/rss.xml", Validator{})
	if !errors.Is(err, netErr) {
		t.Fatalf("Fetch error = %v, want wrapped %v", err, netErr)
	}
}

func TestFetchInvalidFeed(t *testing.T) {
	mock := &mockTransport{
		resp: feedResponse(http.StatusOK, []byte("not a feed at all"), nil),
	}
	f := New(mock)

	if _, err := f.Fetch(context.Background(), "https://news.example.com/rss.xml", Validator{}); err == nil {
		t.Fatal("Fetch succeeded on an unparseable body")
	}
}

type countingReader struct {
	r io.Reader
	n int
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += n
	return n, err
}

func TestFetchOversizedBody(t *testing.T) {
	// Valid feed up front, several MB of trailing padding behind it.
	body := append(loadFixture(t, "world.xml"), bytes.Repeat([]byte(" "), 6*1024*1024)...)
	counter := &countingReader{r: bytes.NewReader(body)}
	mock := &mockTransport{
		resp: &http.Response{
			StatusCode: http.StatusOK,
			Header:     make(http.Header),
			Body:       io.NopCloser(counter),
		},
	}
	f := New(mock)

	got, err := f.Fetch(context.Background(), "https://news.example.com/rss.xml", Validator{})
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if len(got.Entries) != 2 {
		t.Errorf("got %d entries, want 2", len(got.Entries))
	}
	if counter.n > maxBodyBytes {
		t.Errorf("read %d response bytes, want at most %d", counter.n, maxBodyBytes)
	}
}

func TestFetchContentFragments(t *testing.T) {
	mock := &mockTransport{
		resp: feedResponse(http.StatusOK, loadFixture(t, "headlines.xml"), nil),
	}
	f := New(mock)

	got, err := f.Fetch(context.Background(), "https://headlines.example.org/rss", Validator{})
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if len(got.Entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(got.Entries))
	}
	if !got.Validator.IsZero() {
		t.Errorf("validator = %+v, want zero when origin sends no caching headers", got.Validator)
	}

	wantContents := []ContentFragment{
		{
			Value: `<p>The council approved the plan.</p><img src="https://img.example.org/riverfront.png" alt="Riverfront rendering"/>`,
			Type:  "text/html",
		},
	}
	if diff := cmp.Diff(wantContents, got.Entries[0].Contents); diff != "" {
		t.Errorf("contents mismatch (-want +got):\n%s", diff)
	}
}
