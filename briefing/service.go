package briefing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/scipunch/newsbrief/fetcher"
	"github.com/scipunch/newsbrief/filter"
	"github.com/scipunch/newsbrief/news"
)

const (
	// defaultMaxItems caps how many items one briefing cycle
	// processes across all sources. It bounds worst-case work, not
	// correctness.
	defaultMaxItems = 200

	defaultFetchTimeout = 30 * time.Second
)

// User-facing messages for terminal date errors and fetch failures.
// The wording names the accepted formats so the agent can relay them
// verbatim.
const (
	msgDateTooOld = "Sorry, I can only retrieve news from the past two weeks. " +
		"Please provide a more recent date (e.g., 'today', 'yesterday', or YYYY-MM-DD within the last 14 days)."
	msgDateUnparseable = "Sorry, I couldn't understand the date '%s'. " +
		"Please use the format YYYY-MM-DD, or the words 'today' or 'yesterday'."
	msgFetchProblems = "Sorry, I encountered problems while trying to fetch news from some sources. Errors: %s"
)

// FeedFetcher retrieves one feed, honoring conditional-request
// validators.
type FeedFetcher interface {
	Fetch(ctx context.Context, url string, v fetcher.Validator) (fetcher.Result, error)
}

// Service runs briefing requests against a fixed set of sources.
type Service struct {
	fetcher  FeedFetcher
	sources  []string
	maxItems int
	timeout  time.Duration
	now      func() time.Time
}

// NewService creates a Service over the given sources. A zero
// maxItems or timeout falls back to the defaults.
func NewService(f FeedFetcher, sources []string, maxItems int, timeout time.Duration) *Service {
	if maxItems <= 0 {
		maxItems = defaultMaxItems
	}
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	return &Service{
		fetcher:  f,
		sources:  sources,
		maxItems: maxItems,
		timeout:  timeout,
		now:      time.Now,
	}
}

// sourceOutcome is one source's fetch result, recorded into its own
// slot so the goroutines never share state.
type sourceOutcome struct {
	res fetcher.Result
	err error
}

// Fetch runs one briefing request: fetch every source (reusing cached
// items for the unchanged ones), filter by the date specifier, and
// return the result together with the updated session state. The
// input state is treated as a snapshot and never mutated in place.
func (s *Service) Fetch(ctx context.Context, dateSpec string, state State) (Result, State) {
	outcomes := make([]sourceOutcome, len(s.sources))

	var g errgroup.Group
	for i, url := range s.sources {
		g.Go(func() error {
			fctx, cancel := context.WithTimeout(ctx, s.timeout)
			defer cancel()
			res, err := s.fetcher.Fetch(fctx, url, state.Cache.Validators[url])
			outcomes[i] = sourceOutcome{res: res, err: err}
			return nil
		})
	}
	// Failures land in the outcome slots; the group only waits.
	_ = g.Wait()

	// Merge sequentially in configured source order, stopping early
	// once the item ceiling is met. A 304 batch is counted whole; a
	// fresh feed is truncated mid-source at the ceiling, with its
	// validator already recorded so the truncation is not repeated
	// forever.
	var (
		items      []news.Item
		fetchErrs  []string
		validators = make(map[string]fetcher.Validator)
		count      int
	)
	for i, url := range s.sources {
		if count >= s.maxItems {
			slog.Debug("item ceiling reached, skipping remaining sources", "ceiling", s.maxItems, "skipped_from", url)
			break
		}
		out := outcomes[i]
		switch {
		case out.err != nil:
			msg := describeFetchError(url, out.err)
			fetchErrs = append(fetchErrs, msg)
			slog.Warn("source fetch failed", "url", url, "error", out.err)
		case out.res.Unchanged:
			cached := state.Cache.ItemsFromSource(url)
			items = append(items, cached...)
			count += len(cached)
			slog.Debug("source unchanged, reusing cached items", "url", url, "amount", len(cached))
		default:
			if !out.res.Validator.IsZero() {
				validators[url] = out.res.Validator
			}
			kept := 0
			for _, entry := range out.res.Entries {
				if count >= s.maxItems {
					break
				}
				item, ok := news.Normalize(entry, url)
				if !ok {
					continue
				}
				items = append(items, item)
				count++
				kept++
			}
			slog.Debug("source fetched", "url", url, "entries", len(out.res.Entries), "kept", kept)
		}
	}

	target, err := filter.ResolveTarget(dateSpec, s.now())
	if err != nil {
		// Terminal for the whole request: nothing is committed and
		// stale presented items must not survive an invalid ask.
		state.Presented = nil
		return Result{Status: StatusError, Message: dateErrorMessage(dateSpec, err)}, state
	}

	matched := filter.Apply(items, target)

	// Commit the unfiltered set and any new validators whenever the
	// cycle produced either, regardless of what the filter kept, so
	// conditional fetches and 304 reuse stay correct on later calls.
	if len(items) > 0 || len(validators) > 0 {
		merged := make(map[string]fetcher.Validator, len(state.Cache.Validators)+len(validators))
		for url, v := range state.Cache.Validators {
			merged[url] = v
		}
		for url, v := range validators {
			merged[url] = v
		}
		state.Cache = FetchCache{Validators: merged, Items: items}
	}

	if len(matched) > 0 {
		state.Presented = matched
		return Result{Status: StatusSuccess, Items: matched}, state
	}

	state.Presented = nil
	if len(fetchErrs) > 0 {
		return Result{Status: StatusError, Message: fmt.Sprintf(msgFetchProblems, strings.Join(fetchErrs, "; "))}, state
	}
	// No news for the period is a valid empty success, distinct from
	// the error outcomes above.
	return Result{Status: StatusSuccess}, state
}

// describeFetchError renders one source failure for the aggregate
// message. HTTP status failures keep their own phrasing; everything
// else, timeouts included, shares the generic form.
func describeFetchError(url string, err error) string {
	var statusErr *fetcher.StatusError
	if errors.As(err, &statusErr) {
		return fmt.Sprintf("Failed to fetch '%s', %s", url, statusErr)
	}
	return fmt.Sprintf("Unexpected error processing feed '%s': %s", url, err)
}

func dateErrorMessage(dateSpec string, err error) string {
	if errors.Is(err, filter.ErrTooOld) {
		return msgDateTooOld
	}
	return fmt.Sprintf(msgDateUnparseable, dateSpec)
}
