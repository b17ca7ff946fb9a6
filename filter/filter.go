// Package filter resolves user date specifiers into day targets and
// selects the news items that fall on them.
package filter

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/scipunch/newsbrief/news"
)

// Errors returned by ResolveTarget. Both are terminal for the request
// that supplied the specifier, unlike an empty filter result.
var (
	ErrTooOld      = errors.New("date beyond the feed lookback window")
	ErrUnparseable = errors.New("unrecognized date specifier")
)

const (
	// maxLookbackDays bounds explicit dates: the feeds rarely carry
	// items older than two weeks, so earlier requests are rejected
	// instead of silently returning nothing.
	maxLookbackDays = 14

	// defaultRangeDays is the trailing window applied when the user
	// gives no date at all.
	defaultRangeDays = 7
)

// Target is a resolved date criterion: one calendar day, or an
// inclusive day range. Start and End are UTC midnights; for a single
// day they are equal.
type Target struct {
	Single bool
	Start  time.Time
	End    time.Time
}

// ResolveTarget turns a date specifier into a Target relative to
// today. An empty specifier selects the trailing seven days ending
// today; "today" and "yesterday" match case-insensitively; anything
// else must be a YYYY-MM-DD date no older than two weeks.
func ResolveTarget(spec string, today time.Time) (Target, error) {
	day := dateOnly(today)
	if spec == "" {
		return Target{Start: day.AddDate(0, 0, -defaultRangeDays), End: day}, nil
	}

	switch strings.ToLower(spec) {
	case "today":
		return Target{Single: true, Start: day, End: day}, nil
	case "yesterday":
		y := day.AddDate(0, 0, -1)
		return Target{Single: true, Start: y, End: y}, nil
	}

	parsed, err := time.Parse("2006-01-02", spec)
	if err != nil {
		return Target{}, fmt.Errorf("%w: %q", ErrUnparseable, spec)
	}
	if int(day.Sub(parsed).Hours()/24) > maxLookbackDays {
		return Target{}, fmt.Errorf("%w: %s", ErrTooOld, spec)
	}
	return Target{Single: true, Start: parsed, End: parsed}, nil
}

// Apply returns the items whose calendar day falls on the target,
// preserving their relative order. Items without a timestamp never
// match.
func Apply(items []news.Item, target Target) []news.Item {
	var matched []news.Item
	for _, it := range items {
		ts, ok := it.Time()
		if !ok {
			continue
		}
		day := dateOnly(ts)
		if day.Before(target.Start) || day.After(target.End) {
			continue
		}
		matched = append(matched, it)
	}
	return matched
}

// dateOnly reduces a point in time to its wall calendar date,
// represented as a UTC midnight so day arithmetic stays exact. Item
// timestamps arrive in UTC; today comes from the host clock in local
// time, mirroring how users name days.
func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
