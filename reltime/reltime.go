// Package reltime formats ISO 8601 timestamps as "how long ago" strings for
// post listings.
package reltime

import (
	"fmt"
	"strings"
	"time"
)

const (
	LocaleJapanese = "ja"
	LocaleEnglish  = "en"
)

// layouts are tried in order. Date-only input is read as UTC midnight and
// zone-less date-times as local time, matching how browsers parse them.
var layouts = []struct {
	layout string
	utc    bool
}{
	{time.RFC3339Nano, false},
	{"2006-01-02T15:04:05", false},
	{"2006-01-02T15:04", false},
	{"2006-01-02 15:04:05", false},
	{time.DateOnly, true},
}

// Formatter renders relative times. The zero value uses Japanese and the
// wall clock.
type Formatter struct {
	Locale string
	Now    func() time.Time
}

// Format returns the elapsed time since iso: minutes below one hour (never
// less than one), hours below one day, days otherwise. Future timestamps are
// clamped to one minute. Input that cannot be parsed is returned unchanged.
func (f Formatter) Format(iso string) string {
	target, ok := Parse(iso)
	if !ok {
		return iso
	}
	now := time.Now
	if f.Now != nil {
		now = f.Now
	}
	return f.Since(now().Sub(target))
}

// Since formats an elapsed duration.
func (f Formatter) Since(diff time.Duration) string {
	switch {
	case diff < time.Hour:
		minutes := int(diff / time.Minute)
		if minutes < 1 {
			minutes = 1
		}
		return f.unit(minutes, "分前", "minute")
	case diff < 24*time.Hour:
		return f.unit(int(diff/time.Hour), "時間前", "hour")
	default:
		return f.unit(int(diff/(24*time.Hour)), "日前", "day")
	}
}

func (f Formatter) unit(n int, ja, en string) string {
	if strings.EqualFold(f.Locale, LocaleEnglish) {
		if n == 1 {
			return fmt.Sprintf("1 %s ago", en)
		}
		return fmt.Sprintf("%d %ss ago", n, en)
	}
	return fmt.Sprintf("%d%s", n, ja)
}

// Parse reads an ISO 8601 date or date-time.
func Parse(iso string) (time.Time, bool) {
	s := strings.TrimSpace(iso)
	if s == "" {
		return time.Time{}, false
	}
	for _, l := range layouts {
		loc := time.Local
		if l.utc {
			loc = time.UTC
		}
		if t, err := time.ParseInLocation(l.layout, s, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
