package codec

import (
	"strings"
	"time"
)

// Cache compaction thresholds: after compactionMinRows data rows, once a
// runtime cache has recorded compactionMinHits matches, it replaces the
// library list for the rest of the run.
const (
	compactionMinRows = 30
	compactionMinHits = 100
)

// twoDigitYearWindow is the sliding window applied to two-digit years:
// the resolved year is the one congruent mod 100 that falls within
// [now-50y, now+49y].
const twoDigitYearWindow = 50

// patternSet is an ordered list of candidate layouts plus the runtime cache
// of layouts that actually matched, in first-match order. Precedence is
// positional: earlier layouts win, and a pinned layout is promoted to the
// front.
type patternSet struct {
	live      []string
	runtime   []string
	seen      map[string]bool
	hits      int
	compacted bool
}

func newPatternSet(layouts []string) *patternSet {
	return &patternSet{live: layouts, seen: make(map[string]bool)}
}

// promote moves layout to the front of the live list, inserting it if the
// library does not contain it.
func (p *patternSet) promote(layout string) {
	if layout == "" {
		return
	}
	out := make([]string, 0, len(p.live)+1)
	out = append(out, layout)
	for _, l := range p.live {
		if l != layout {
			out = append(out, l)
		}
	}
	p.live = out
}

func (p *patternSet) record(layout string) {
	p.hits++
	if !p.seen[layout] {
		p.seen[layout] = true
		p.runtime = append(p.runtime, layout)
	}
}

// maybeCompact swaps the live list for the runtime cache once enough
// matches accumulated. The swap is by reference and happens between rows.
func (p *patternSet) maybeCompact() {
	if p.compacted || p.hits < compactionMinHits || len(p.runtime) == 0 {
		return
	}
	p.live = p.runtime
	p.compacted = true
}

// parse tries every live layout in order and returns the first match.
func (p *patternSet) parse(s string, loc *time.Location) (time.Time, string, bool) {
	for _, layout := range p.live {
		t, err := time.ParseInLocation(layout, s, loc)
		if err != nil {
			continue
		}
		if isTwoDigitYearLayout(layout) {
			t = slideYear(t)
		}
		p.record(layout)
		return t, layout, true
	}
	return time.Time{}, "", false
}

// isTwoDigitYearLayout reports whether the layout carries a two-digit year.
func isTwoDigitYearLayout(layout string) bool {
	return strings.Contains(layout, "06") && !strings.Contains(layout, "2006")
}

// slideYear maps a parsed two-digit year onto the window centered on now:
// the century is chosen so the result lands in [now-50y, now+49y].
func slideYear(t time.Time) time.Time {
	base := time.Now().Year() - twoDigitYearWindow
	yy := t.Year() % 100
	year := base - base%100 + yy
	for year < base {
		year += 100
	}
	for year >= base+100 {
		year -= 100
	}
	return time.Date(year, t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

// dateTimeLibrary builds the candidate layout list: every date shape, alone
// and combined with each separator, time shape and zone suffix. Go's parser
// already tolerates a fractional-second field after the seconds, so the
// fraction permutations of the source library collapse into one layout
// each. Order matters: ISO shapes first, then US, then EU, then month-name
// and compact shapes.
func dateTimeLibrary() []string {
	dates := []string{
		"2006-01-02",
		"2006/01/02",
		"01-02-2006",
		"01/02/2006",
		"02-01-2006",
		"02/01/2006",
		"2006-Jan-02",
		"Jan-02-2006",
		"02-Jan-2006",
		"20060102",
		"02-Jan-06",
	}
	times := []string{
		"15:04:05",
		"03:04:05 PM",
	}
	seps := []string{" ", "T"}
	zones := []string{"", "Z07:00", " Z07:00", "Z0700", " Z0700"}

	var out []string
	for _, d := range dates {
		for _, sep := range seps {
			for _, tm := range times {
				for _, z := range zones {
					out = append(out, d+sep+tm+z)
				}
			}
		}
		out = append(out, d)
	}
	return out
}

// timeLibrary is the separate candidate list for TIME / TIMETZ targets.
func timeLibrary() []string {
	return []string{
		"15:04:05Z07:00",
		"15:04:05 Z07:00",
		"15:04:05",
		"03:04:05 PM",
		"15:04",
	}
}

// ParseDateTime resolves s against the live date-time pattern list. The
// matched layout is recorded in the runtime cache.
func (c *Codec) ParseDateTime(s string) (time.Time, bool) {
	t, _, ok := c.dateTime.parse(s, c.cfg.Location)
	return t, ok
}

// ParseTimeOnly resolves s against the time-only pattern list.
func (c *Codec) ParseTimeOnly(s string) (time.Time, bool) {
	t, _, ok := c.timeOnly.parse(s, c.cfg.Location)
	return t, ok
}

// cachedLayouts returns the current live list; tests use it to observe
// compaction.
func (c *Codec) cachedLayouts() []string { return c.dateTime.live }
