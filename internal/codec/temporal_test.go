package codec

import (
	"testing"
	"time"
)

// ----------------------------------------------------------------------------
// Pattern library resolution
// ----------------------------------------------------------------------------

func TestParseDateTimeShapes(t *testing.T) {
	c := New(Config{Location: time.UTC})

	tests := []struct {
		name  string
		input string
		want  time.Time
	}{
		{
			name:  "iso date only",
			input: "2024-01-02",
			want:  time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		},
		{
			name:  "iso date time",
			input: "2024-01-02 03:04:05",
			want:  time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		},
		{
			name:  "t separator",
			input: "2024-01-02T03:04:05",
			want:  time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		},
		{
			name:  "fractional seconds",
			input: "2024-01-02 03:04:05.250",
			want:  time.Date(2024, 1, 2, 3, 4, 5, 250000000, time.UTC),
		},
		{
			name:  "zone offset",
			input: "2024-01-02T03:04:05+02:00",
			want:  time.Date(2024, 1, 2, 3, 4, 5, 0, time.FixedZone("", 2*3600)),
		},
		{
			name:  "us date",
			input: "01/02/2024",
			want:  time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		},
		{
			name:  "compact date",
			input: "20240102",
			want:  time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		},
		{
			name:  "month name",
			input: "02-Jan-2024 03:04:05",
			want:  time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		},
		{
			name:  "twelve hour clock",
			input: "2024-01-02 03:04:05 PM",
			want:  time.Date(2024, 1, 2, 15, 4, 5, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := c.ParseDateTime(tt.input)
			if !ok {
				t.Fatalf("ParseDateTime(%q) did not match", tt.input)
			}
			if !got.Equal(tt.want) {
				t.Errorf("ParseDateTime(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseDateTimeMiss(t *testing.T) {
	c := New(Config{Location: time.UTC})
	for _, in := range []string{"not a date", "2024-13-45x", ""} {
		if _, ok := c.ParseDateTime(in); ok {
			t.Errorf("ParseDateTime(%q) matched, want miss", in)
		}
	}
}

func TestParseTimeOnly(t *testing.T) {
	c := New(Config{Location: time.UTC})
	got, ok := c.ParseTimeOnly("13:14:15")
	if !ok {
		t.Fatal("ParseTimeOnly did not match")
	}
	if got.Hour() != 13 || got.Minute() != 14 || got.Second() != 15 {
		t.Errorf("ParseTimeOnly = %v", got)
	}
}

// ----------------------------------------------------------------------------
// Sliding-window two-digit years
// ----------------------------------------------------------------------------

func TestTwoDigitYearWindow(t *testing.T) {
	c := New(Config{Location: time.UTC})
	got, ok := c.ParseDateTime("15-Mar-99")
	if !ok {
		t.Fatal("two-digit year shape did not match")
	}
	base := time.Now().Year() - twoDigitYearWindow
	if got.Year() < base || got.Year() >= base+100 {
		t.Errorf("year %d outside window [%d,%d)", got.Year(), base, base+100)
	}
	if got.Year()%100 != 99 {
		t.Errorf("year %d does not end in 99", got.Year())
	}
}

// ----------------------------------------------------------------------------
// Runtime cache compaction
// ----------------------------------------------------------------------------

func TestRuntimeCacheCompaction(t *testing.T) {
	c := New(Config{Location: time.UTC})
	libSize := len(c.cachedLayouts())
	if libSize < 10 {
		t.Fatalf("library unexpectedly small: %d", libSize)
	}

	// 100 matches over 30 rows triggers the swap.
	for i := 0; i < compactionMinHits; i++ {
		if _, ok := c.ParseDateTime("2024-01-02 03:04:05"); !ok {
			t.Fatal("parse failed during warm-up")
		}
	}
	for i := 0; i < compactionMinRows-1; i++ {
		c.EndRow()
	}
	if len(c.cachedLayouts()) != libSize {
		t.Fatal("cache swapped before the row threshold")
	}
	c.EndRow()
	if got := len(c.cachedLayouts()); got != 1 {
		t.Errorf("live pattern list has %d entries after compaction, want 1", got)
	}

	// The surviving pattern still resolves the homogeneous data.
	if _, ok := c.ParseDateTime("2024-06-07 08:09:10"); !ok {
		t.Error("compacted cache no longer parses the data")
	}
}

// ----------------------------------------------------------------------------
// Format/parse round-trip
// ----------------------------------------------------------------------------

func TestTemporalRoundTrip(t *testing.T) {
	c := New(Config{Location: time.UTC})
	layouts := []string{
		"2006-01-02 15:04:05",
		"01/02/2006 15:04:05",
		"2006-01-02T15:04:05Z07:00",
	}
	v := time.Date(2023, 11, 5, 6, 7, 8, 0, time.UTC)
	for _, layout := range layouts {
		s := v.Format(layout)
		got, ok := c.ParseDateTime(s)
		if !ok {
			t.Fatalf("round-trip parse failed for %q", s)
		}
		if got.Format(layout) != s {
			t.Errorf("layout %q: reformatted %q != %q", layout, got.Format(layout), s)
		}
	}
}
