package models

import (
	"testing"
	"time"
)

func TestParsePriority(t *testing.T) {
	cases := map[string]Priority{
		"high":   PriorityHigh,
		" HIGH ": PriorityHigh,
		"Low":    PriorityLow,
		"medium": PriorityMedium,
		"urgent": PriorityMedium,
		"":       PriorityMedium,
	}
	for in, want := range cases {
		if got := ParsePriority(in); got != want {
			t.Errorf("ParsePriority(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestPriorityEmojiRoundTrip(t *testing.T) {
	for _, p := range []Priority{PriorityHigh, PriorityMedium, PriorityLow} {
		if got := PriorityFromEmoji(p.Emoji()); got != p {
			t.Errorf("PriorityFromEmoji(%q) = %q, want %q", p.Emoji(), got, p)
		}
	}
	if got := PriorityFromEmoji(""); got != PriorityMedium {
		t.Errorf("missing marker = %q, want medium", got)
	}
}

func TestWeekOfAndRange(t *testing.T) {
	cases := []struct {
		date      string
		id        string
		dateRange string
	}{
		{"2024-01-01", "2024-W01", "2024-01-01 to 2024-01-07"},
		{"2024-01-03", "2024-W01", "2024-01-01 to 2024-01-07"},
		{"2021-01-03", "2020-W53", "2020-12-28 to 2021-01-03"},
		{"2025-12-29", "2026-W01", "2025-12-29 to 2026-01-04"},
	}
	for _, c := range cases {
		d, err := time.Parse(DateLayout, c.date)
		if err != nil {
			t.Fatalf("parse %s: %v", c.date, err)
		}
		w := WeekOf(d)
		if w.ID() != c.id {
			t.Errorf("WeekOf(%s).ID() = %q, want %q", c.date, w.ID(), c.id)
		}
		if w.DateRange() != c.dateRange {
			t.Errorf("%s DateRange() = %q, want %q", c.id, w.DateRange(), c.dateRange)
		}
	}
}

func TestWeekBefore(t *testing.T) {
	a := Week{Year: 2023, Num: 52}
	b := Week{Year: 2024, Num: 1}
	if !a.Before(b) || b.Before(a) {
		t.Errorf("expected %s before %s", a.ID(), b.ID())
	}
}
