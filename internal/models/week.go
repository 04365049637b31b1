package models

import (
	"fmt"
	"time"
)

// Week is an ISO-8601 (year, week) pair.
type Week struct {
	Year int `json:"year"`
	Num  int `json:"week"`
}

// WeekOf returns the ISO week containing t.
func WeekOf(t time.Time) Week {
	y, w := t.ISOWeek()
	return Week{Year: y, Num: w}
}

// ID returns the canonical identifier, e.g. 2024-W01.
func (w Week) ID() string {
	return fmt.Sprintf("%d-W%02d", w.Year, w.Num)
}

// Before reports whether w sorts chronologically before o.
func (w Week) Before(o Week) bool {
	if w.Year != o.Year {
		return w.Year < o.Year
	}
	return w.Num < o.Num
}

// Range returns the Monday and Sunday bounding the week.
func (w Week) Range() (time.Time, time.Time) {
	// January 4th is always in ISO week 1.
	jan4 := time.Date(w.Year, time.January, 4, 0, 0, 0, 0, time.UTC)
	offset := (int(jan4.Weekday()) + 6) % 7
	monday := jan4.AddDate(0, 0, -offset+(w.Num-1)*7)
	return monday, monday.AddDate(0, 0, 6)
}

// DateRange formats the week bounds as "YYYY-MM-DD to YYYY-MM-DD".
func (w Week) DateRange() string {
	start, end := w.Range()
	return start.Format(DateLayout) + " to " + end.Format(DateLayout)
}

// WeeklyFields is the narrative synthesized for one week.
type WeeklyFields struct {
	WeekSummary     string `json:"week_summary"`
	Accomplishments string `json:"accomplishments"`
	Insights        string `json:"insights"`
	Blockers        string `json:"blockers"`
	NextFocus       string `json:"next_focus"`
}
