// Package streak derives a student's canonical streak and aggregate
// fields from the raw reading-session log. The session log is ground
// truth; the derived fields are a materialized view that must be exactly
// reproducible by re-running the derivation at any time.
package streak

import (
	"sort"
	"time"
)

// DayLayout is the calendar-day format used throughout the program.
// All date arithmetic is calendar-day based, not duration-based, so the
// results cannot drift across daylight-saving boundaries.
const DayLayout = "2006-01-02"

// maxWalk caps the backward walk as a runaway guard
const maxWalk = 1000

// Entry is the (date, completed) pair the derivation needs from each
// session record
type Entry struct {
	Date      string // YYYY-MM-DD
	Completed bool
}

// Result holds the derived aggregate fields
type Result struct {
	CurrentStreak    int    `json:"currentStreak"`
	LongestStreak    int    `json:"longestStreak"`
	TotalReadingDays int    `json:"totalReadingDays"` // distinct dates with any session, completed or not
	LastReadingDate  string `json:"lastReadingDate"`  // most recent completed date, empty when none
}

// Derive computes the canonical aggregates from a session log. It is pure
// and idempotent: the same log and the same today always yield the same
// result. An empty log yields the zero result, not an error. Entries with
// unparseable dates are ignored rather than treated as fatal.
func Derive(entries []Entry, today time.Time) Result {
	completed := make(map[string]bool)
	anyDay := make(map[string]bool)

	for _, e := range entries {
		if _, err := time.Parse(DayLayout, e.Date); err != nil {
			continue
		}
		anyDay[e.Date] = true
		if e.Completed {
			completed[e.Date] = true
		}
	}

	return Result{
		CurrentStreak:    currentStreak(completed, today),
		LongestStreak:    longestStreak(completed),
		TotalReadingDays: len(anyDay),
		LastReadingDate:  lastReadingDate(completed),
	}
}

// currentStreak walks backward from today (or yesterday, so a streak
// survives until the day is fully over) counting consecutive completed
// dates
func currentStreak(completed map[string]bool, today time.Time) int {
	day := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)

	anchor := day
	if !completed[anchor.Format(DayLayout)] {
		anchor = day.AddDate(0, 0, -1)
		if !completed[anchor.Format(DayLayout)] {
			return 0
		}
	}

	count := 0
	for i := 0; i < maxWalk; i++ {
		if !completed[anchor.Format(DayLayout)] {
			break
		}
		count++
		anchor = anchor.AddDate(0, 0, -1)
	}
	return count
}

// longestStreak scans the sorted completed dates once, tracking the
// longest run of consecutive days
func longestStreak(completed map[string]bool) int {
	if len(completed) == 0 {
		return 0
	}

	dates := make([]string, 0, len(completed))
	for d := range completed {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	longest := 1
	run := 1
	prev, _ := time.Parse(DayLayout, dates[0])
	for _, d := range dates[1:] {
		cur, _ := time.Parse(DayLayout, d)
		if cur.Sub(prev) == 24*time.Hour {
			run++
		} else {
			run = 1
		}
		if run > longest {
			longest = run
		}
		prev = cur
	}
	return longest
}

// lastReadingDate returns the most recent completed date
func lastReadingDate(completed map[string]bool) string {
	last := ""
	for d := range completed {
		if d > last {
			last = d
		}
	}
	return last
}

// IsCompleted reports whether a session of the given duration counts as
// a completed reading day under the configured threshold
func IsCompleted(durationMinutes, thresholdMinutes int) bool {
	return durationMinutes >= thresholdMinutes
}
