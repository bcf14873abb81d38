package models

import "time"

// Student represents a child enrolled in the reading program.
// Tenancy is keyed by (Entity, School); FamilyID is a back-reference
// maintained by application code, not a store-enforced foreign key.
type Student struct {
	ID            int64
	Entity        string
	School        string
	Name          string
	FamilyID      *int64
	BattleEnabled bool

	// Derived aggregate fields. These are a materialized view over the
	// student's reading sessions and must always be reproducible by
	// re-running the streak derivation over the session log.
	CurrentStreak    int
	LongestStreak    int
	LastReadingDate  string // YYYY-MM-DD, empty when no completed session exists
	TotalReadingDays int
	TotalDaysRead    int // legacy duplicate of TotalReadingDays, kept equal

	// Cross-year fields, preserved by the academic-year rollover
	LifetimeXP int
	Badges     []string

	// Per-year fields, reset by the academic-year rollover
	BooksSubmittedYear int
	Bookshelf          []BookshelfEntry
	Votes              []Vote

	CreatedAt time.Time
	UpdatedAt time.Time
}

// BookshelfEntry is a manually-entered book record for the current year
type BookshelfEntry struct {
	BookID      string `json:"bookId"`
	Title       string `json:"title"`
	SubmittedAt string `json:"submittedAt"`
}

// Vote is a student's vote for a nominated book in the current year
type Vote struct {
	BookID  string `json:"bookId"`
	CastAt  string `json:"castAt"`
	Rank    int    `json:"rank"`
	Counted bool   `json:"counted"`
}

// ReadingSession is one append-only entry in a student's session log.
// The log is ground truth for the student's derived aggregate fields.
type ReadingSession struct {
	ID             int64
	StudentID      int64
	Date           string // YYYY-MM-DD, local to the tenant's timezone
	Duration       int    // minutes
	Completed      bool   // derived: Duration >= completion threshold
	BookID         string
	StartTime      time.Time
	TargetDuration int
}
