package models

import (
	"encoding/json"
	"time"
)

// Family represents a family group; its battle state is stored as a JSON
// document so legacy and current shapes can coexist on the same row
type Family struct {
	ID           int64
	Name         string
	Battle       *FamilyBattle  // current shape, nil when absent
	Legacy       *LegacyHistory // deprecated shape, nil when absent
	LastRepaired *time.Time
	RepairedBy   string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// FamilyBattle is the current shape of a family's cooperative-reading
// battle state
type FamilyBattle struct {
	Enabled       bool             `json:"enabled"`
	CurrentWeek   *BattleWeek      `json:"currentWeek,omitempty"`
	CompletedWeek *BattleWeek      `json:"completedWeek,omitempty"`
	History       *BattleHistory   `json:"history,omitempty"`
}

// BattleWeek holds one week of battle progress. The scanner only cares
// about presence; the payload is carried through untouched.
type BattleWeek struct {
	WeekID          string          `json:"weekId,omitempty"`
	StartDate       string          `json:"startDate,omitempty"`
	EndDate         string          `json:"endDate,omitempty"`
	ChildrenMinutes int             `json:"childrenMinutes,omitempty"`
	ParentMinutes   int             `json:"parentMinutes,omitempty"`
	Winner          string          `json:"winner,omitempty"`
	Extra           json.RawMessage `json:"extra,omitempty"`
}

// BattleHistory is the current history sub-structure
type BattleHistory struct {
	TotalBattles  int               `json:"totalBattles"`
	ChildrenWins  int               `json:"childrenWins"`
	ParentWins    int               `json:"parentWins"`
	Ties          int               `json:"ties"`
	CurrentStreak *TeamStreak       `json:"currentStreak,omitempty"`
	RecentBattles []json.RawMessage `json:"recentBattles,omitempty"`
	XPAwarded     map[string]int    `json:"xpAwarded,omitempty"`
}

// TeamStreak tracks which team is on a winning run
type TeamStreak struct {
	Team  string `json:"team"`
	Count int    `json:"count"`
}

// LegacyHistory is the deprecated history shape. It carries only the four
// counters; the win/loss breakdown detail of the current shape does not
// exist in legacy data.
type LegacyHistory struct {
	Battles      int `json:"battles"`
	ChildrenWins int `json:"childrenWins"`
	ParentWins   int `json:"parentWins"`
	Ties         int `json:"ties"`
}
