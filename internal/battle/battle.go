// Package battle detects and heals drift between the legacy and current
// representations of a family's cooperative-reading battle state. The
// scanner classifies records against a fixed issue taxonomy without
// mutating anything; the repair engine computes one merged patch per
// family that resolves every flagged issue and is a no-op on healthy
// records.
package battle

import (
	"encoding/json"
	"fmt"

	"readquest/internal/models"
)

// Shape identifies which representations of battle state a family record
// carries. Every code path normalizes to the current shape before any
// other logic touches the record.
type Shape int

const (
	// Neither representation present
	Neither Shape = iota
	// LegacyOnly carries only the deprecated history field
	LegacyOnly
	// CurrentOnly carries only the current battle document
	CurrentOnly
	// Both representations present at once (drift)
	Both
)

func (s Shape) String() string {
	switch s {
	case LegacyOnly:
		return "legacy-only"
	case CurrentOnly:
		return "current-only"
	case Both:
		return "both"
	default:
		return "neither"
	}
}

// Classify reports the shape of a family's battle state
func Classify(f *models.Family) Shape {
	switch {
	case f.Battle != nil && f.Legacy != nil:
		return Both
	case f.Battle != nil:
		return CurrentOnly
	case f.Legacy != nil:
		return LegacyOnly
	default:
		return Neither
	}
}

// ParseDocuments decodes the stored JSON documents into the current and
// legacy shapes. A decode failure is reported, never panicked on; the
// caller flags the record as malformed and moves to the next unit.
func ParseDocuments(battleJSON, legacyJSON string) (*models.FamilyBattle, *models.LegacyHistory, error) {
	var battleDoc *models.FamilyBattle
	if battleJSON != "" {
		battleDoc = &models.FamilyBattle{}
		if err := json.Unmarshal([]byte(battleJSON), battleDoc); err != nil {
			return nil, nil, fmt.Errorf("malformed battle document: %w", err)
		}
	}

	var legacyDoc *models.LegacyHistory
	if legacyJSON != "" {
		legacyDoc = &models.LegacyHistory{}
		if err := json.Unmarshal([]byte(legacyJSON), legacyDoc); err != nil {
			return nil, nil, fmt.Errorf("malformed legacy history document: %w", err)
		}
	}

	return battleDoc, legacyDoc, nil
}

// EncodeBattle serializes the current battle document for storage
func EncodeBattle(b *models.FamilyBattle) (string, error) {
	if b == nil {
		return "", nil
	}
	data, err := json.Marshal(b)
	if err != nil {
		return "", fmt.Errorf("failed to encode battle document: %w", err)
	}
	return string(data), nil
}

// cloneBattle deep-copies a battle document so repairs never mutate the
// scanned record
func cloneBattle(b *models.FamilyBattle) *models.FamilyBattle {
	if b == nil {
		return nil
	}
	out := &models.FamilyBattle{Enabled: b.Enabled}
	if b.CurrentWeek != nil {
		week := *b.CurrentWeek
		out.CurrentWeek = &week
	}
	if b.CompletedWeek != nil {
		week := *b.CompletedWeek
		out.CompletedWeek = &week
	}
	out.History = cloneHistory(b.History)
	return out
}

func cloneHistory(h *models.BattleHistory) *models.BattleHistory {
	if h == nil {
		return nil
	}
	out := &models.BattleHistory{
		TotalBattles: h.TotalBattles,
		ChildrenWins: h.ChildrenWins,
		ParentWins:   h.ParentWins,
		Ties:         h.Ties,
	}
	if h.CurrentStreak != nil {
		cs := *h.CurrentStreak
		out.CurrentStreak = &cs
	}
	if h.RecentBattles != nil {
		out.RecentBattles = append([]json.RawMessage(nil), h.RecentBattles...)
	}
	if h.XPAwarded != nil {
		out.XPAwarded = make(map[string]int, len(h.XPAwarded))
		for k, v := range h.XPAwarded {
			out.XPAwarded[k] = v
		}
	}
	return out
}

// zeroHistory returns a default history sub-structure
func zeroHistory() *models.BattleHistory {
	return &models.BattleHistory{}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
