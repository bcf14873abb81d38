package battle

import (
	"testing"

	"readquest/internal/models"
)

// patchedFamily reconstructs the record a patch would produce, for
// re-scanning
func patchedFamily(f *models.Family, patch *Patch) *models.Family {
	out := &models.Family{ID: f.ID, Battle: patch.Battle}
	if !patch.DeleteLegacy {
		out.Legacy = f.Legacy
	}
	return out
}

func TestComputeRepairHealthyIsNoOp(t *testing.T) {
	patch, err := ComputeRepair(healthyFamily())
	if err != nil {
		t.Fatalf("ComputeRepair() error = %v", err)
	}
	if patch != nil {
		t.Errorf("healthy family produced a patch: %+v", patch)
	}
}

func TestRepairDualStructureMergesByMax(t *testing.T) {
	family := &models.Family{
		ID: 7,
		Battle: &models.FamilyBattle{
			Enabled: true,
			History: &models.BattleHistory{TotalBattles: 3, ChildrenWins: 1, ParentWins: 1, Ties: 1},
		},
		Legacy: &models.LegacyHistory{Battles: 5, ChildrenWins: 2, ParentWins: 3, Ties: 0},
	}

	patch, err := ComputeRepair(family)
	if err != nil {
		t.Fatalf("ComputeRepair() error = %v", err)
	}
	if patch == nil {
		t.Fatal("expected a patch")
	}
	if !patch.DeleteLegacy {
		t.Error("legacy structure must be dropped after the merge")
	}

	h := patch.Battle.History
	if h.ChildrenWins != 2 || h.ParentWins != 3 || h.Ties != 1 {
		t.Errorf("merged counters = (%d,%d,%d), want (2,3,1)", h.ChildrenWins, h.ParentWins, h.Ties)
	}
	if h.TotalBattles != h.ChildrenWins+h.ParentWins+h.Ties {
		t.Errorf("merged total %d violates the math invariant", h.TotalBattles)
	}
	if h.TotalBattles < 6 {
		t.Errorf("merged total %d lost recorded battles", h.TotalBattles)
	}
}

func TestRepairDualStructureLargerLegacyTotal(t *testing.T) {
	// The legacy total exceeds the merged component sum; the final
	// record must still satisfy the math invariant
	family := &models.Family{
		ID: 8,
		Battle: &models.FamilyBattle{
			Enabled: true,
			History: &models.BattleHistory{TotalBattles: 2, ChildrenWins: 1, ParentWins: 1},
		},
		Legacy: &models.LegacyHistory{Battles: 10, ChildrenWins: 1, ParentWins: 1},
	}

	patch, err := ComputeRepair(family)
	if err != nil {
		t.Fatalf("ComputeRepair() error = %v", err)
	}

	if issues := Scan(patchedFamily(family, patch)); len(issues) != 0 {
		t.Errorf("patched record still flagged: %v", issueTypes(issues))
	}
}

func TestRepairInconsistentState(t *testing.T) {
	t.Run("live data wins and re-enables the battle", func(t *testing.T) {
		family := &models.Family{
			ID: 9,
			Battle: &models.FamilyBattle{
				Enabled:     false,
				CurrentWeek: &models.BattleWeek{WeekID: "2024-W10", ChildrenMinutes: 120},
			},
		}

		patch, err := ComputeRepair(family)
		if err != nil {
			t.Fatalf("ComputeRepair() error = %v", err)
		}
		if !patch.Battle.Enabled {
			t.Error("battle with real activity must be re-enabled, not discarded")
		}
		if patch.Battle.CurrentWeek == nil {
			t.Error("live week data must be preserved")
		}
		if patch.Battle.History == nil {
			t.Error("re-enabled battle needs a history structure")
		}
	})

	t.Run("dangling empty weeks are cleared", func(t *testing.T) {
		family := &models.Family{
			ID: 10,
			Battle: &models.FamilyBattle{
				Enabled:     false,
				CurrentWeek: &models.BattleWeek{WeekID: "2024-W10"},
			},
		}

		patch, err := ComputeRepair(family)
		if err != nil {
			t.Fatalf("ComputeRepair() error = %v", err)
		}
		if patch.Battle.Enabled {
			t.Error("battle without activity must stay disabled")
		}
		if patch.Battle.CurrentWeek != nil || patch.Battle.CompletedWeek != nil {
			t.Error("dangling week pointers must be cleared")
		}
	})
}

func TestRepairMissingHistory(t *testing.T) {
	family := &models.Family{
		ID:     11,
		Battle: &models.FamilyBattle{Enabled: true},
	}

	patch, err := ComputeRepair(family)
	if err != nil {
		t.Fatalf("ComputeRepair() error = %v", err)
	}
	h := patch.Battle.History
	if h == nil {
		t.Fatal("expected a default history structure")
	}
	if h.TotalBattles != 0 || h.ChildrenWins != 0 || h.ParentWins != 0 || h.Ties != 0 {
		t.Errorf("default history must be zeroed, got %+v", h)
	}
}

func TestRepairInvalidMathTrustsComponents(t *testing.T) {
	family := &models.Family{
		ID: 12,
		Battle: &models.FamilyBattle{
			Enabled: true,
			History: &models.BattleHistory{TotalBattles: 40, ChildrenWins: 3, ParentWins: 2, Ties: 1},
		},
	}

	patch, err := ComputeRepair(family)
	if err != nil {
		t.Fatalf("ComputeRepair() error = %v", err)
	}
	if got := patch.Battle.History.TotalBattles; got != 6 {
		t.Errorf("TotalBattles = %d, want 6 (sum of components)", got)
	}
}

func TestRepairOrphanedData(t *testing.T) {
	family := &models.Family{
		ID:     13,
		Legacy: &models.LegacyHistory{Battles: 5, ChildrenWins: 3, ParentWins: 2, Ties: 0},
	}

	patch, err := ComputeRepair(family)
	if err != nil {
		t.Fatalf("ComputeRepair() error = %v", err)
	}
	if !patch.DeleteLegacy {
		t.Error("legacy structure must be dropped")
	}
	if patch.Battle.Enabled {
		t.Error("families must explicitly opt back in; the battle stays disabled")
	}

	h := patch.Battle.History
	if h.TotalBattles != 5 || h.ChildrenWins != 3 || h.ParentWins != 2 || h.Ties != 0 {
		t.Errorf("legacy counters not carried over: %+v", h)
	}
}

func TestRepairIsIdempotent(t *testing.T) {
	families := []*models.Family{
		{
			ID: 20,
			Battle: &models.FamilyBattle{
				Enabled: true,
				History: &models.BattleHistory{TotalBattles: 3, ChildrenWins: 1, ParentWins: 1, Ties: 1},
			},
			Legacy: &models.LegacyHistory{Battles: 5, ChildrenWins: 2, ParentWins: 3},
		},
		{
			ID:     21,
			Battle: &models.FamilyBattle{Enabled: false, CurrentWeek: &models.BattleWeek{ChildrenMinutes: 30}},
		},
		{
			ID:     22,
			Battle: &models.FamilyBattle{Enabled: true},
		},
		{
			ID:     23,
			Legacy: &models.LegacyHistory{Battles: 4, ChildrenWins: 2, ParentWins: 1, Ties: 1},
		},
	}

	for _, family := range families {
		patch, err := ComputeRepair(family)
		if err != nil {
			t.Fatalf("family %d: ComputeRepair() error = %v", family.ID, err)
		}
		if patch == nil {
			t.Fatalf("family %d: expected a patch", family.ID)
		}

		repaired := patchedFamily(family, patch)
		if issues := Scan(repaired); len(issues) != 0 {
			t.Errorf("family %d: repaired record still flagged: %v", family.ID, issueTypes(issues))
		}

		again, err := ComputeRepair(repaired)
		if err != nil {
			t.Fatalf("family %d: second ComputeRepair() error = %v", family.ID, err)
		}
		if again != nil {
			t.Errorf("family %d: repair is not idempotent, second pass produced %+v", family.ID, again)
		}
	}
}

func TestRepairDoesNotMutateInput(t *testing.T) {
	family := &models.Family{
		ID: 30,
		Battle: &models.FamilyBattle{
			Enabled: true,
			History: &models.BattleHistory{TotalBattles: 3, ChildrenWins: 1, ParentWins: 1, Ties: 1},
		},
		Legacy: &models.LegacyHistory{Battles: 5},
	}

	if _, err := ComputeRepair(family); err != nil {
		t.Fatalf("ComputeRepair() error = %v", err)
	}

	if family.Battle.History.TotalBattles != 3 || family.Legacy == nil || family.Legacy.Battles != 5 {
		t.Error("repair mutated the scanned record")
	}
}
