package battle

import (
	"strings"
	"testing"

	"readquest/internal/models"
)

func TestRenderScript(t *testing.T) {
	family := &models.Family{
		ID:     42,
		Legacy: &models.LegacyHistory{Battles: 4, ChildrenWins: 2, ParentWins: 1, Ties: 1},
	}
	patch, err := ComputeRepair(family)
	if err != nil {
		t.Fatalf("ComputeRepair() error = %v", err)
	}

	script, err := RenderScript([]*Patch{patch})
	if err != nil {
		t.Fatalf("RenderScript() error = %v", err)
	}

	for _, want := range []string{
		"BEGIN;",
		"COMMIT;",
		"-- family 42: ORPHANED_DATA",
		"WHERE id = 42;",
		"legacy_history = NULL",
		"repaired_by = 'repair-script'",
	} {
		if !strings.Contains(script, want) {
			t.Errorf("script missing %q:\n%s", want, script)
		}
	}
}

func TestRenderScriptEmpty(t *testing.T) {
	script, err := RenderScript(nil)
	if err != nil {
		t.Fatalf("RenderScript() error = %v", err)
	}
	if !strings.Contains(script, "0 families to repair") {
		t.Errorf("unexpected header:\n%s", script)
	}
}
