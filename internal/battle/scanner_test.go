package battle

import (
	"testing"

	"readquest/internal/models"
)

func healthyFamily() *models.Family {
	return &models.Family{
		ID: 1,
		Battle: &models.FamilyBattle{
			Enabled: true,
			History: &models.BattleHistory{
				TotalBattles: 6,
				ChildrenWins: 3,
				ParentWins:   2,
				Ties:         1,
			},
		},
	}
}

func issueTypes(issues []Issue) []IssueType {
	types := make([]IssueType, 0, len(issues))
	for _, issue := range issues {
		types = append(types, issue.Type)
	}
	return types
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		family *models.Family
		want   Shape
	}{
		{"neither", &models.Family{}, Neither},
		{"legacy only", &models.Family{Legacy: &models.LegacyHistory{}}, LegacyOnly},
		{"current only", &models.Family{Battle: &models.FamilyBattle{}}, CurrentOnly},
		{"both", &models.Family{Battle: &models.FamilyBattle{}, Legacy: &models.LegacyHistory{}}, Both},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.family); got != tt.want {
				t.Errorf("Classify() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestScanHealthyFamily(t *testing.T) {
	if issues := Scan(healthyFamily()); len(issues) != 0 {
		t.Errorf("healthy family flagged: %v", issueTypes(issues))
	}
	if issues := Scan(&models.Family{ID: 2}); len(issues) != 0 {
		t.Errorf("family with no battle state flagged: %v", issueTypes(issues))
	}
}

func TestScanTaxonomy(t *testing.T) {
	tests := []struct {
		name   string
		family *models.Family
		want   []IssueType
	}{
		{
			name: "dual structure",
			family: &models.Family{
				Battle: &models.FamilyBattle{
					Enabled: true,
					History: &models.BattleHistory{TotalBattles: 4, ChildrenWins: 2, ParentWins: 1, Ties: 1},
				},
				Legacy: &models.LegacyHistory{Battles: 3, ChildrenWins: 2, ParentWins: 1},
			},
			want: []IssueType{IssueDualStructure},
		},
		{
			name: "disabled with live week data",
			family: &models.Family{
				Battle: &models.FamilyBattle{
					Enabled:     false,
					CurrentWeek: &models.BattleWeek{WeekID: "2024-W10"},
				},
			},
			want: []IssueType{IssueInconsistentState},
		},
		{
			name: "enabled without history",
			family: &models.Family{
				Battle: &models.FamilyBattle{Enabled: true},
			},
			want: []IssueType{IssueMissingHistory},
		},
		{
			name: "invalid math",
			family: &models.Family{
				Battle: &models.FamilyBattle{
					Enabled: true,
					History: &models.BattleHistory{TotalBattles: 10, ChildrenWins: 3, ParentWins: 2, Ties: 1},
				},
			},
			want: []IssueType{IssueInvalidMath},
		},
		{
			name: "orphaned legacy data",
			family: &models.Family{
				Legacy: &models.LegacyHistory{Battles: 5, ChildrenWins: 3, ParentWins: 2},
			},
			want: []IssueType{IssueOrphanedData},
		},
		{
			name: "several issues in taxonomy order",
			family: &models.Family{
				Battle: &models.FamilyBattle{
					Enabled:     false,
					CurrentWeek: &models.BattleWeek{WeekID: "2024-W10"},
					History:     &models.BattleHistory{TotalBattles: 9, ChildrenWins: 1},
				},
				Legacy: &models.LegacyHistory{Battles: 2},
			},
			want: []IssueType{IssueDualStructure, IssueInconsistentState, IssueInvalidMath},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := issueTypes(Scan(tt.family))
			if len(got) != len(tt.want) {
				t.Fatalf("Scan() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("issue %d = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestScanDoesNotMutate(t *testing.T) {
	family := &models.Family{
		Battle: &models.FamilyBattle{
			Enabled: true,
			History: &models.BattleHistory{TotalBattles: 10, ChildrenWins: 3},
		},
		Legacy: &models.LegacyHistory{Battles: 2},
	}

	Scan(family)

	if family.Battle.History.TotalBattles != 10 || family.Legacy == nil {
		t.Error("scan mutated the record")
	}
}

func TestRepairable(t *testing.T) {
	if Repairable(IssueMalformedRecord) || Repairable(IssueOrphanedStudents) {
		t.Error("report-only findings must not be repairable")
	}
	if !Repairable(IssueDualStructure) || !Repairable(IssueInvalidMath) {
		t.Error("taxonomy issues must be repairable")
	}
}

func TestParseDocuments(t *testing.T) {
	battleDoc, legacyDoc, err := ParseDocuments(
		`{"enabled":true,"history":{"totalBattles":2,"childrenWins":1,"parentWins":1,"ties":0}}`,
		`{"battles":3,"childrenWins":2,"parentWins":1,"ties":0}`,
	)
	if err != nil {
		t.Fatalf("ParseDocuments() error = %v", err)
	}
	if !battleDoc.Enabled || battleDoc.History.TotalBattles != 2 {
		t.Errorf("battle document decoded wrong: %+v", battleDoc)
	}
	if legacyDoc.Battles != 3 {
		t.Errorf("legacy document decoded wrong: %+v", legacyDoc)
	}

	if _, _, err := ParseDocuments(`{not json`, ""); err == nil {
		t.Error("malformed battle document should error")
	}
	if _, _, err := ParseDocuments("", `{not json`); err == nil {
		t.Error("malformed legacy document should error")
	}

	battleDoc, legacyDoc, err = ParseDocuments("", "")
	if err != nil || battleDoc != nil || legacyDoc != nil {
		t.Error("empty documents should decode to nil shapes")
	}
}
