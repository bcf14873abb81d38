package service

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"readquest/internal/battle"
	"readquest/internal/database"
	"readquest/internal/repository"
)

func newTestDB(t *testing.T) *database.DB {
	t.Helper()

	db, err := database.Initialize(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to initialize database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.RunMigrations("../../migrations"); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}
	return db
}

func insertFamily(t *testing.T, db *database.DB, name, battleJSON, legacyJSON string) int64 {
	t.Helper()

	var battleArg, legacyArg interface{}
	if battleJSON != "" {
		battleArg = battleJSON
	}
	if legacyJSON != "" {
		legacyArg = legacyJSON
	}

	id, err := db.ExecReturningID(
		"INSERT INTO families (name, battle, legacy_history) VALUES (?, ?, ?)",
		name, battleArg, legacyArg)
	if err != nil {
		t.Fatalf("Failed to insert family: %v", err)
	}
	return id
}

func insertStudent(t *testing.T, db *database.DB, name string, familyID int64, battleEnabled bool) int64 {
	t.Helper()

	id, err := db.ExecReturningID(
		"INSERT INTO students (entity, school, name, family_id, battle_enabled) VALUES ('district-1', 'lincoln-elementary', ?, ?, ?)",
		name, familyID, battleEnabled)
	if err != nil {
		t.Fatalf("Failed to insert student: %v", err)
	}
	return id
}

func TestMaintenanceScanAndRepair(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db := newTestDB(t)
	familyRepo := repository.NewFamilyRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	svc := NewBattleMaintenanceService(familyRepo, studentRepo, 4, zap.NewNop())
	ctx := context.Background()

	insertFamily(t, db, "healthy",
		`{"enabled":true,"history":{"totalBattles":3,"childrenWins":2,"parentWins":1,"ties":0}}`, "")
	dualID := insertFamily(t, db, "dual",
		`{"enabled":true,"history":{"totalBattles":3,"childrenWins":1,"parentWins":1,"ties":1}}`,
		`{"battles":5,"childrenWins":2,"parentWins":3,"ties":0}`)
	orphanID := insertFamily(t, db, "orphaned",
		"", `{"battles":4,"childrenWins":2,"parentWins":1,"ties":1}`)
	insertFamily(t, db, "malformed", `{this is not json`, "")

	disagreeID := insertFamily(t, db, "disagreeing",
		`{"enabled":true,"history":{"totalBattles":0,"childrenWins":0,"parentWins":0,"ties":0}}`, "")
	insertStudent(t, db, "Opted Out", disagreeID, false)

	report, err := svc.ScanFamilies(ctx)
	if err != nil {
		t.Fatalf("ScanFamilies() error = %v", err)
	}

	if report.FamiliesScanned != 5 {
		t.Errorf("FamiliesScanned = %d, want 5", report.FamiliesScanned)
	}
	if report.Healthy {
		t.Error("scan with broken families reported healthy")
	}
	if report.IssueCounts[battle.IssueDualStructure] != 1 {
		t.Errorf("DUAL_STRUCTURE count = %d, want 1", report.IssueCounts[battle.IssueDualStructure])
	}
	if report.IssueCounts[battle.IssueOrphanedData] != 1 {
		t.Errorf("ORPHANED_DATA count = %d, want 1", report.IssueCounts[battle.IssueOrphanedData])
	}
	if report.IssueCounts[battle.IssueMalformedRecord] != 1 {
		t.Errorf("MALFORMED_RECORD count = %d, want 1", report.IssueCounts[battle.IssueMalformedRecord])
	}
	if report.IssueCounts[battle.IssueOrphanedStudents] != 1 {
		t.Errorf("ORPHANED_STUDENTS count = %d, want 1", report.IssueCounts[battle.IssueOrphanedStudents])
	}

	// Repair the two repairable families
	repairReport, err := svc.RepairFamilies(ctx, []int64{dualID, orphanID}, "test-operator")
	if err != nil {
		t.Fatalf("RepairFamilies() error = %v", err)
	}
	if repairReport.Succeeded != 2 || repairReport.Failed != 0 {
		t.Fatalf("repair = %d succeeded / %d failed, want 2/0: %v",
			repairReport.Succeeded, repairReport.Failed, repairReport.Errors)
	}

	// A second run over the same families is a no-op
	again, err := svc.RepairFamilies(ctx, []int64{dualID, orphanID}, "test-operator")
	if err != nil {
		t.Fatalf("second RepairFamilies() error = %v", err)
	}
	if again.Skipped != 2 || again.Succeeded != 0 {
		t.Errorf("second repair = %+v, want both skipped", again)
	}

	// Repaired rows carry the audit stamp and no legacy document
	row, err := familyRepo.GetByID(dualID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if row.LegacyJSON != "" {
		t.Error("legacy document survived the repair")
	}
	if row.RepairedBy != "test-operator" || row.LastRepaired == nil {
		t.Errorf("repair metadata not stamped: repairedBy=%q lastRepaired=%v", row.RepairedBy, row.LastRepaired)
	}

	// Re-scan: only the report-only findings remain
	rescan, err := svc.ScanFamilies(ctx)
	if err != nil {
		t.Fatalf("re-scan error = %v", err)
	}
	for issueType, n := range rescan.IssueCounts {
		if battle.Repairable(issueType) && n > 0 {
			t.Errorf("repairable issue %s still present after repair: %d", issueType, n)
		}
	}
}

func TestRepairFamiliesUnknownID(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db := newTestDB(t)
	svc := NewBattleMaintenanceService(
		repository.NewFamilyRepository(db), repository.NewStudentRepository(db), 2, zap.NewNop())

	report, err := svc.RepairFamilies(context.Background(), []int64{9999}, "")
	if err != nil {
		t.Fatalf("RepairFamilies() error = %v", err)
	}
	if report.Failed != 1 {
		t.Errorf("Failed = %d, want 1", report.Failed)
	}
	if len(report.Errors) != 1 || !strings.Contains(report.Errors[0].Message, "not found") {
		t.Errorf("Errors = %v, want a not-found unit error", report.Errors)
	}
}

func TestGenerateRepairScript(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db := newTestDB(t)
	familyRepo := repository.NewFamilyRepository(db)
	svc := NewBattleMaintenanceService(familyRepo, repository.NewStudentRepository(db), 2, zap.NewNop())

	id := insertFamily(t, db, "orphaned", "", `{"battles":2,"childrenWins":1,"parentWins":1,"ties":0}`)

	script, err := svc.GenerateRepairScript(context.Background(), []int64{id})
	if err != nil {
		t.Fatalf("GenerateRepairScript() error = %v", err)
	}
	if !strings.Contains(script, "legacy_history = NULL") {
		t.Errorf("script missing legacy clear:\n%s", script)
	}

	// Rendering must not write anything
	row, err := familyRepo.GetByID(id)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if row.LegacyJSON == "" {
		t.Error("script generation mutated the record")
	}
}
