package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"readquest/internal/phase"
	"readquest/internal/repository"
)

func TestProgramPhaseTransitions(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db := newTestDB(t)
	programRepo := repository.NewProgramRepository(db)
	svc := NewProgramService(programRepo, repository.NewStudentRepository(db), "", time.UTC, 4, zap.NewNop())

	if _, err := programRepo.EnsureInitialized("2025-26"); err != nil {
		t.Fatalf("EnsureInitialized() error = %v", err)
	}

	report, err := svc.TransitionPhase("TEACHER_SELECTION")
	if err != nil {
		t.Fatalf("TransitionPhase() error = %v", err)
	}
	if report.OldPhase != "SETUP" || report.NewPhase != "TEACHER_SELECTION" {
		t.Errorf("report = %+v", report)
	}

	// Skipping ahead is rejected and the stored phase is untouched
	if _, err := svc.TransitionPhase("RESULTS"); !errors.Is(err, phase.ErrIllegalTransition) {
		t.Errorf("error = %v, want ErrIllegalTransition", err)
	}
	cfg, err := svc.GetProgram()
	if err != nil {
		t.Fatalf("GetProgram() error = %v", err)
	}
	if cfg.Phase != "TEACHER_SELECTION" {
		t.Errorf("phase = %s after rejected transition, want TEACHER_SELECTION", cfg.Phase)
	}

	if _, err := svc.TransitionPhase("NOT_A_PHASE"); !errors.Is(err, phase.ErrUnknownPhase) {
		t.Errorf("error = %v, want ErrUnknownPhase", err)
	}
}

func TestRolloverAcademicYear(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db := newTestDB(t)
	programRepo := repository.NewProgramRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	svc := NewProgramService(programRepo, studentRepo, "", time.UTC, 4, zap.NewNop())
	ctx := context.Background()

	if err := programRepo.Put("RESULTS", "2025-26"); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	familyID := insertFamily(t, db, "rollover", "", "")
	studentID := insertStudent(t, db, "Carry Over", familyID, true)
	if _, err := db.Exec(`
		UPDATE students
		SET lifetime_xp = 500, badges = '["bookworm"]', current_streak = 7,
		    books_submitted_year = 12, bookshelf = '[{"bookId":"b1","title":"Book One"}]',
		    votes = '[{"bookId":"b1","rank":1}]'
		WHERE id = ?`, studentID); err != nil {
		t.Fatalf("Failed to seed student: %v", err)
	}

	report, err := svc.RolloverAcademicYear(ctx)
	if err != nil {
		t.Fatalf("RolloverAcademicYear() error = %v", err)
	}
	if report.OldYear != "2025-26" || report.NewYear != "2026-27" {
		t.Errorf("years = %s -> %s", report.OldYear, report.NewYear)
	}
	if report.StudentsCleared != 1 || report.Failed != 0 {
		t.Errorf("cleared = %d, failed = %d, want 1/0", report.StudentsCleared, report.Failed)
	}

	cfg, err := svc.GetProgram()
	if err != nil {
		t.Fatalf("GetProgram() error = %v", err)
	}
	if cfg.Phase != "TEACHER_SELECTION" || cfg.AcademicYear != "2026-27" {
		t.Errorf("program = (%s, %s), want (TEACHER_SELECTION, 2026-27)", cfg.Phase, cfg.AcademicYear)
	}

	// Per-year data cleared, cross-year data untouched
	student, err := studentRepo.GetStudentByID(studentID)
	if err != nil {
		t.Fatalf("GetStudentByID() error = %v", err)
	}
	if student.BooksSubmittedYear != 0 || len(student.Bookshelf) != 0 || len(student.Votes) != 0 {
		t.Errorf("per-year data survived rollover: %+v", student)
	}
	if student.LifetimeXP != 500 || len(student.Badges) != 1 || student.CurrentStreak != 7 {
		t.Errorf("cross-year data damaged by rollover: xp=%d badges=%v streak=%d",
			student.LifetimeXP, student.Badges, student.CurrentStreak)
	}
}

func TestRolloverRequiresEligiblePhase(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db := newTestDB(t)
	programRepo := repository.NewProgramRepository(db)
	svc := NewProgramService(programRepo, repository.NewStudentRepository(db), "", time.UTC, 2, zap.NewNop())

	if err := programRepo.Put("ACTIVE", "2025-26"); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	if _, err := svc.RolloverAcademicYear(context.Background()); !errors.Is(err, phase.ErrIllegalTransition) {
		t.Errorf("error = %v, want ErrIllegalTransition", err)
	}
}

func TestCheckScheduledTransition(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db := newTestDB(t)
	programRepo := repository.NewProgramRepository(db)
	svc := NewProgramService(programRepo, repository.NewStudentRepository(db), "09-01", time.UTC, 2, zap.NewNop())

	if err := programRepo.Put("TEACHER_SELECTION", "2025-26"); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	// Before the start date: nothing happens
	before := time.Date(2025, 8, 15, 12, 0, 0, 0, time.UTC)
	if err := svc.CheckScheduledTransition(before); err != nil {
		t.Fatalf("CheckScheduledTransition() error = %v", err)
	}
	cfg, _ := svc.GetProgram()
	if cfg.Phase != "TEACHER_SELECTION" {
		t.Errorf("phase = %s before start date, want TEACHER_SELECTION", cfg.Phase)
	}

	// On the start date: advances to ACTIVE
	onDate := time.Date(2025, 9, 1, 0, 30, 0, 0, time.UTC)
	if err := svc.CheckScheduledTransition(onDate); err != nil {
		t.Fatalf("CheckScheduledTransition() error = %v", err)
	}
	cfg, _ = svc.GetProgram()
	if cfg.Phase != "ACTIVE" {
		t.Errorf("phase = %s on start date, want ACTIVE", cfg.Phase)
	}

	// Further checks in other phases are no-ops
	if err := svc.CheckScheduledTransition(onDate.AddDate(0, 0, 1)); err != nil {
		t.Fatalf("CheckScheduledTransition() error = %v", err)
	}
	cfg, _ = svc.GetProgram()
	if cfg.Phase != "ACTIVE" {
		t.Errorf("phase = %s after repeat check, want ACTIVE", cfg.Phase)
	}
}
