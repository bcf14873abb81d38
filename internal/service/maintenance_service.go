package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"readquest/internal/battle"
	"readquest/internal/models"
	"readquest/internal/repository"
)

var (
	// ErrFamilyNotFound is returned when a referenced family id does not exist
	ErrFamilyNotFound = errors.New("family not found")
	// ErrNoFamiliesSelected is returned for an empty repair request
	ErrNoFamiliesSelected = errors.New("no families selected")
)

// UnitError records one failed unit of a bulk operation. Bulk jobs never
// abort on a single unit; they collect and report.
type UnitError struct {
	Key     string `json:"key"`
	Message string `json:"message"`
}

// FamilyIssueReport is the scan result for one family with at least one
// issue
type FamilyIssueReport struct {
	FamilyID int64          `json:"familyId"`
	Name     string         `json:"name,omitempty"`
	Issues   []battle.Issue `json:"issues"`
}

// ScanReport is the outcome of a full health scan. Healthy (no issues
// found) is distinguished from issues-found-but-not-repaired.
type ScanReport struct {
	ScanID             string                   `json:"scanId"`
	ScannedAt          time.Time                `json:"scannedAt"`
	FamiliesScanned    int                      `json:"familiesScanned"`
	FamiliesWithIssues int                      `json:"familiesWithIssues"`
	Healthy            bool                     `json:"healthy"`
	IssueCounts        map[battle.IssueType]int `json:"issueCounts"`
	Reports            []FamilyIssueReport      `json:"reports"`
	Errors             []UnitError              `json:"errors,omitempty"`
}

// RepairReport is the outcome of a batch repair
type RepairReport struct {
	RunID     string      `json:"runId"`
	Requested int         `json:"requested"`
	Succeeded int         `json:"succeeded"`
	Skipped   int         `json:"skipped"` // already healthy, nothing written
	Failed    int         `json:"failed"`
	Errors    []UnitError `json:"errors,omitempty"`
}

// BattleMaintenanceService runs the health scan and the repair engine
// over the family population. Every family is an independent unit of
// work: units are processed concurrently with a bounded limit, one
// unit's failure never blocks or corrupts another, and repairs are
// idempotent so re-running after a partial failure converges.
type BattleMaintenanceService struct {
	familyRepo  *repository.FamilyRepository
	studentRepo *repository.StudentRepository
	concurrency int
	logger      *zap.Logger
}

// NewBattleMaintenanceService creates a new maintenance service
func NewBattleMaintenanceService(familyRepo *repository.FamilyRepository, studentRepo *repository.StudentRepository, concurrency int, logger *zap.Logger) *BattleMaintenanceService {
	if concurrency < 1 {
		concurrency = 1
	}
	return &BattleMaintenanceService{
		familyRepo:  familyRepo,
		studentRepo: studentRepo,
		concurrency: concurrency,
		logger:      logger,
	}
}

// ScanFamilies classifies every family record against the issue
// taxonomy. The scan is read-only; it mutates nothing.
func (s *BattleMaintenanceService) ScanFamilies(ctx context.Context) (*ScanReport, error) {
	rows, err := s.familyRepo.GetAll()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate families: %w", err)
	}

	report := &ScanReport{
		ScanID:          uuid.New().String(),
		ScannedAt:       time.Now().UTC(),
		FamiliesScanned: len(rows),
		IssueCounts:     make(map[battle.IssueType]int),
	}

	var mu sync.Mutex
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for _, row := range rows {
		row := row
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			issues, unitErr := s.scanFamily(row)

			mu.Lock()
			defer mu.Unlock()
			if unitErr != nil {
				report.Errors = append(report.Errors, *unitErr)
			}
			if len(issues) > 0 {
				report.Reports = append(report.Reports, FamilyIssueReport{
					FamilyID: row.ID,
					Name:     row.Name,
					Issues:   issues,
				})
				for _, issue := range issues {
					report.IssueCounts[issue.Type]++
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(report.Reports, func(i, j int) bool {
		return report.Reports[i].FamilyID < report.Reports[j].FamilyID
	})
	report.FamiliesWithIssues = len(report.Reports)
	report.Healthy = report.FamiliesWithIssues == 0 && len(report.Errors) == 0

	s.logger.Info("family health scan complete",
		zap.String("scan_id", report.ScanID),
		zap.Int("scanned", report.FamiliesScanned),
		zap.Int("with_issues", report.FamiliesWithIssues),
		zap.Int("errors", len(report.Errors)))

	return report, nil
}

// scanFamily classifies one family row, including the report-only
// findings the repair engine never touches
func (s *BattleMaintenanceService) scanFamily(row repository.FamilyRow) ([]battle.Issue, *UnitError) {
	battleDoc, legacyDoc, err := battle.ParseDocuments(row.BattleJSON, row.LegacyJSON)
	if err != nil {
		// Malformed beyond what the taxonomy models: flag, never crash
		return []battle.Issue{{
			Type:        battle.IssueMalformedRecord,
			Severity:    battle.SeverityHigh,
			Description: err.Error(),
		}}, nil
	}

	family := &models.Family{ID: row.ID, Name: row.Name, Battle: battleDoc, Legacy: legacyDoc}
	issues := battle.Scan(family)

	// Report-only: family enabled but students opted out. Left for the
	// enrollment workflow to resolve; auto-flipping the student flag
	// would silently re-enroll families that opted out.
	if battleDoc != nil && battleDoc.Enabled {
		students, err := s.studentRepo.ListByFamily(row.ID)
		if err != nil {
			return issues, &UnitError{Key: fmt.Sprintf("family:%d", row.ID), Message: err.Error()}
		}
		var disagreeing []int64
		for _, st := range students {
			if !st.BattleEnabled {
				disagreeing = append(disagreeing, st.ID)
			}
		}
		if len(disagreeing) > 0 {
			issues = append(issues, battle.Issue{
				Type:        battle.IssueOrphanedStudents,
				Severity:    battle.SeverityLow,
				Description: fmt.Sprintf("%d student(s) disagree with the family's enabled flag", len(disagreeing)),
				StudentIDs:  disagreeing,
			})
		}
	}

	return issues, nil
}

// RepairFamilies applies the repair engine to the selected families.
// Families are repaired independently; the report carries success and
// failure counts plus per-family error messages, never an all-or-nothing
// failure.
func (s *BattleMaintenanceService) RepairFamilies(ctx context.Context, familyIDs []int64, repairedBy string) (*RepairReport, error) {
	if len(familyIDs) == 0 {
		return nil, ErrNoFamiliesSelected
	}
	if repairedBy == "" {
		repairedBy = "maintenance"
	}

	report := &RepairReport{
		RunID:     uuid.New().String(),
		Requested: len(familyIDs),
	}

	var mu sync.Mutex
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for _, id := range familyIDs {
		id := id
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			outcome, err := s.repairFamily(id, repairedBy)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				report.Failed++
				report.Errors = append(report.Errors, UnitError{
					Key:     fmt.Sprintf("family:%d", id),
					Message: err.Error(),
				})
			case outcome:
				report.Succeeded++
			default:
				report.Skipped++
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	s.logger.Info("family repair run complete",
		zap.String("run_id", report.RunID),
		zap.Int("requested", report.Requested),
		zap.Int("succeeded", report.Succeeded),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", report.Failed))

	return report, nil
}

// repairFamily repairs one family; it reports whether anything was
// written
func (s *BattleMaintenanceService) repairFamily(familyID int64, repairedBy string) (bool, error) {
	row, err := s.familyRepo.GetByID(familyID)
	if err != nil {
		return false, err
	}
	if row == nil {
		return false, ErrFamilyNotFound
	}

	patch, err := s.computePatch(row)
	if err != nil {
		return false, err
	}
	if patch == nil {
		// Healthy record: repairs are no-ops by design, never visited
		return false, nil
	}

	doc, err := battle.EncodeBattle(patch.Battle)
	if err != nil {
		return false, err
	}
	if err := s.familyRepo.ApplyRepair(familyID, doc, patch.DeleteLegacy, repairedBy); err != nil {
		return false, err
	}
	return true, nil
}

// computePatch parses a family row and computes its repair patch, or
// nil when the record is healthy
func (s *BattleMaintenanceService) computePatch(row *repository.FamilyRow) (*battle.Patch, error) {
	battleDoc, legacyDoc, err := battle.ParseDocuments(row.BattleJSON, row.LegacyJSON)
	if err != nil {
		return nil, err
	}

	family := &models.Family{ID: row.ID, Name: row.Name, Battle: battleDoc, Legacy: legacyDoc}
	patch, err := battle.ComputeRepair(family)
	if err != nil {
		if errors.Is(err, battle.ErrInvariantViolation) {
			// Must not be possible by construction; refuse to write
			s.logger.Error("repair invariant violation, patch not written",
				zap.Int64("family_id", row.ID),
				zap.Error(err))
		}
		return nil, err
	}
	return patch, nil
}

// GenerateRepairScript renders the selected families' repairs as an
// executable script without applying anything
func (s *BattleMaintenanceService) GenerateRepairScript(ctx context.Context, familyIDs []int64) (string, error) {
	if len(familyIDs) == 0 {
		return "", ErrNoFamiliesSelected
	}

	var patches []*battle.Patch
	for _, id := range familyIDs {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		row, err := s.familyRepo.GetByID(id)
		if err != nil {
			return "", err
		}
		if row == nil {
			return "", fmt.Errorf("family %d: %w", id, ErrFamilyNotFound)
		}

		patch, err := s.computePatch(row)
		if err != nil {
			return "", fmt.Errorf("family %d: %w", id, err)
		}
		if patch != nil {
			patches = append(patches, patch)
		}
	}

	return battle.RenderScript(patches)
}
