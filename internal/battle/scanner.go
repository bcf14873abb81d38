package battle

import (
	"fmt"

	"readquest/internal/models"
)

// IssueType identifies one entry of the fixed issue taxonomy
type IssueType string

const (
	// IssueDualStructure: both the legacy and current history
	// sub-structures are present on the same record
	IssueDualStructure IssueType = "DUAL_STRUCTURE"
	// IssueInconsistentState: the battle is disabled but live week data
	// is still attached
	IssueInconsistentState IssueType = "INCONSISTENT_STATE"
	// IssueMissingHistory: the battle is enabled but carries no history
	// sub-structure
	IssueMissingHistory IssueType = "MISSING_HISTORY"
	// IssueInvalidMath: the history total does not equal the sum of the
	// win/tie counters
	IssueInvalidMath IssueType = "INVALID_MATH"
	// IssueOrphanedData: legacy history exists but no current battle
	// structure exists at all
	IssueOrphanedData IssueType = "ORPHANED_DATA"
	// IssueMalformedRecord: a stored document cannot be decoded at all;
	// report-only, excluded from automated repair
	IssueMalformedRecord IssueType = "MALFORMED_RECORD"
	// IssueOrphanedStudents: the family battle is enabled but one or
	// more of its students carry a disabled battle flag; report-only
	IssueOrphanedStudents IssueType = "ORPHANED_STUDENTS"
)

// Severity of an issue
type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
)

// Issue is one taxonomy finding on a family record, carrying enough
// pre-computed detail that the repair engine needs no further reads
type Issue struct {
	Type        IssueType `json:"type"`
	Severity    Severity  `json:"severity"`
	Description string    `json:"description"`

	// Detail for DUAL_STRUCTURE and ORPHANED_DATA
	Legacy *models.LegacyHistory `json:"legacy,omitempty"`
	// Detail for DUAL_STRUCTURE and INVALID_MATH
	Current *models.BattleHistory `json:"current,omitempty"`
	// Detail for ORPHANED_STUDENTS
	StudentIDs []int64 `json:"studentIds,omitempty"`
}

// Scan classifies a family record against the issue taxonomy. It is a
// pure function of the record's shape and mutates nothing. Issues are
// returned in taxonomy order; a family may carry several at once.
func Scan(f *models.Family) []Issue {
	var issues []Issue

	shape := Classify(f)

	if shape == Both {
		issues = append(issues, Issue{
			Type:        IssueDualStructure,
			Severity:    SeverityHigh,
			Description: "legacy and current history structures are both present",
			Legacy:      f.Legacy,
			Current:     f.Battle.History,
		})
	}

	if f.Battle != nil && !f.Battle.Enabled && (f.Battle.CurrentWeek != nil || f.Battle.CompletedWeek != nil) {
		issues = append(issues, Issue{
			Type:        IssueInconsistentState,
			Severity:    SeverityMedium,
			Description: "battle is disabled but week data is still attached",
		})
	}

	if f.Battle != nil && f.Battle.Enabled && f.Battle.History == nil {
		issues = append(issues, Issue{
			Type:        IssueMissingHistory,
			Severity:    SeverityHigh,
			Description: "battle is enabled but has no history structure",
		})
	}

	if f.Battle != nil && f.Battle.History != nil {
		h := f.Battle.History
		if h.TotalBattles != h.ChildrenWins+h.ParentWins+h.Ties {
			issues = append(issues, Issue{
				Type:     IssueInvalidMath,
				Severity: SeverityMedium,
				Description: fmt.Sprintf("totalBattles %d does not equal %d wins + %d wins + %d ties",
					h.TotalBattles, h.ChildrenWins, h.ParentWins, h.Ties),
				Current: h,
			})
		}
	}

	if shape == LegacyOnly {
		issues = append(issues, Issue{
			Type:        IssueOrphanedData,
			Severity:    SeverityLow,
			Description: "legacy history exists without a current battle structure",
			Legacy:      f.Legacy,
		})
	}

	return issues
}

// Repairable reports whether an issue type is resolved by the repair
// engine. Report-only findings are surfaced in scan reports but never
// patched.
func Repairable(t IssueType) bool {
	switch t {
	case IssueMalformedRecord, IssueOrphanedStudents:
		return false
	default:
		return true
	}
}
