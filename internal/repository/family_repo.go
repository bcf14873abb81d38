package repository

import (
	"database/sql"
	"fmt"
	"time"

	"readquest/internal/database"
)

// FamilyRepository handles database operations for families. Battle
// state is stored as JSON documents; decoding is left to the caller so
// a malformed document can be flagged instead of aborting a whole scan.
type FamilyRepository struct {
	db *database.DB
}

// NewFamilyRepository creates a new family repository
func NewFamilyRepository(db *database.DB) *FamilyRepository {
	return &FamilyRepository{db: db}
}

// FamilyRow is one family record with its battle documents still encoded
type FamilyRow struct {
	ID           int64
	Name         string
	BattleJSON   string
	LegacyJSON   string
	LastRepaired *time.Time
	RepairedBy   string
}

// GetAll retrieves every family record for a health scan
func (r *FamilyRepository) GetAll() ([]FamilyRow, error) {
	query := `
		SELECT id, name, battle, legacy_history, last_repaired, repaired_by
		FROM families
		ORDER BY id
	`
	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query families: %w", err)
	}
	defer rows.Close()

	var families []FamilyRow
	for rows.Next() {
		row, err := scanFamilyRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan family: %w", err)
		}
		families = append(families, *row)
	}
	return families, rows.Err()
}

// GetByID retrieves one family record, or nil when not found
func (r *FamilyRepository) GetByID(familyID int64) (*FamilyRow, error) {
	query := `
		SELECT id, name, battle, legacy_history, last_repaired, repaired_by
		FROM families
		WHERE id = ?
	`
	row, err := scanFamilyRow(r.db.QueryRow(query, familyID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get family: %w", err)
	}
	return row, nil
}

// ApplyRepair writes a computed repair as a single atomic row update and
// stamps the repair metadata. deleteLegacy clears the deprecated history
// field in the same write.
func (r *FamilyRepository) ApplyRepair(familyID int64, battleJSON string, deleteLegacy bool, repairedBy string) error {
	var query string
	var args []interface{}

	if deleteLegacy {
		query = `
			UPDATE families
			SET battle = ?, legacy_history = NULL, last_repaired = ?, repaired_by = ?,
			    updated_at = CURRENT_TIMESTAMP
			WHERE id = ?
		`
		args = []interface{}{battleJSON, time.Now().UTC(), repairedBy, familyID}
	} else {
		query = `
			UPDATE families
			SET battle = ?, last_repaired = ?, repaired_by = ?,
			    updated_at = CURRENT_TIMESTAMP
			WHERE id = ?
		`
		args = []interface{}{battleJSON, time.Now().UTC(), repairedBy, familyID}
	}

	res, err := r.db.Exec(query, args...)
	if err != nil {
		return fmt.Errorf("failed to apply repair: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("family %d not found", familyID)
	}
	return nil
}

func scanFamilyRow(row scanTarget) (*FamilyRow, error) {
	f := &FamilyRow{}
	var battleJSON, legacyJSON, repairedBy sql.NullString
	var lastRepaired sql.NullTime

	err := row.Scan(&f.ID, &f.Name, &battleJSON, &legacyJSON, &lastRepaired, &repairedBy)
	if err != nil {
		return nil, err
	}

	f.BattleJSON = battleJSON.String
	f.LegacyJSON = legacyJSON.String
	f.RepairedBy = repairedBy.String
	if lastRepaired.Valid {
		f.LastRepaired = &lastRepaired.Time
	}
	return f, nil
}
