package repository

import (
	"database/sql"
	"fmt"

	"readquest/internal/database"
	"readquest/internal/models"
)

// ProgramRepository handles the program config singleton. The row is
// created once at bootstrap and only ever updated through the phase
// state machine; per-document atomicity of the store is the only
// concurrency control the design requires.
type ProgramRepository struct {
	db *database.DB
}

// NewProgramRepository creates a new program repository
func NewProgramRepository(db *database.DB) *ProgramRepository {
	return &ProgramRepository{db: db}
}

// Get retrieves the program config, or nil when not yet bootstrapped
func (r *ProgramRepository) Get() (*models.ProgramConfig, error) {
	query := "SELECT phase, academic_year, updated_at FROM program_config WHERE id = 1"
	cfg := &models.ProgramConfig{}
	err := r.db.QueryRow(query).Scan(&cfg.Phase, &cfg.AcademicYear, &cfg.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get program config: %w", err)
	}
	return cfg, nil
}

// Put writes the phase and academic year as one upsert
func (r *ProgramRepository) Put(phase, academicYear string) error {
	query := r.db.Dialect.UpsertProgramConfig()
	if _, err := r.db.Exec(query, phase, academicYear); err != nil {
		return fmt.Errorf("failed to write program config: %w", err)
	}
	return nil
}

// EnsureInitialized creates the singleton in its initial state when it
// does not yet exist, and reports whether it had to
func (r *ProgramRepository) EnsureInitialized(defaultYear string) (bool, error) {
	cfg, err := r.Get()
	if err != nil {
		return false, err
	}
	if cfg != nil {
		return false, nil
	}
	if err := r.Put("SETUP", defaultYear); err != nil {
		return false, err
	}
	return true, nil
}
