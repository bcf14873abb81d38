package models

import "time"

// ProgramConfig is the singleton record holding the program's current
// phase and academic year. It is created once at bootstrap and mutated
// only through the phase state machine.
type ProgramConfig struct {
	Phase        string    `json:"phase"`
	AcademicYear string    `json:"academicYear"` // "YYYY-YY", e.g. "2025-26"
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Operator represents an administrator account on the operator surface
type Operator struct {
	ID           int64
	Email        string
	PasswordHash string
	Name         string
	CreatedAt    time.Time
}
