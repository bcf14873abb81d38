package repository

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"readquest/internal/database"
	"readquest/internal/models"
	"readquest/internal/streak"
)

// StudentRepository handles database operations for students
type StudentRepository struct {
	db *database.DB
}

// NewStudentRepository creates a new student repository
func NewStudentRepository(db *database.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

const studentColumns = `id, entity, school, name, family_id, battle_enabled,
	       current_streak, longest_streak, last_reading_date,
	       total_reading_days, total_days_read, lifetime_xp, badges,
	       books_submitted_year, bookshelf, votes, created_at, updated_at`

// GetStudentByID retrieves a student by ID, or nil when not found
func (r *StudentRepository) GetStudentByID(studentID int64) (*models.Student, error) {
	query := "SELECT " + studentColumns + " FROM students WHERE id = ?"
	row := r.db.QueryRow(query, studentID)

	student, err := scanStudent(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get student: %w", err)
	}
	return student, nil
}

// ListStudentIDs returns every student id in the system, ordered for
// stable bulk iteration
func (r *StudentRepository) ListStudentIDs() ([]int64, error) {
	rows, err := r.db.Query("SELECT id FROM students ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to query student ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan student id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListByFamily retrieves the students belonging to a family
func (r *StudentRepository) ListByFamily(familyID int64) ([]models.Student, error) {
	query := "SELECT " + studentColumns + " FROM students WHERE family_id = ? ORDER BY id"
	rows, err := r.db.Query(query, familyID)
	if err != nil {
		return nil, fmt.Errorf("failed to query family students: %w", err)
	}
	defer rows.Close()

	var students []models.Student
	for rows.Next() {
		student, err := scanStudent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan student: %w", err)
		}
		students = append(students, *student)
	}
	return students, rows.Err()
}

// UpdateAggregates overwrites the cached derived fields with a freshly
// derived result. The two total-days fields are legacy duplicates and
// always written together.
func (r *StudentRepository) UpdateAggregates(studentID int64, result streak.Result) error {
	var lastDate interface{}
	if result.LastReadingDate != "" {
		lastDate = result.LastReadingDate
	}

	query := `
		UPDATE students
		SET current_streak = ?, longest_streak = ?, last_reading_date = ?,
		    total_reading_days = ?, total_days_read = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`
	res, err := r.db.Exec(query,
		result.CurrentStreak, result.LongestStreak, lastDate,
		result.TotalReadingDays, result.TotalReadingDays, studentID)
	if err != nil {
		return fmt.Errorf("failed to update student aggregates: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("student %d not found", studentID)
	}
	return nil
}

// ClearYearData resets a student's per-year fields for a new academic
// year. Cross-year fields (streak counters, lifetime XP, badges) are
// deliberately untouched.
func (r *StudentRepository) ClearYearData(studentID int64) error {
	query := `
		UPDATE students
		SET books_submitted_year = 0, bookshelf = NULL, votes = NULL,
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`
	res, err := r.db.Exec(query, studentID)
	if err != nil {
		return fmt.Errorf("failed to clear year data: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("student %d not found", studentID)
	}
	return nil
}

// scanTarget abstracts sql.Row and sql.Rows for scanStudent
type scanTarget interface {
	Scan(dest ...interface{}) error
}

func scanStudent(row scanTarget) (*models.Student, error) {
	student := &models.Student{}
	var familyID sql.NullInt64
	var lastReadingDate, badges, bookshelf, votes sql.NullString

	err := row.Scan(
		&student.ID, &student.Entity, &student.School, &student.Name,
		&familyID, &student.BattleEnabled,
		&student.CurrentStreak, &student.LongestStreak, &lastReadingDate,
		&student.TotalReadingDays, &student.TotalDaysRead, &student.LifetimeXP, &badges,
		&student.BooksSubmittedYear, &bookshelf, &votes,
		&student.CreatedAt, &student.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if familyID.Valid {
		student.FamilyID = &familyID.Int64
	}
	student.LastReadingDate = lastReadingDate.String

	if badges.Valid && badges.String != "" {
		if err := json.Unmarshal([]byte(badges.String), &student.Badges); err != nil {
			return nil, fmt.Errorf("malformed badges document for student %d: %w", student.ID, err)
		}
	}
	if bookshelf.Valid && bookshelf.String != "" {
		if err := json.Unmarshal([]byte(bookshelf.String), &student.Bookshelf); err != nil {
			return nil, fmt.Errorf("malformed bookshelf document for student %d: %w", student.ID, err)
		}
	}
	if votes.Valid && votes.String != "" {
		if err := json.Unmarshal([]byte(votes.String), &student.Votes); err != nil {
			return nil, fmt.Errorf("malformed votes document for student %d: %w", student.ID, err)
		}
	}

	return student, nil
}
