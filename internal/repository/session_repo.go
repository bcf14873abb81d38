package repository

import (
	"fmt"

	"readquest/internal/database"
	"readquest/internal/models"
	"readquest/internal/streak"
)

// SessionRepository handles database operations for the append-only
// reading-session log
type SessionRepository struct {
	db *database.DB
}

// NewSessionRepository creates a new session repository
func NewSessionRepository(db *database.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// CreateSession appends a session record to a student's log
func (r *SessionRepository) CreateSession(s *models.ReadingSession) (int64, error) {
	query := `
		INSERT INTO reading_sessions (student_id, date, duration, completed, book_id, start_time, target_duration)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	var bookID interface{}
	if s.BookID != "" {
		bookID = s.BookID
	}

	id, err := r.db.ExecReturningID(query,
		s.StudentID, s.Date, s.Duration, s.Completed, bookID, s.StartTime, s.TargetDuration)
	if err != nil {
		return 0, fmt.Errorf("failed to create reading session: %w", err)
	}
	return id, nil
}

// ListEntriesForStudent returns the (date, completed) pairs the streak
// derivation needs, which is all it ever reads from the log
func (r *SessionRepository) ListEntriesForStudent(studentID int64) ([]streak.Entry, error) {
	query := "SELECT date, completed FROM reading_sessions WHERE student_id = ? ORDER BY date"
	rows, err := r.db.Query(query, studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query reading sessions: %w", err)
	}
	defer rows.Close()

	var entries []streak.Entry
	for rows.Next() {
		var e streak.Entry
		if err := rows.Scan(&e.Date, &e.Completed); err != nil {
			return nil, fmt.Errorf("failed to scan reading session: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
