package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"readquest/internal/models"
	"readquest/internal/repository"
	"readquest/internal/streak"
)

var (
	// ErrStudentNotFound is returned when a referenced student id does
	// not exist
	ErrStudentNotFound = errors.New("student not found")
	// ErrInvalidSessionDate is returned for a session date that is not a
	// YYYY-MM-DD calendar day
	ErrInvalidSessionDate = errors.New("invalid session date")
)

// MigrationReport is the outcome of a bulk streak recomputation
type MigrationReport struct {
	Processed int         `json:"processed"`
	Updated   int         `json:"updated"`
	Errors    []UnitError `json:"errors,omitempty"`
}

// StreakService derives streak aggregates from the reading-session log.
// The log is the source of truth; stored aggregates are a cache that
// any recomputation may overwrite.
type StreakService struct {
	studentRepo *repository.StudentRepository
	sessionRepo *repository.SessionRepository
	location    *time.Location
	threshold   int // minutes a session must last to count as completed
	concurrency int
	logger      *zap.Logger
}

// NewStreakService creates a new streak service
func NewStreakService(studentRepo *repository.StudentRepository, sessionRepo *repository.SessionRepository, location *time.Location, threshold, concurrency int, logger *zap.Logger) *StreakService {
	if location == nil {
		location = time.UTC
	}
	if concurrency < 1 {
		concurrency = 1
	}
	return &StreakService{
		studentRepo: studentRepo,
		sessionRepo: sessionRepo,
		location:    location,
		threshold:   threshold,
		concurrency: concurrency,
		logger:      logger,
	}
}

// LogSession appends a session to a student's log and recomputes their
// aggregates. The completed flag is derived from the configured minimum
// duration; a blank date means today in the tenant's timezone.
func (s *StreakService) LogSession(ctx context.Context, studentID int64, date string, durationMinutes int, bookID string) (*streak.Result, error) {
	if date == "" {
		date = time.Now().In(s.location).Format(streak.DayLayout)
	}
	if _, err := time.Parse(streak.DayLayout, date); err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSessionDate, date)
	}

	student, err := s.studentRepo.GetStudentByID(studentID)
	if err != nil {
		return nil, err
	}
	if student == nil {
		return nil, ErrStudentNotFound
	}

	session := &models.ReadingSession{
		StudentID: studentID,
		Date:      date,
		Duration:  durationMinutes,
		Completed: streak.IsCompleted(durationMinutes, s.threshold),
		BookID:    bookID,
		StartTime: time.Now().In(s.location),
	}
	if _, err := s.sessionRepo.CreateSession(session); err != nil {
		return nil, err
	}

	return s.RecomputeStudent(ctx, studentID)
}

// RecomputeStudent rebuilds one student's streak aggregates from their
// full session log and persists the result
func (s *StreakService) RecomputeStudent(ctx context.Context, studentID int64) (*streak.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	student, err := s.studentRepo.GetStudentByID(studentID)
	if err != nil {
		return nil, err
	}
	if student == nil {
		return nil, ErrStudentNotFound
	}

	entries, err := s.sessionRepo.ListEntriesForStudent(studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to load sessions: %w", err)
	}

	result := streak.Derive(entries, time.Now().In(s.location))
	if err := s.studentRepo.UpdateAggregates(studentID, result); err != nil {
		return nil, fmt.Errorf("failed to persist aggregates: %w", err)
	}
	return &result, nil
}

// MigrateAll recomputes every student's aggregates from their logs.
// Students are independent units: one failure is recorded and the rest
// proceed. Updated counts students whose stored aggregates differed
// from the derived values.
func (s *StreakService) MigrateAll(ctx context.Context) (*MigrationReport, error) {
	ids, err := s.studentRepo.ListStudentIDs()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate students: %w", err)
	}

	report := &MigrationReport{}

	var mu sync.Mutex
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for _, id := range ids {
		id := id
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			changed, err := s.migrateOne(id)

			mu.Lock()
			defer mu.Unlock()
			report.Processed++
			if err != nil {
				report.Errors = append(report.Errors, UnitError{
					Key:     fmt.Sprintf("student:%d", id),
					Message: err.Error(),
				})
			} else if changed {
				report.Updated++
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	s.logger.Info("streak migration complete",
		zap.Int("processed", report.Processed),
		zap.Int("updated", report.Updated),
		zap.Int("errors", len(report.Errors)))

	return report, nil
}

// migrateOne recomputes one student and reports whether the stored
// aggregates changed
func (s *StreakService) migrateOne(studentID int64) (bool, error) {
	student, err := s.studentRepo.GetStudentByID(studentID)
	if err != nil {
		return false, err
	}
	if student == nil {
		return false, ErrStudentNotFound
	}

	entries, err := s.sessionRepo.ListEntriesForStudent(studentID)
	if err != nil {
		return false, err
	}

	result := streak.Derive(entries, time.Now().In(s.location))
	changed := student.CurrentStreak != result.CurrentStreak ||
		student.LongestStreak != result.LongestStreak ||
		student.TotalReadingDays != result.TotalReadingDays ||
		student.LastReadingDate != result.LastReadingDate

	if err := s.studentRepo.UpdateAggregates(studentID, result); err != nil {
		return false, err
	}
	return changed, nil
}
