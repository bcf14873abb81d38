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
	"readquest/internal/phase"
	"readquest/internal/repository"
)

// ErrProgramNotInitialized is returned when the program config singleton
// has not been bootstrapped
var ErrProgramNotInitialized = errors.New("program config not initialized")

// TransitionReport records one phase change
type TransitionReport struct {
	OldPhase string `json:"oldPhase"`
	NewPhase string `json:"newPhase"`
}

// RolloverReport is the outcome of an academic-year rollover
type RolloverReport struct {
	OldYear         string      `json:"oldYear"`
	NewYear         string      `json:"newYear"`
	StudentsCleared int         `json:"studentsCleared"`
	Failed          int         `json:"failed"`
	Errors          []UnitError `json:"errors,omitempty"`
}

// ProgramService drives the academic-year lifecycle: phase transitions
// and the bulk rollover that resets per-year student data
type ProgramService struct {
	programRepo     *repository.ProgramRepository
	studentRepo     *repository.StudentRepository
	activeStartDate string // MM-DD, scheduled TEACHER_SELECTION -> ACTIVE
	location        *time.Location
	concurrency     int
	logger          *zap.Logger
}

// NewProgramService creates a new program service
func NewProgramService(programRepo *repository.ProgramRepository, studentRepo *repository.StudentRepository, activeStartDate string, location *time.Location, concurrency int, logger *zap.Logger) *ProgramService {
	if location == nil {
		location = time.UTC
	}
	if concurrency < 1 {
		concurrency = 1
	}
	return &ProgramService{
		programRepo:     programRepo,
		studentRepo:     studentRepo,
		activeStartDate: activeStartDate,
		location:        location,
		concurrency:     concurrency,
		logger:          logger,
	}
}

// GetProgram returns the current program config
func (s *ProgramService) GetProgram() (*models.ProgramConfig, error) {
	cfg, err := s.programRepo.Get()
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, ErrProgramNotInitialized
	}
	return cfg, nil
}

// TransitionPhase moves the program to the target phase after checking
// the transition table
func (s *ProgramService) TransitionPhase(target string) (*TransitionReport, error) {
	cfg, err := s.GetProgram()
	if err != nil {
		return nil, err
	}

	from, err := phase.Parse(cfg.Phase)
	if err != nil {
		return nil, err
	}
	to, err := phase.Parse(target)
	if err != nil {
		return nil, err
	}

	next, err := phase.Transition(from, to)
	if err != nil {
		return nil, err
	}
	if err := s.programRepo.Put(string(next), cfg.AcademicYear); err != nil {
		return nil, err
	}

	s.logger.Info("phase transition",
		zap.String("from", string(from)),
		zap.String("to", string(next)))

	return &TransitionReport{OldPhase: string(from), NewPhase: string(next)}, nil
}

// RolloverAcademicYear resets the program for the next school year:
// the phase returns to SETUP, the academic year is bumped, every
// student's per-year data is cleared, and the program then advances to
// TEACHER_SELECTION. Cross-year fields (lifetime XP, badges, streaks)
// are untouched. Students are cleared independently; failures are
// reported and do not abort the run, since a re-run converges.
func (s *ProgramService) RolloverAcademicYear(ctx context.Context) (*RolloverReport, error) {
	cfg, err := s.GetProgram()
	if err != nil {
		return nil, err
	}

	from, err := phase.Parse(cfg.Phase)
	if err != nil {
		return nil, err
	}
	if _, err := phase.Transition(from, phase.Setup); err != nil {
		return nil, fmt.Errorf("rollover requires a phase that can return to SETUP: %w", err)
	}

	newYear, err := phase.NextAcademicYear(cfg.AcademicYear)
	if err != nil {
		return nil, err
	}

	// Phase bracketing: SETUP marks the reset as in progress, so an
	// interrupted rollover is visible and safe to re-run
	if err := s.programRepo.Put(string(phase.Setup), newYear); err != nil {
		return nil, err
	}

	report := &RolloverReport{OldYear: cfg.AcademicYear, NewYear: newYear}

	ids, err := s.studentRepo.ListStudentIDs()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate students: %w", err)
	}

	var mu sync.Mutex
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for _, id := range ids {
		id := id
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			err := s.studentRepo.ClearYearData(id)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.Failed++
				report.Errors = append(report.Errors, UnitError{
					Key:     fmt.Sprintf("student:%d", id),
					Message: err.Error(),
				})
			} else {
				report.StudentsCleared++
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if err := s.programRepo.Put(string(phase.TeacherSelection), newYear); err != nil {
		return nil, err
	}

	s.logger.Info("academic year rollover complete",
		zap.String("old_year", report.OldYear),
		zap.String("new_year", report.NewYear),
		zap.Int("cleared", report.StudentsCleared),
		zap.Int("failed", report.Failed))

	return report, nil
}

// CheckScheduledTransition advances TEACHER_SELECTION to ACTIVE once
// the configured start date has been reached. It is safe to call on any
// schedule; outside the window it does nothing.
func (s *ProgramService) CheckScheduledTransition(now time.Time) error {
	if s.activeStartDate == "" {
		return nil
	}

	cfg, err := s.programRepo.Get()
	if err != nil {
		return err
	}
	if cfg == nil || cfg.Phase != string(phase.TeacherSelection) {
		return nil
	}

	// MM-DD strings compare chronologically
	if now.In(s.location).Format("01-02") < s.activeStartDate {
		return nil
	}

	if _, err := s.TransitionPhase(string(phase.Active)); err != nil {
		return err
	}
	s.logger.Info("scheduled activation fired",
		zap.String("start_date", s.activeStartDate))
	return nil
}
