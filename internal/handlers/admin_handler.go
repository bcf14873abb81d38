package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"readquest/internal/battle"
	"readquest/internal/phase"
	"readquest/internal/service"
)

// AdminHandler exposes the maintenance surface: health scans, repairs,
// streak recomputation and the year lifecycle
type AdminHandler struct {
	maintenance *service.BattleMaintenanceService
	streaks     *service.StreakService
	program     *service.ProgramService
	mailer      *service.ReportMailer
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(maintenance *service.BattleMaintenanceService, streaks *service.StreakService, program *service.ProgramService, mailer *service.ReportMailer) *AdminHandler {
	return &AdminHandler{
		maintenance: maintenance,
		streaks:     streaks,
		program:     program,
		mailer:      mailer,
	}
}

// ScanBattles runs a read-only health scan over every family
func (h *AdminHandler) ScanBattles(w http.ResponseWriter, r *http.Request) {
	report, err := h.maintenance.ScanFamilies(r.Context())
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "scan failed", err)
		return
	}

	if h.mailer.IsEnabled() {
		// The scan result still goes out in the response either way
		if err := h.mailer.SendScanReport(r.Context(), report); err != nil {
			logger.Error("scan report email failed", zap.Error(err))
		}
	}

	respondWithJSON(w, http.StatusOK, report)
}

type repairRequest struct {
	FamilyIDs []int64 `json:"familyIds" validate:"required,min=1"`
}

// RepairBattles applies the repair engine to the selected families
func (h *AdminHandler) RepairBattles(w http.ResponseWriter, r *http.Request) {
	var req repairRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	if err := validate.Struct(req); err != nil {
		respondWithError(w, http.StatusBadRequest, "familyIds must list at least one family", nil)
		return
	}

	report, err := h.maintenance.RepairFamilies(r.Context(), req.FamilyIDs, operatorEmail(r))
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "repair failed", err)
		return
	}
	respondWithJSON(w, http.StatusOK, report)
}

// RepairScript renders the selected families' repairs as an executable
// script without writing anything
func (h *AdminHandler) RepairScript(w http.ResponseWriter, r *http.Request) {
	var req repairRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	if err := validate.Struct(req); err != nil {
		respondWithError(w, http.StatusBadRequest, "familyIds must list at least one family", nil)
		return
	}

	script, err := h.maintenance.GenerateRepairScript(r.Context(), req.FamilyIDs)
	if err != nil {
		if errors.Is(err, service.ErrFamilyNotFound) {
			respondWithError(w, http.StatusNotFound, err.Error(), nil)
			return
		}
		if errors.Is(err, battle.ErrInvariantViolation) {
			respondWithError(w, http.StatusConflict, err.Error(), nil)
			return
		}
		respondWithError(w, http.StatusInternalServerError, "script generation failed", err)
		return
	}

	w.Header().Set("Content-Type", "application/sql")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(script))
}

type logSessionRequest struct {
	Date     string `json:"date"` // YYYY-MM-DD, blank means today
	Duration int    `json:"duration" validate:"required,min=1"`
	BookID   string `json:"bookId"`
}

// LogSession appends a reading session to a student's log and returns
// the recomputed aggregates
func (h *AdminHandler) LogSession(w http.ResponseWriter, r *http.Request) {
	studentID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid student id", nil)
		return
	}

	var req logSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	if err := validate.Struct(req); err != nil {
		respondWithError(w, http.StatusBadRequest, "duration must be a positive minute count", nil)
		return
	}

	result, err := h.streaks.LogSession(r.Context(), studentID, req.Date, req.Duration, req.BookID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrStudentNotFound):
			respondWithError(w, http.StatusNotFound, "student not found", nil)
		case errors.Is(err, service.ErrInvalidSessionDate):
			respondWithError(w, http.StatusBadRequest, err.Error(), nil)
		default:
			respondWithError(w, http.StatusInternalServerError, "failed to log session", err)
		}
		return
	}
	respondWithJSON(w, http.StatusCreated, result)
}

// RecomputeStreak rebuilds one student's streak aggregates from their
// session log
func (h *AdminHandler) RecomputeStreak(w http.ResponseWriter, r *http.Request) {
	studentID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid student id", nil)
		return
	}

	result, err := h.streaks.RecomputeStudent(r.Context(), studentID)
	if err != nil {
		if errors.Is(err, service.ErrStudentNotFound) {
			respondWithError(w, http.StatusNotFound, "student not found", nil)
			return
		}
		respondWithError(w, http.StatusInternalServerError, "recompute failed", err)
		return
	}
	respondWithJSON(w, http.StatusOK, result)
}

// MigrateStreaks recomputes every student's streak aggregates
func (h *AdminHandler) MigrateStreaks(w http.ResponseWriter, r *http.Request) {
	report, err := h.streaks.MigrateAll(r.Context())
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "migration failed", err)
		return
	}
	respondWithJSON(w, http.StatusOK, report)
}

// GetPhase returns the program's current phase and academic year
func (h *AdminHandler) GetPhase(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.program.GetProgram()
	if err != nil {
		if errors.Is(err, service.ErrProgramNotInitialized) {
			respondWithError(w, http.StatusNotFound, "program not initialized", nil)
			return
		}
		respondWithError(w, http.StatusInternalServerError, "failed to load program config", err)
		return
	}
	respondWithJSON(w, http.StatusOK, cfg)
}

type transitionRequest struct {
	Target string `json:"target" validate:"required"`
}

// TransitionPhase moves the program to a new phase
func (h *AdminHandler) TransitionPhase(w http.ResponseWriter, r *http.Request) {
	var req transitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	if err := validate.Struct(req); err != nil {
		respondWithError(w, http.StatusBadRequest, "target phase is required", nil)
		return
	}

	report, err := h.program.TransitionPhase(req.Target)
	if err != nil {
		switch {
		case errors.Is(err, phase.ErrUnknownPhase):
			respondWithError(w, http.StatusBadRequest, err.Error(), nil)
		case errors.Is(err, phase.ErrIllegalTransition):
			respondWithError(w, http.StatusConflict, err.Error(), nil)
		default:
			respondWithError(w, http.StatusInternalServerError, "transition failed", err)
		}
		return
	}
	respondWithJSON(w, http.StatusOK, report)
}

// RolloverYear resets the program for the next academic year
func (h *AdminHandler) RolloverYear(w http.ResponseWriter, r *http.Request) {
	report, err := h.program.RolloverAcademicYear(r.Context())
	if err != nil {
		if errors.Is(err, phase.ErrIllegalTransition) {
			respondWithError(w, http.StatusConflict, err.Error(), nil)
			return
		}
		respondWithError(w, http.StatusInternalServerError, "rollover failed", err)
		return
	}

	if h.mailer.IsEnabled() {
		if err := h.mailer.SendRolloverReport(r.Context(), report); err != nil {
			logger.Error("rollover report email failed", zap.Error(err))
		}
	}

	respondWithJSON(w, http.StatusOK, report)
}
