// Package phase models the academic-year lifecycle as an explicit state
// machine. The program config's phase field is never set directly;
// every change goes through Transition so only the edges in the
// transition table can ever be written.
package phase

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Phase is one stage of the yearly program lifecycle
type Phase string

const (
	Setup            Phase = "SETUP"
	TeacherSelection Phase = "TEACHER_SELECTION"
	Active           Phase = "ACTIVE"
	Voting           Phase = "VOTING"
	Results          Phase = "RESULTS"
	// Closed is an exceptional idle state, reachable only by manual
	// override from SETUP
	Closed Phase = "CLOSED"
)

var (
	// ErrUnknownPhase is returned when parsing an unrecognized phase name
	ErrUnknownPhase = errors.New("unknown phase")
	// ErrIllegalTransition is returned for any edge not in the table
	ErrIllegalTransition = errors.New("illegal phase transition")
)

// transitions is the complete legal edge set. The forward cycle repeats
// yearly; there is no terminal state.
var transitions = map[Phase][]Phase{
	Setup:            {TeacherSelection, Closed},
	TeacherSelection: {Active},
	Active:           {Voting},
	Voting:           {Results},
	Results:          {Setup},
	Closed:           {Setup},
}

// Parse converts a phase name into a Phase
func Parse(s string) (Phase, error) {
	p := Phase(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := transitions[p]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownPhase, s)
	}
	return p, nil
}

// CanTransition reports whether the edge from -> to is legal
func CanTransition(from, to Phase) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition validates the requested edge and returns the new phase.
// Out-of-order requests are rejected; the table above is the only legal
// transition graph.
func Transition(from, to Phase) (Phase, error) {
	if !CanTransition(from, to) {
		return from, fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, from, to)
	}
	return to, nil
}

// NextAcademicYear bumps a "YYYY-YY" academic year by one,
// e.g. "2025-26" -> "2026-27"
func NextAcademicYear(year string) (string, error) {
	parts := strings.SplitN(year, "-", 2)
	if len(parts) != 2 || len(parts[0]) != 4 || len(parts[1]) != 2 {
		return "", fmt.Errorf("malformed academic year: %q", year)
	}
	start, err := strconv.Atoi(parts[0])
	if err != nil {
		return "", fmt.Errorf("malformed academic year: %q", year)
	}
	next := start + 1
	return fmt.Sprintf("%04d-%02d", next, (next+1)%100), nil
}
