package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jjoniel/secretsanta/internal/auth"
	"github.com/jjoniel/secretsanta/internal/matcher"
	"github.com/jjoniel/secretsanta/internal/storage"
)

var (
	ErrInsufficientParticipants = errors.New("need at least 2 participants to create assignments")
	ErrAlreadyAssigned          = storage.ErrAlreadyAssigned
	ErrEmailExists              = auth.ErrEmailExists
	ErrInvalidCredentials       = auth.ErrInvalidCredentials
)

// ValidationError is malformed input, rejected before any state change.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return strings.Join(e.Problems, "; ")
}

func invalid(problems ...string) *ValidationError {
	return &ValidationError{Problems: problems}
}

// BadRequestError is a well-formed request the current state cannot accept,
// such as a restriction naming a participant of another group.
type BadRequestError struct {
	Err error
}

func (e *BadRequestError) Error() string { return e.Err.Error() }
func (e *BadRequestError) Unwrap() error { return e.Err }

// NotFoundError names the missing resource, e.g. "Group".
type NotFoundError struct {
	What string
}

func (e *NotFoundError) Error() string {
	return e.What + " not found"
}

// AlreadyAssignedError is returned when a year already has assignments.
type AlreadyAssignedError struct {
	Year int
}

func (e *AlreadyAssignedError) Error() string {
	return fmt.Sprintf("assignments for %d already exist; delete them before creating new ones", e.Year)
}

func (e *AlreadyAssignedError) Is(target error) bool { return target == ErrAlreadyAssigned }

// UnsatisfiableError names the participants that make a valid assignment impossible.
type UnsatisfiableError struct {
	Givers         []string
	Receivers      []string
	HistoryBlocked bool
}

func (e *UnsatisfiableError) Error() string {
	var b strings.Builder
	b.WriteString("no valid assignment exists")
	if e.HistoryBlocked {
		b.WriteString(" without repeating a previous year's pairing")
	}
	if len(e.Givers) > 0 {
		fmt.Fprintf(&b, "; %s cannot all be given different receivers", joinNames(e.Givers))
	}
	if len(e.Receivers) > 0 {
		fmt.Fprintf(&b, "; nobody may give to %s", joinNames(e.Receivers))
	}
	return b.String()
}

func (e *UnsatisfiableError) Unwrap() error { return matcher.ErrUnsatisfiable }

func joinNames(names []string) string {
	switch len(names) {
	case 1:
		return names[0]
	case 2:
		return names[0] + " and " + names[1]
	default:
		return strings.Join(names[:len(names)-1], ", ") + " and " + names[len(names)-1]
	}
}
