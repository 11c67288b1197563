package engine

import "fmt"

// ErrorKind identifies why a command was rejected. The presentation layer
// keys actionable messages off this, so kinds are part of the wire contract.
type ErrorKind string

const (
	KindPhaseViolation     ErrorKind = "phase_violation"
	KindMalformedCommand   ErrorKind = "malformed_command"
	KindInsufficientFunds  ErrorKind = "insufficient_funds"
	KindPositionOccupied   ErrorKind = "position_occupied"
	KindPointLocked        ErrorKind = "point_locked"
	KindQuotaExceeded      ErrorKind = "modification_quota_exceeded"
	KindBorderViolation    ErrorKind = "border_violation"
	KindPrerequisiteNotMet ErrorKind = "prerequisite_not_met"
	KindAlreadyResearched  ErrorKind = "already_researched"
)

// ValidationError is a recoverable rejection: the command never touched the
// match state and the session keeps running. It is reported to the issuing
// player only.
type ValidationError struct {
	Kind ErrorKind
	Msg  string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func rejectf(kind ErrorKind, format string, args ...any) *ValidationError {
	return &ValidationError{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}
