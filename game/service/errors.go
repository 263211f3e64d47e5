package service

import "errors"

// Kind classifies a coordinator error for transport mapping. The HTTP layer
// turns kinds into status codes; messages are short and stable.
type Kind string

const (
	KindUnauthorized Kind = "UNAUTHORIZED"
	KindValidation   Kind = "VALIDATION"
	KindNotFound     Kind = "NOT_FOUND"
	KindForbidden    Kind = "FORBIDDEN"
	KindConflict     Kind = "CONFLICT"
	KindInternal     Kind = "INTERNAL"
)

// Error is a kinded coordinator error.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string { return e.Message }

// E builds a kinded error.
func E(kind Kind, message string) error {
	return &Error{Kind: kind, Message: message}
}

// KindOf extracts the kind, defaulting to INTERNAL for foreign errors.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindInternal
}

// Stable error messages shared across operations.
var (
	errNotYourTurn        = E(KindForbidden, "not your turn")
	errAlreadyRolled      = E(KindConflict, "already rolled")
	errWinnerCannotRoll   = E(KindForbidden, "winner cannot roll")
	errWinnerCannotMove   = E(KindForbidden, "winner cannot move")
	errInvalidMove        = E(KindConflict, "invalid move")
	errDiceMismatch       = E(KindConflict, "dice mismatch")
	errMoveTimeNotExpired = E(KindConflict, "move time not expired")
	errRoomNotJoinable    = E(KindConflict, "room not joinable")
	errRoomFull           = E(KindConflict, "room full")
	errNotHost            = E(KindForbidden, "host only")
	errNotInRoom          = E(KindForbidden, "not a player in this room")
	errRoomNotFound       = E(KindNotFound, "room not found")
)
