package borrow

import (
	"errors"
	"fmt"
)

// ErrConflict is the sentinel every borrow conflict matches via errors.Is.
var ErrConflict = errors.New("borrow conflict")

// ConflictError reports a requested access mode incompatible with a cell's
// current borrow state.
type ConflictError struct {
	// Requested is the access mode that was refused, "read" or "write".
	Requested string
	// State is the cell's borrow state at the time of the request.
	State int
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("borrow: %s borrow conflicts with %s", e.Requested, describeState(e.State))
}

// Is makes errors.Is(err, ErrConflict) hold for every ConflictError.
func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

func describeState(state int) string {
	switch {
	case state == writing:
		return "an outstanding write borrow"
	case state == 1:
		return "an outstanding read borrow"
	case state > 1:
		return fmt.Sprintf("%d outstanding read borrows", state)
	default:
		return "an unborrowed cell" // unreachable in a correct program
	}
}
