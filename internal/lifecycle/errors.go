package lifecycle

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrRoleNotFound = errors.New("role not found")
	ErrNoPhoto      = errors.New("no profile photo to remove")
)

// ForceDeleteActiveRecordError is raised when a permanent delete is
// attempted on a record that was never soft-deleted. It is a domain
// invariant violation, surfaced as a 422 and logged as a dangerous
// attempt, never a generic server error.
type ForceDeleteActiveRecordError struct {
	Entity string
	ID     uint
}

func (e *ForceDeleteActiveRecordError) Error() string {
	return fmt.Sprintf("refusing to force delete active %s %d: record is not soft-deleted", e.Entity, e.ID)
}
