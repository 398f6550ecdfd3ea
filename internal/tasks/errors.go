package tasks

import (
	"errors"
	"fmt"
)

// NotFoundError reports a referenced list or task that does not exist in
// the local store. It is surfaced to the caller synchronously.
type NotFoundError struct {
	Kind string // "task list" or "task"
	ID   int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Kind, e.ID)
}

// InvalidStructureError reports a structural precondition violation,
// such as indenting the topmost task or indenting a task that already
// has children.
type InvalidStructureError struct {
	Reason string
}

func (e *InvalidStructureError) Error() string {
	return fmt.Sprintf("invalid structure: %s", e.Reason)
}

// IsNotFound reports whether err is a missing list/task reference.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsInvalidStructure reports whether err is a structural precondition
// violation.
func IsInvalidStructure(err error) bool {
	var is *InvalidStructureError
	return errors.As(err, &is)
}
