package repository

import "errors"

var (
	// ErrSlotsExhausted is returned when a conditional slot decrement matched no row.
	ErrSlotsExhausted = errors.New("no slots left")
	// ErrDuplicate is returned when a unique (student, subject) pair already exists.
	ErrDuplicate = errors.New("duplicate record")
	// ErrAlreadyCompleted is returned when a completed record blocks the write.
	ErrAlreadyCompleted = errors.New("already completed")
	// ErrStateChanged is returned when a guarded update found the row in another state.
	ErrStateChanged = errors.New("record state changed")
)
