package errors

import "errors"

var (
	ErrTaskNotFound    = errors.New("task not found")
	ErrInvalidTaskData = errors.New("invalid task data")
	ErrTaskConflict    = errors.New("task conflict")
)
