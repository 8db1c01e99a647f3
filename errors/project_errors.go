package errors

import "errors"

var (
	ErrProjectNotFound    = errors.New("project not found")
	ErrInvalidProjectData = errors.New("invalid project data")
	ErrProjectConflict    = errors.New("project conflict")
)
