package domain

import (
	"errors"
	"fmt"
)

var (
	ErrTemplateNotFound    = errors.New("template not found")
	ErrConstraintViolation = errors.New("template alias constraint violation")
	ErrInvalidStatus       = errors.New("invalid build status")
	ErrInvalidTransition   = errors.New("invalid build status transition")
)

// ValidationError reports malformed input detected before storage access.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// AliasConflictError reports that (project, alias) is already occupied.
type AliasConflictError struct {
	Alias       string
	ProjectID   string
	ProjectName string
}

func (e *AliasConflictError) Error() string {
	name := e.ProjectName
	if name == "" {
		name = e.ProjectID
	}
	return fmt.Sprintf("alias '%s' is already taken in project '%s'", e.Alias, name)
}

// BackendDispatchError reports that the build backend refused a build. The
// template row is kept with status failed.
type BackendDispatchError struct {
	TemplateID string
	Err        error
}

func (e *BackendDispatchError) Error() string {
	return fmt.Sprintf("failed to dispatch build for template %s: %v", e.TemplateID, e.Err)
}

func (e *BackendDispatchError) Unwrap() error {
	return e.Err
}
