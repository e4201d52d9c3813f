package util

import (
	"errors"
	"fmt"
)

// Validation: rejected before any write.
var ErrInvalidInput = errors.New("invalid input")

// ValidationError carries a human-readable message and matches ErrInvalidInput.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Unwrap() error { return ErrInvalidInput }

func Invalidf(format string, args ...interface{}) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// Authorization.
var (
	ErrUnauthenticated  = errors.New("not authenticated")
	ErrPermissionDenied = errors.New("permission denied")
)

// Not found / referential.
var (
	ErrNotFound           = errors.New("not found")
	ErrUserNotFound       = fmt.Errorf("user %w", ErrNotFound)
	ErrCourseNotFound     = fmt.Errorf("course %w", ErrNotFound)
	ErrModuleNotFound     = fmt.Errorf("module %w", ErrNotFound)
	ErrLessonNotFound     = fmt.Errorf("lesson %w", ErrNotFound)
	ErrQuizNotFound       = fmt.Errorf("quiz %w", ErrNotFound)
	ErrAttemptNotFound    = fmt.Errorf("attempt %w", ErrNotFound)
	ErrCertificateMissing = fmt.Errorf("certificate %w", ErrNotFound)
	ErrTemplateNotFound   = fmt.Errorf("certificate template %w", ErrNotFound)

	ErrReference         = errors.New("relationship does not hold")
	ErrModuleNotInCourse = fmt.Errorf("module not in course: %w", ErrReference)
	ErrQuizNotInCourse   = fmt.Errorf("quiz not in course: %w", ErrReference)
	ErrAttemptNotOwned   = fmt.Errorf("attempt belongs to another user: %w", ErrReference)
)

// Gating: the learner has not reached the requested content yet.
var (
	ErrLocked             = errors.New("locked")
	ErrNotEnrolled        = fmt.Errorf("not enrolled in course: %w", ErrLocked)
	ErrModuleLocked       = fmt.Errorf("module %w", ErrLocked)
	ErrAssessmentLocked   = fmt.Errorf("final assessment %w", ErrLocked)
	ErrFinalQuizNotPassed = fmt.Errorf("final quiz not passed: %w", ErrLocked)
)

// Conflicts that are surfaced to the caller.
var (
	ErrConflict              = errors.New("conflict")
	ErrCourseArchived        = fmt.Errorf("course is archived: %w", ErrConflict)
	ErrCourseHasCertificates = fmt.Errorf("course has issued certificates, archive it instead: %w", ErrConflict)
	ErrQuizExists            = fmt.Errorf("a quiz already exists for this module or course: %w", ErrConflict)
)

// ErrNoActiveTemplate is a hard failure: no certificate without a template.
var ErrNoActiveTemplate = errors.New("no active certificate template")
