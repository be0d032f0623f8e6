package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/akademia-dev/thesis-review-api/internal/models"
)

// Sentinel errors shared across workflow services.
var (
	// ErrThesisNotFound indicates the thesis was not located.
	ErrThesisNotFound = errors.New("thesis not found")
	// ErrUserNotFound indicates the principal was not located.
	ErrUserNotFound = errors.New("user not found")
	// ErrThesisExists indicates the student already owns an active thesis.
	ErrThesisExists = errors.New("student already has an active thesis")
	// ErrSlotOccupied indicates the assignment slot already holds a principal.
	ErrSlotOccupied = errors.New("assignment slot already occupied")
	// ErrSlotVacant indicates a reassign targeted a slot with no binding.
	ErrSlotVacant = errors.New("assignment slot is not occupied")
	// ErrNoFileUploaded indicates a document is required but absent.
	ErrNoFileUploaded = errors.New("no document uploaded for this thesis")
	// ErrIterationMismatch indicates a signed upload referenced a stale
	// unsigned artifact.
	ErrIterationMismatch = errors.New("signed document does not match the pending unsigned review")
	// ErrAlreadyEvaluated indicates a mutation other than re-review hit a
	// terminal thesis.
	ErrAlreadyEvaluated = errors.New("thesis is already evaluated")
	// ErrNoUnsignedDocument indicates a signed upload arrived before the
	// unsigned counterpart was rendered.
	ErrNoUnsignedDocument = errors.New("no unsigned review document has been rendered")
)

// ValidationError reports a failed transition guard with the exact fields
// the caller still has to fill. The state is left untouched.
type ValidationError struct {
	MissingFields []string
}

func (e *ValidationError) Error() string {
	if len(e.MissingFields) == 0 {
		return "validation failed"
	}
	return "validation failed: missing " + strings.Join(e.MissingFields, ", ")
}

// NewValidationError builds a ValidationError from the enumerated fields.
func NewValidationError(fields ...string) *ValidationError {
	return &ValidationError{MissingFields: fields}
}

// ConflictError reports that a concurrent state change won the race. The
// caller should re-fetch and retry.
type ConflictError struct {
	Expected models.ThesisStatus
	Resource string
}

func (e *ConflictError) Error() string {
	if e.Resource != "" {
		return fmt.Sprintf("concurrent update lost on %s, re-fetch and retry", e.Resource)
	}
	if e.Expected != "" {
		return fmt.Sprintf("thesis no longer in status %q, re-fetch and retry", e.Expected)
	}
	return "concurrent update lost, re-fetch and retry"
}

// ExhaustionError reports that a bounded attempt budget is spent. It is
// terminal without administrative override.
type ExhaustionError struct {
	Attempts    int
	MaxAttempts int
}

func (e *ExhaustionError) Error() string {
	return fmt.Sprintf("attempt budget exhausted (%d of %d used); escalate to an administrator", e.Attempts, e.MaxAttempts)
}

// TransientInfraError wraps an external collaborator failure that is safe to
// retry and must never consume a bounded attempt budget.
type TransientInfraError struct {
	Op    string
	Cause error
}

func (e *TransientInfraError) Error() string {
	return fmt.Sprintf("%s temporarily unavailable: %v", e.Op, e.Cause)
}

func (e *TransientInfraError) Unwrap() error {
	return e.Cause
}

// AuthorizationError reports a role or ownership mismatch. Never retryable.
type AuthorizationError struct {
	Role   models.Role
	Action string
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("role %q may not %s", e.Role, e.Action)
}

// IsRetryable reports whether the caller layer may retry the operation
// without user intervention.
func IsRetryable(err error) bool {
	var transient *TransientInfraError
	var conflict *ConflictError
	return errors.As(err, &transient) || errors.As(err, &conflict)
}
