package service

import (
	"errors"
	"fmt"

	"github.com/animegen/animegen-api/internal/store"
)

// Common sentinel errors for the task service
var (
	// ErrTaskNotFound indicates that the task does not exist.
	ErrTaskNotFound = errors.New("task not found")

	// ErrPromptNotFound indicates that the requested model prompt does
	// not exist or is not flagged as a selectable model.
	ErrPromptNotFound = errors.New("prompt not found")

	// ErrNoDefaultPrompt indicates that no fallback prompt is
	// configured for the task type. A deployment defect, fatal to the
	// submission attempt it aborts.
	ErrNoDefaultPrompt = errors.New("no default prompt configured")

	// ErrMissingReferenceImage indicates a video task without its
	// reference image. Creation always attaches the image, so seeing
	// this means the creation path is corrupted; it is never swallowed.
	ErrMissingReferenceImage = errors.New("task has no reference image")
)

// TaskServiceError wraps errors from the task service with context.
type TaskServiceError struct {
	// Operation is the operation that failed (e.g., "create_image_task")
	Operation string
	// Message is a human-readable description of the error
	Message string
	// Err is the underlying error that caused the failure
	Err error
}

// Error implements the error interface for TaskServiceError.
func (e *TaskServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("task service %s failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("task service %s failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *TaskServiceError) Unwrap() error {
	return e.Err
}

// NewTaskServiceError creates a new TaskServiceError.
// Known sentinel errors pass through directly without wrapping.
func NewTaskServiceError(operation, message string, err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, ErrTaskNotFound) ||
		errors.Is(err, ErrPromptNotFound) ||
		errors.Is(err, ErrNoDefaultPrompt) ||
		errors.Is(err, ErrMissingReferenceImage) {
		return err
	}

	// Map store-level sentinel errors to service-level ones.
	if errors.Is(err, store.ErrTaskNotFound) {
		return ErrTaskNotFound
	}

	return &TaskServiceError{
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}
