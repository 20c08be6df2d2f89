package task

import (
	"context"
	"errors"

	"github.com/animegen/animegen-api/internal/domain"
	"github.com/google/uuid"
)

// Task type identifiers for provider submissions
const (
	TypeImageSubmission        = "image_submission"
	TypeImageToImageSubmission = "image_to_image_submission"
	TypeVideoSubmission        = "video_submission"
)

// Common errors
var (
	ErrNilSubmitter = errors.New("submitter cannot be nil")
	ErrEmptyTaskID  = errors.New("task ID cannot be empty")
)

// Submitter is the slice of the task service a submission needs. The
// interface lives here so the service package can depend on this one
// without a cycle.
type Submitter interface {
	// StartImageSubmission resolves the prompt and submits a
	// text-to-image job for the task.
	StartImageSubmission(ctx context.Context, taskID uuid.UUID, req domain.ImageTaskRequest) error

	// StartImageToImageSubmission submits an image-to-image job using
	// the uploaded source image.
	StartImageToImageSubmission(ctx context.Context, taskID uuid.UUID, image []byte, req domain.ImageTaskRequest) error

	// StartVideoSubmission submits a video job using the task's
	// reference image.
	StartVideoSubmission(ctx context.Context, taskID uuid.UUID, req domain.VideoTaskRequest) error
}

// SubmissionTask carries one deferred provider submission through the
// runner. The owning task row is persisted before the submission is
// enqueued, so execution can always load it.
type SubmissionTask struct {
	id       uuid.UUID
	taskID   uuid.UUID
	taskType string
	run      func(ctx context.Context) error
}

// NewImageSubmission creates the deferred text-to-image submission for
// a freshly created image task.
func NewImageSubmission(submitter Submitter, taskID uuid.UUID, req domain.ImageTaskRequest) (*SubmissionTask, error) {
	if submitter == nil {
		return nil, ErrNilSubmitter
	}
	if taskID == uuid.Nil {
		return nil, ErrEmptyTaskID
	}

	return &SubmissionTask{
		id:       uuid.New(),
		taskID:   taskID,
		taskType: TypeImageSubmission,
		run: func(ctx context.Context) error {
			return submitter.StartImageSubmission(ctx, taskID, req)
		},
	}, nil
}

// NewImageToImageSubmission creates the deferred image-to-image
// submission for a freshly created image task.
func NewImageToImageSubmission(submitter Submitter, taskID uuid.UUID, image []byte, req domain.ImageTaskRequest) (*SubmissionTask, error) {
	if submitter == nil {
		return nil, ErrNilSubmitter
	}
	if taskID == uuid.Nil {
		return nil, ErrEmptyTaskID
	}

	return &SubmissionTask{
		id:       uuid.New(),
		taskID:   taskID,
		taskType: TypeImageToImageSubmission,
		run: func(ctx context.Context) error {
			return submitter.StartImageToImageSubmission(ctx, taskID, image, req)
		},
	}, nil
}

// NewVideoSubmission creates the deferred video submission for a
// freshly created video task.
func NewVideoSubmission(submitter Submitter, taskID uuid.UUID, req domain.VideoTaskRequest) (*SubmissionTask, error) {
	if submitter == nil {
		return nil, ErrNilSubmitter
	}
	if taskID == uuid.Nil {
		return nil, ErrEmptyTaskID
	}

	return &SubmissionTask{
		id:       uuid.New(),
		taskID:   taskID,
		taskType: TypeVideoSubmission,
		run: func(ctx context.Context) error {
			return submitter.StartVideoSubmission(ctx, taskID, req)
		},
	}, nil
}

// ID returns the task's unique identifier.
func (t *SubmissionTask) ID() uuid.UUID {
	return t.id
}

// TaskID returns the identifier of the generation task being submitted.
func (t *SubmissionTask) TaskID() uuid.UUID {
	return t.taskID
}

// Type returns the task type identifier.
func (t *SubmissionTask) Type() string {
	return t.taskType
}

// Execute runs the submission. A failure leaves the generation task
// with zero items; there is no automatic resubmission, so the runner's
// error handler is the only place the failure surfaces.
func (t *SubmissionTask) Execute(ctx context.Context) error {
	return t.run(ctx)
}
