package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// TaskStatus represents the lifecycle state of a generation attempt.
type TaskStatus string

// Possible task status values. Queued is the only non-terminal state:
// once an item reaches finished or error it never transitions again.
const (
	TaskStatusQueued   TaskStatus = "queued"
	TaskStatusFinished TaskStatus = "finished"
	TaskStatusError    TaskStatus = "error"
)

// TaskType distinguishes the two generation pipelines.
type TaskType string

// Possible task type values
const (
	TaskTypeImage TaskType = "image"
	TaskTypeVideo TaskType = "video"
)

// Common validation errors for Task and its children
var (
	ErrEmptyTaskID         = errors.New("task ID cannot be empty")
	ErrEmptyTaskUserID     = errors.New("task user ID cannot be empty")
	ErrEmptyTaskAppBundle  = errors.New("task app bundle cannot be empty")
	ErrInvalidTaskType     = errors.New("invalid task type")
	ErrInvalidTaskStatus   = errors.New("invalid task status")
	ErrEmptyItemTaskID     = errors.New("task item task ID cannot be empty")
	ErrEmptyItemExternalID = errors.New("task item external ID cannot be empty")
	ErrTerminalTransition  = errors.New("task item status is terminal")
)

// Task is a user-initiated unit of generation work. Its externally
// observed status is derived from its first TaskItem; a task with no
// items has not been submitted to a provider yet and reads as queued.
type Task struct {
	ID        uuid.UUID  `json:"id"`
	Type      TaskType   `json:"type"`
	UserID    string     `json:"user_id"`
	AppBundle string     `json:"app_bundle"`
	Error     string     `json:"error,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`

	// Items holds the generation attempts in submission order.
	Items []*TaskItem `json:"items,omitempty"`

	// ReferenceImage is present for video tasks only.
	ReferenceImage *ReferenceImage `json:"reference_image,omitempty"`
}

// NewTask creates a new Task of the given type with a generated ID and
// no items. Returns an error if validation fails.
func NewTask(taskType TaskType, userID, appBundle string) (*Task, error) {
	now := time.Now().UTC()
	task := &Task{
		ID:        uuid.New(),
		Type:      taskType,
		UserID:    userID,
		AppBundle: appBundle,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := task.Validate(); err != nil {
		return nil, err
	}

	return task, nil
}

// Validate checks if the Task has valid data.
func (t *Task) Validate() error {
	if t.ID == uuid.Nil {
		return ErrEmptyTaskID
	}

	if t.UserID == "" {
		return ErrEmptyTaskUserID
	}

	if t.AppBundle == "" {
		return ErrEmptyTaskAppBundle
	}

	if t.Type != TaskTypeImage && t.Type != TaskTypeVideo {
		return ErrInvalidTaskType
	}

	return nil
}

// FirstItem returns the task's earliest generation attempt, or nil if
// submission has not happened yet.
func (t *Task) FirstItem() *TaskItem {
	if len(t.Items) == 0 {
		return nil
	}
	return t.Items[0]
}

// Status derives the task's externally observed status from its first
// item. Tasks without items are implicitly queued.
func (t *Task) Status() TaskStatus {
	item := t.FirstItem()
	if item == nil {
		return TaskStatusQueued
	}
	return item.Status
}

// TaskItem is one concrete submission of a Task to a generation
// provider. ExternalID is the provider-assigned job id used for status
// polls; ResultURL is empty until known (image tasks) or precomputed at
// submission time (video tasks).
type TaskItem struct {
	ID         int64      `json:"id"`
	TaskID     uuid.UUID  `json:"task_id"`
	Status     TaskStatus `json:"status"`
	ExternalID string     `json:"external_id"`
	ResultURL  string     `json:"result_url,omitempty"`
}

// NewTaskItem creates a queued TaskItem for the given task and
// provider job id. The database assigns the item ID on insert.
func NewTaskItem(taskID uuid.UUID, externalID, resultURL string) (*TaskItem, error) {
	item := &TaskItem{
		TaskID:     taskID,
		Status:     TaskStatusQueued,
		ExternalID: externalID,
		ResultURL:  resultURL,
	}

	if err := item.Validate(); err != nil {
		return nil, err
	}

	return item, nil
}

// Validate checks if the TaskItem has valid data.
func (i *TaskItem) Validate() error {
	if i.TaskID == uuid.Nil {
		return ErrEmptyItemTaskID
	}

	if i.ExternalID == "" {
		return ErrEmptyItemExternalID
	}

	if !isValidTaskStatus(i.Status) {
		return ErrInvalidTaskStatus
	}

	return nil
}

// Terminal reports whether the item has reached a final state.
func (i *TaskItem) Terminal() bool {
	return i.Status == TaskStatusFinished || i.Status == TaskStatusError
}

// Transition moves the item to the given status. Terminal states never
// transition again; re-applying the current terminal state is allowed
// so that repeated reconciliation writes stay idempotent.
func (i *TaskItem) Transition(status TaskStatus) error {
	if !isValidTaskStatus(status) {
		return ErrInvalidTaskStatus
	}

	if i.Terminal() && status != i.Status {
		return ErrTerminalTransition
	}

	i.Status = status
	return nil
}

// isValidTaskStatus checks if the given status is a valid TaskStatus.
func isValidTaskStatus(status TaskStatus) bool {
	switch status {
	case TaskStatusQueued, TaskStatusFinished, TaskStatusError:
		return true
	default:
		return false
	}
}

// ReferenceImage is a user-uploaded source image bound 1:1 to a video
// task. ExternalID is the video provider's handle for the upload and is
// required before video generation can be submitted.
type ReferenceImage struct {
	ID         uuid.UUID `json:"id"`
	TaskID     uuid.UUID `json:"task_id"`
	ExternalID string    `json:"external_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// NewReferenceImage creates a ReferenceImage for the given task and
// provider-assigned image id.
func NewReferenceImage(taskID uuid.UUID, externalID string) (*ReferenceImage, error) {
	if taskID == uuid.Nil {
		return nil, ErrEmptyItemTaskID
	}

	if externalID == "" {
		return nil, ErrEmptyItemExternalID
	}

	return &ReferenceImage{
		ID:         uuid.New(),
		TaskID:     taskID,
		ExternalID: externalID,
		CreatedAt:  time.Now().UTC(),
	}, nil
}
