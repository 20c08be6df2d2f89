package store

import (
	"context"

	"github.com/animegen/animegen-api/internal/domain"
	"github.com/google/uuid"
)

// TaskStore defines the interface for task data persistence.
type TaskStore interface {
	// CreateTask saves a new task to the store.
	// It handles domain validation internally.
	CreateTask(ctx context.Context, task *domain.Task) error

	// CreateItem saves a new task item to the store and fills in the
	// database-assigned item ID.
	// Returns ErrInvalidEntity if the owning task does not exist.
	CreateItem(ctx context.Context, item *domain.TaskItem) error

	// CreateReferenceImage saves a new reference image to the store.
	// Returns ErrInvalidEntity if the owning task does not exist.
	CreateReferenceImage(ctx context.Context, image *domain.ReferenceImage) error

	// GetTask retrieves a task by its unique ID, hydrated with its
	// items (in submission order) and reference image.
	// Returns ErrTaskNotFound if the task does not exist.
	GetTask(ctx context.Context, id uuid.UUID) (*domain.Task, error)

	// UpdateItem overwrites a task item's status and result URL. The
	// write is a plain overwrite: applying the same update twice is
	// safe and converges to the same stored row.
	// Returns ErrTaskItemNotFound if the item does not exist.
	UpdateItem(ctx context.Context, itemID int64, status domain.TaskStatus, resultURL string) error

	// SetTaskError records an error message on the task itself.
	// Returns ErrTaskNotFound if the task does not exist.
	SetTaskError(ctx context.Context, id uuid.UUID, message string) error

	// ListQueued retrieves all tasks that have at least one queued
	// item, each hydrated with its items. Tasks whose items are all
	// terminal are excluded by the predicate, which is what makes the
	// reconciliation sweep idempotent by construction.
	ListQueued(ctx context.Context) ([]*domain.Task, error)
}

// PromptStore defines the interface for prompt data persistence.
type PromptStore interface {
	// GetPrompt retrieves a prompt by its unique ID.
	// Returns ErrPromptNotFound if the prompt does not exist.
	GetPrompt(ctx context.Context, id uuid.UUID) (*domain.Prompt, error)

	// GetBasicPrompt retrieves the fallback prompt for the given task
	// type (for_image or for_video).
	// Returns ErrPromptNotFound if none is configured.
	GetBasicPrompt(ctx context.Context, taskType domain.TaskType) (*domain.Prompt, error)

	// ListModelPrompts retrieves user-selectable prompts (is_model),
	// optionally filtered by a case-insensitive title search.
	// Returns an empty slice if no prompts match.
	ListModelPrompts(ctx context.Context, search string, limit, offset int) ([]*domain.Prompt, error)
}
