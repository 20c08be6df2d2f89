package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/animegen/animegen-api/internal/domain"
	"github.com/animegen/animegen-api/internal/platform/logger"
	"github.com/animegen/animegen-api/internal/store"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

// PostgreSQL error codes
const pgForeignKeyViolationCode = "23503"

// PostgresTaskStore implements the store.TaskStore interface
// using a PostgreSQL database as the storage backend.
type PostgresTaskStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresTaskStore creates a new PostgreSQL implementation of the
// TaskStore interface. It accepts a database connection or transaction
// that should be initialized and managed by the caller.
func NewPostgresTaskStore(db store.DBTX, logger *slog.Logger) *PostgresTaskStore {
	if db == nil {
		panic("db cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresTaskStore{
		db:     db,
		logger: logger.With(slog.String("component", "task_store")),
	}
}

// Ensure PostgresTaskStore implements store.TaskStore interface
var _ store.TaskStore = (*PostgresTaskStore)(nil)

// CreateTask implements store.TaskStore.CreateTask.
func (s *PostgresTaskStore) CreateTask(ctx context.Context, task *domain.Task) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := task.Validate(); err != nil {
		log.Warn("task validation failed during create",
			slog.String("error", err.Error()),
			slog.String("task_id", task.ID.String()))
		return err
	}

	query := `
		INSERT INTO tasks (id, type, user_id, app_bundle, error, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := s.db.ExecContext(
		ctx,
		query,
		task.ID,
		task.Type,
		task.UserID,
		task.AppBundle,
		nullString(task.Error),
		task.CreatedAt,
		task.UpdatedAt,
	)

	if err != nil {
		log.Error("failed to create task",
			slog.String("error", err.Error()),
			slog.String("task_id", task.ID.String()))
		return err
	}

	log.Info("task created successfully",
		slog.String("task_id", task.ID.String()),
		slog.String("task_type", string(task.Type)),
		slog.String("app_bundle", task.AppBundle))
	return nil
}

// CreateItem implements store.TaskStore.CreateItem.
// Returns store.ErrInvalidEntity if the owning task doesn't exist
// (foreign key violation).
func (s *PostgresTaskStore) CreateItem(ctx context.Context, item *domain.TaskItem) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := item.Validate(); err != nil {
		log.Warn("task item validation failed during create",
			slog.String("error", err.Error()),
			slog.String("task_id", item.TaskID.String()))
		return err
	}

	query := `
		INSERT INTO task_items (task_id, status, external_id, result_url)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`
	err := s.db.QueryRowContext(
		ctx,
		query,
		item.TaskID,
		item.Status,
		item.ExternalID,
		nullString(item.ResultURL),
	).Scan(&item.ID)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolationCode {
			log.Warn("foreign key violation during task item creation",
				slog.String("error", err.Error()),
				slog.String("task_id", item.TaskID.String()))
			return fmt.Errorf("%w: task with ID %s not found",
				store.ErrInvalidEntity, item.TaskID)
		}

		log.Error("failed to create task item",
			slog.String("error", err.Error()),
			slog.String("task_id", item.TaskID.String()))
		return err
	}

	log.Info("task item created successfully",
		slog.Int64("item_id", item.ID),
		slog.String("task_id", item.TaskID.String()),
		slog.String("external_id", item.ExternalID))
	return nil
}

// CreateReferenceImage implements store.TaskStore.CreateReferenceImage.
func (s *PostgresTaskStore) CreateReferenceImage(ctx context.Context, image *domain.ReferenceImage) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		INSERT INTO task_images (id, task_id, external_id, created_at)
		VALUES ($1, $2, $3, $4)
	`
	_, err := s.db.ExecContext(
		ctx,
		query,
		image.ID,
		image.TaskID,
		image.ExternalID,
		image.CreatedAt,
	)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolationCode {
			log.Warn("foreign key violation during reference image creation",
				slog.String("error", err.Error()),
				slog.String("task_id", image.TaskID.String()))
			return fmt.Errorf("%w: task with ID %s not found",
				store.ErrInvalidEntity, image.TaskID)
		}

		log.Error("failed to create reference image",
			slog.String("error", err.Error()),
			slog.String("task_id", image.TaskID.String()))
		return err
	}

	log.Info("reference image created successfully",
		slog.String("task_id", image.TaskID.String()),
		slog.String("external_id", image.ExternalID))
	return nil
}

// GetTask implements store.TaskStore.GetTask.
// Returns store.ErrTaskNotFound if the task does not exist.
func (s *PostgresTaskStore) GetTask(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	log.Debug("retrieving task by ID", slog.String("task_id", id.String()))

	query := `
		SELECT id, type, user_id, app_bundle, error, created_at, updated_at
		FROM tasks
		WHERE id = $1
	`

	var task domain.Task
	var taskType string
	var taskErr sql.NullString

	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&task.ID,
		&taskType,
		&task.UserID,
		&task.AppBundle,
		&taskErr,
		&task.CreatedAt,
		&task.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("task not found", slog.String("task_id", id.String()))
			return nil, store.ErrTaskNotFound
		}
		log.Error("failed to get task by ID",
			slog.String("error", err.Error()),
			slog.String("task_id", id.String()))
		return nil, err
	}

	task.Type = domain.TaskType(taskType)
	task.Error = taskErr.String

	if err := s.loadItems(ctx, &task); err != nil {
		return nil, err
	}

	if err := s.loadReferenceImage(ctx, &task); err != nil {
		return nil, err
	}

	log.Debug("task retrieved successfully",
		slog.String("task_id", id.String()),
		slog.Int("item_count", len(task.Items)))
	return &task, nil
}

// UpdateItem implements store.TaskStore.UpdateItem.
// The write is a plain overwrite so that a repeated reconciliation
// transition converges to the same stored row.
func (s *PostgresTaskStore) UpdateItem(ctx context.Context, itemID int64, status domain.TaskStatus, resultURL string) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	log.Debug("updating task item",
		slog.Int64("item_id", itemID),
		slog.String("status", string(status)))

	query := `
		UPDATE task_items
		SET status = $1, result_url = $2
		WHERE id = $3
	`

	result, err := s.db.ExecContext(ctx, query, status, nullString(resultURL), itemID)
	if err != nil {
		log.Error("failed to update task item",
			slog.String("error", err.Error()),
			slog.Int64("item_id", itemID))
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		log.Error("failed to get rows affected",
			slog.String("error", err.Error()),
			slog.Int64("item_id", itemID))
		return err
	}

	if rowsAffected == 0 {
		log.Debug("task item not found for update", slog.Int64("item_id", itemID))
		return store.ErrTaskItemNotFound
	}

	log.Info("task item updated successfully",
		slog.Int64("item_id", itemID),
		slog.String("status", string(status)))
	return nil
}

// SetTaskError implements store.TaskStore.SetTaskError.
func (s *PostgresTaskStore) SetTaskError(ctx context.Context, id uuid.UUID, message string) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		UPDATE tasks
		SET error = $1, updated_at = $2
		WHERE id = $3
	`

	result, err := s.db.ExecContext(ctx, query, nullString(message), time.Now().UTC(), id)
	if err != nil {
		log.Error("failed to set task error",
			slog.String("error", err.Error()),
			slog.String("task_id", id.String()))
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		log.Error("failed to get rows affected",
			slog.String("error", err.Error()),
			slog.String("task_id", id.String()))
		return err
	}

	if rowsAffected == 0 {
		log.Debug("task not found for error update", slog.String("task_id", id.String()))
		return store.ErrTaskNotFound
	}

	log.Info("task error recorded",
		slog.String("task_id", id.String()),
		slog.String("message", message))
	return nil
}

// ListQueued implements store.TaskStore.ListQueued.
// The selection predicate excludes tasks whose items are all terminal,
// which keeps the reconciliation sweep from touching finished work.
func (s *PostgresTaskStore) ListQueued(ctx context.Context) ([]*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT id, type, user_id, app_bundle, error, created_at, updated_at
		FROM tasks
		WHERE EXISTS (
			SELECT 1 FROM task_items
			WHERE task_items.task_id = tasks.id AND task_items.status = 'queued'
		)
		ORDER BY created_at
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		log.Error("failed to query queued tasks", slog.String("error", err.Error()))
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			log.Error("failed to close rows", slog.String("error", err.Error()))
		}
	}()

	var tasks []*domain.Task
	for rows.Next() {
		var task domain.Task
		var taskType string
		var taskErr sql.NullString

		err := rows.Scan(
			&task.ID,
			&taskType,
			&task.UserID,
			&task.AppBundle,
			&taskErr,
			&task.CreatedAt,
			&task.UpdatedAt,
		)
		if err != nil {
			log.Error("failed to scan task row", slog.String("error", err.Error()))
			return nil, err
		}

		task.Type = domain.TaskType(taskType)
		task.Error = taskErr.String
		tasks = append(tasks, &task)
	}

	if err := rows.Err(); err != nil {
		log.Error("error after scanning rows", slog.String("error", err.Error()))
		return nil, err
	}

	for _, task := range tasks {
		if err := s.loadItems(ctx, task); err != nil {
			return nil, err
		}
	}

	if tasks == nil {
		tasks = []*domain.Task{}
	}

	log.Debug("found queued tasks", slog.Int("count", len(tasks)))
	return tasks, nil
}

// loadItems hydrates a task's items in submission order.
func (s *PostgresTaskStore) loadItems(ctx context.Context, task *domain.Task) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT id, task_id, status, external_id, result_url
		FROM task_items
		WHERE task_id = $1
		ORDER BY id
	`

	rows, err := s.db.QueryContext(ctx, query, task.ID)
	if err != nil {
		log.Error("failed to query task items",
			slog.String("error", err.Error()),
			slog.String("task_id", task.ID.String()))
		return err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			log.Error("failed to close rows", slog.String("error", err.Error()))
		}
	}()

	var items []*domain.TaskItem
	for rows.Next() {
		var item domain.TaskItem
		var status string
		var resultURL sql.NullString

		err := rows.Scan(
			&item.ID,
			&item.TaskID,
			&status,
			&item.ExternalID,
			&resultURL,
		)
		if err != nil {
			log.Error("failed to scan task item row", slog.String("error", err.Error()))
			return err
		}

		item.Status = domain.TaskStatus(status)
		item.ResultURL = resultURL.String
		items = append(items, &item)
	}

	if err := rows.Err(); err != nil {
		log.Error("error after scanning rows", slog.String("error", err.Error()))
		return err
	}

	task.Items = items
	return nil
}

// loadReferenceImage hydrates a task's reference image, if any.
func (s *PostgresTaskStore) loadReferenceImage(ctx context.Context, task *domain.Task) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT id, task_id, external_id, created_at
		FROM task_images
		WHERE task_id = $1
		ORDER BY created_at
		LIMIT 1
	`

	var image domain.ReferenceImage
	err := s.db.QueryRowContext(ctx, query, task.ID).Scan(
		&image.ID,
		&image.TaskID,
		&image.ExternalID,
		&image.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		log.Error("failed to query reference image",
			slog.String("error", err.Error()),
			slog.String("task_id", task.ID.String()))
		return err
	}

	task.ReferenceImage = &image
	return nil
}

// nullString converts an empty string to a SQL NULL.
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
