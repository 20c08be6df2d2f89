package postgres

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/animegen/animegen-api/internal/domain"
	"github.com/animegen/animegen-api/internal/platform/logger"
	"github.com/animegen/animegen-api/internal/store"
	"github.com/google/uuid"
)

// PostgresPromptStore implements the store.PromptStore interface
// using a PostgreSQL database as the storage backend.
type PostgresPromptStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresPromptStore creates a new PostgreSQL implementation of the
// PromptStore interface.
func NewPostgresPromptStore(db store.DBTX, logger *slog.Logger) *PostgresPromptStore {
	if db == nil {
		panic("db cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresPromptStore{
		db:     db,
		logger: logger.With(slog.String("component", "prompt_store")),
	}
}

// Ensure PostgresPromptStore implements store.PromptStore interface
var _ store.PromptStore = (*PostgresPromptStore)(nil)

const promptColumns = `id, text, title, is_model, for_image, for_video, image, created_at`

// GetPrompt implements store.PromptStore.GetPrompt.
// Returns store.ErrPromptNotFound if the prompt does not exist.
func (s *PostgresPromptStore) GetPrompt(ctx context.Context, id uuid.UUID) (*domain.Prompt, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `SELECT ` + promptColumns + ` FROM prompts WHERE id = $1`

	prompt, err := s.scanPrompt(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("prompt not found", slog.String("prompt_id", id.String()))
			return nil, store.ErrPromptNotFound
		}
		log.Error("failed to get prompt by ID",
			slog.String("error", err.Error()),
			slog.String("prompt_id", id.String()))
		return nil, err
	}

	return prompt, nil
}

// GetBasicPrompt implements store.PromptStore.GetBasicPrompt.
// Returns store.ErrPromptNotFound if no fallback prompt is configured
// for the task type.
func (s *PostgresPromptStore) GetBasicPrompt(ctx context.Context, taskType domain.TaskType) (*domain.Prompt, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	flag := "for_image"
	if taskType == domain.TaskTypeVideo {
		flag = "for_video"
	}

	query := `SELECT ` + promptColumns + ` FROM prompts WHERE ` + flag + ` ORDER BY created_at LIMIT 1`

	prompt, err := s.scanPrompt(s.db.QueryRowContext(ctx, query))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Warn("no basic prompt configured",
				slog.String("task_type", string(taskType)))
			return nil, store.ErrPromptNotFound
		}
		log.Error("failed to get basic prompt",
			slog.String("error", err.Error()),
			slog.String("task_type", string(taskType)))
		return nil, err
	}

	return prompt, nil
}

// ListModelPrompts implements store.PromptStore.ListModelPrompts.
func (s *PostgresPromptStore) ListModelPrompts(ctx context.Context, search string, limit, offset int) ([]*domain.Prompt, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	query := `
		SELECT ` + promptColumns + `
		FROM prompts
		WHERE is_model AND ($1 = '' OR title ILIKE '%' || $1 || '%')
		ORDER BY title
		LIMIT $2 OFFSET $3
	`

	rows, err := s.db.QueryContext(ctx, query, search, limit, offset)
	if err != nil {
		log.Error("failed to query model prompts", slog.String("error", err.Error()))
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			log.Error("failed to close rows", slog.String("error", err.Error()))
		}
	}()

	var prompts []*domain.Prompt
	for rows.Next() {
		prompt, err := s.scanPrompt(rows)
		if err != nil {
			log.Error("failed to scan prompt row", slog.String("error", err.Error()))
			return nil, err
		}
		prompts = append(prompts, prompt)
	}

	if err := rows.Err(); err != nil {
		log.Error("error after scanning rows", slog.String("error", err.Error()))
		return nil, err
	}

	if prompts == nil {
		prompts = []*domain.Prompt{}
	}

	log.Debug("found model prompts", slog.Int("count", len(prompts)))
	return prompts, nil
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanPrompt reads one prompt row.
func (s *PostgresPromptStore) scanPrompt(row rowScanner) (*domain.Prompt, error) {
	var prompt domain.Prompt
	var image []byte

	err := row.Scan(
		&prompt.ID,
		&prompt.Text,
		&prompt.Title,
		&prompt.IsModel,
		&prompt.ForImage,
		&prompt.ForVideo,
		&image,
		&prompt.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	prompt.Image = image
	return &prompt, nil
}
