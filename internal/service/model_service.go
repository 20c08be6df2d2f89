package service

import (
	"context"
	"log/slog"

	"github.com/animegen/animegen-api/internal/domain"
	"github.com/animegen/animegen-api/internal/store"
)

// ModelService exposes the catalog of selectable generation models.
type ModelService interface {
	// ListModels returns the model prompts matching the optional title
	// search, paginated by limit and offset.
	ListModels(ctx context.Context, search string, limit, offset int) ([]*domain.Prompt, error)
}

// modelServiceImpl implements the ModelService interface.
type modelServiceImpl struct {
	prompts store.PromptStore
	logger  *slog.Logger
}

// NewModelService creates a new ModelService.
func NewModelService(prompts store.PromptStore, logger *slog.Logger) (ModelService, error) {
	if prompts == nil {
		return nil, &TaskServiceError{Operation: "create_service", Message: "prompt store cannot be nil"}
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &modelServiceImpl{
		prompts: prompts,
		logger:  logger.With("component", "model_service"),
	}, nil
}

// ListModels implements ModelService.ListModels.
func (s *modelServiceImpl) ListModels(ctx context.Context, search string, limit, offset int) ([]*domain.Prompt, error) {
	models, err := s.prompts.ListModelPrompts(ctx, search, limit, offset)
	if err != nil {
		return nil, NewTaskServiceError("list_models", "failed to list models", err)
	}
	return models, nil
}
