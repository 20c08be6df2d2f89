package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/animegen/animegen-api/internal/domain"
	"github.com/animegen/animegen-api/internal/store"
	"github.com/google/uuid"
)

// PromptResolver resolves a user-selected model id to its prompt
// template, falling back to the per-type basic prompt when no model is
// chosen.
type PromptResolver struct {
	prompts store.PromptStore
	logger  *slog.Logger
}

// NewPromptResolver creates a new PromptResolver.
func NewPromptResolver(prompts store.PromptStore, logger *slog.Logger) (*PromptResolver, error) {
	if prompts == nil {
		return nil, &TaskServiceError{
			Operation: "create_resolver",
			Message:   "prompt store cannot be nil",
		}
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &PromptResolver{
		prompts: prompts,
		logger:  logger.With("component", "prompt_resolver"),
	}, nil
}

// Resolve returns the prompt template for the given model id, or the
// basic prompt for the task type when modelID is nil.
// Returns ErrPromptNotFound when the model id is unknown or the prompt
// is not flagged as a selectable model; ErrNoDefaultPrompt when no
// fallback is configured for the task type.
func (r *PromptResolver) Resolve(ctx context.Context, modelID *uuid.UUID, taskType domain.TaskType) (*domain.Prompt, error) {
	if modelID != nil {
		prompt, err := r.prompts.GetPrompt(ctx, *modelID)
		if err != nil {
			if errors.Is(err, store.ErrPromptNotFound) {
				return nil, fmt.Errorf("%w: model %s", ErrPromptNotFound, *modelID)
			}
			return nil, NewTaskServiceError("resolve_prompt", "failed to load model prompt", err)
		}

		if !prompt.IsModel {
			r.logger.Warn("prompt exists but is not a selectable model",
				"prompt_id", modelID.String())
			return nil, fmt.Errorf("%w: model %s", ErrPromptNotFound, *modelID)
		}

		return prompt, nil
	}

	prompt, err := r.prompts.GetBasicPrompt(ctx, taskType)
	if err != nil {
		if errors.Is(err, store.ErrPromptNotFound) {
			return nil, fmt.Errorf("%w: task type %s", ErrNoDefaultPrompt, taskType)
		}
		return nil, NewTaskServiceError("resolve_prompt", "failed to load basic prompt", err)
	}

	return prompt, nil
}
