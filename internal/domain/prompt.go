package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Common validation errors for Prompt
var (
	ErrEmptyPromptID    = errors.New("prompt ID cannot be empty")
	ErrEmptyPromptText  = errors.New("prompt text cannot be empty")
	ErrEmptyPromptTitle = errors.New("prompt title cannot be empty")
)

// Prompt is a reusable prompt template. Prompts flagged IsModel are
// user-selectable "models" surfaced by the models listing; ForImage and
// ForVideo mark the singleton fallback prompts used when no model is
// chosen.
type Prompt struct {
	ID        uuid.UUID `json:"id"`
	Text      string    `json:"text"`
	Title     string    `json:"title"`
	IsModel   bool      `json:"is_model"`
	ForImage  bool      `json:"for_image"`
	ForVideo  bool      `json:"for_video"`
	Image     []byte    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// NewPrompt creates a Prompt with a generated ID.
func NewPrompt(text, title string) (*Prompt, error) {
	prompt := &Prompt{
		ID:        uuid.New(),
		Text:      text,
		Title:     title,
		CreatedAt: time.Now().UTC(),
	}

	if err := prompt.Validate(); err != nil {
		return nil, err
	}

	return prompt, nil
}

// Validate checks if the Prompt has valid data.
func (p *Prompt) Validate() error {
	if p.ID == uuid.Nil {
		return ErrEmptyPromptID
	}

	if p.Text == "" {
		return ErrEmptyPromptText
	}

	if p.Title == "" {
		return ErrEmptyPromptTitle
	}

	return nil
}
