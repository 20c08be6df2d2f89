package domain

import (
	"errors"

	"github.com/google/uuid"
)

// AspectRatio is the output size hint passed to the image provider.
type AspectRatio string

// Aspect ratios accepted by the image provider.
const (
	AspectRatioSquareHD     AspectRatio = "square_hd"
	AspectRatioSquare       AspectRatio = "square"
	AspectRatioPortrait43   AspectRatio = "portrait_4_3"
	AspectRatioPortrait169  AspectRatio = "portrait_16_9"
	AspectRatioLandscape43  AspectRatio = "landscape_4_3"
	AspectRatioLandscape169 AspectRatio = "landscape_16_9"
)

// ErrInvalidAspectRatio is returned when an aspect ratio is not one of
// the values the image provider accepts.
var ErrInvalidAspectRatio = errors.New("invalid aspect ratio")

// Valid reports whether the aspect ratio is one the provider accepts.
func (a AspectRatio) Valid() bool {
	switch a {
	case AspectRatioSquareHD, AspectRatioSquare,
		AspectRatioPortrait43, AspectRatioPortrait169,
		AspectRatioLandscape43, AspectRatioLandscape169:
		return true
	default:
		return false
	}
}

// ImageTaskRequest carries the user's input for an image generation
// task. ModelID optionally selects a prompt template; when nil the
// basic image prompt is used. The resolved template text is prefixed to
// Prompt before submission.
type ImageTaskRequest struct {
	Prompt      string
	UserID      string
	AppBundle   string
	AspectRatio AspectRatio
	ModelID     *uuid.UUID
}

// VideoTaskRequest carries the user's input for a video generation
// task. The source image travels separately as an upload.
type VideoTaskRequest struct {
	UserID    string
	AppBundle string
	ModelID   *uuid.UUID
}
