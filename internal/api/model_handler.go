package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/animegen/animegen-api/internal/api/shared"
	"github.com/animegen/animegen-api/internal/domain"
	"github.com/animegen/animegen-api/internal/service"
)

// ModelResponse represents the response data for a selectable model.
type ModelResponse struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	ForImage  bool      `json:"for_image"`
	ForVideo  bool      `json:"for_video"`
	CreatedAt time.Time `json:"created_at"`
}

// ModelHandler handles model catalog HTTP requests
type ModelHandler struct {
	modelService service.ModelService
}

// NewModelHandler creates a new ModelHandler
func NewModelHandler(modelService service.ModelService) *ModelHandler {
	return &ModelHandler{
		modelService: modelService,
	}
}

// ListModels handles GET /api/models requests. Supports optional
// search, limit and offset query parameters.
func (h *ModelHandler) ListModels(w http.ResponseWriter, r *http.Request) {
	search := r.URL.Query().Get("search")

	limit, err := parseQueryInt(r, "limit", 0)
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid limit parameter")
		return
	}
	offset, err := parseQueryInt(r, "offset", 0)
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid offset parameter")
		return
	}

	models, err := h.modelService.ListModels(r.Context(), search, limit, offset)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError, "Failed to list models", err)
		return
	}

	responses := make([]ModelResponse, 0, len(models))
	for _, m := range models {
		responses = append(responses, modelToResponse(m))
	}

	shared.RespondWithJSON(w, r, http.StatusOK, responses)
}

// parseQueryInt parses an optional non-negative integer query parameter.
func parseQueryInt(r *http.Request, name string, fallback int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return 0, strconv.ErrSyntax
	}
	return value, nil
}

// modelToResponse converts a domain.Prompt to a ModelResponse
func modelToResponse(prompt *domain.Prompt) ModelResponse {
	return ModelResponse{
		ID:        prompt.ID.String(),
		Title:     prompt.Title,
		ForImage:  prompt.ForImage,
		ForVideo:  prompt.ForVideo,
		CreatedAt: prompt.CreatedAt,
	}
}
