package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/animegen/animegen-api/internal/api/shared"
	"github.com/animegen/animegen-api/internal/domain"
	"github.com/animegen/animegen-api/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// maxUploadMemory caps the in-memory portion of multipart uploads.
const maxUploadMemory = 32 << 20 // 32 MiB

// CreateImageTaskRequest represents the request body for creating a new
// image generation task.
type CreateImageTaskRequest struct {
	Prompt      string `json:"prompt" validate:"required,min=1"`
	UserID      string `json:"user_id" validate:"required"`
	AppBundle   string `json:"app_bundle" validate:"required"`
	AspectRatio string `json:"aspect_ratio" validate:"required"`
	ModelID     string `json:"model_id,omitempty"`
}

// CreateVideoTaskRequest represents the schema part of a video task
// upload.
type CreateVideoTaskRequest struct {
	UserID    string `json:"user_id" validate:"required"`
	AppBundle string `json:"app_bundle" validate:"required"`
	ModelID   string `json:"model_id,omitempty"`
}

// TaskResponse represents the response data for a task.
type TaskResponse struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
	ResultURL string `json:"result_url,omitempty"`
}

// TaskHandler handles task-related HTTP requests
type TaskHandler struct {
	taskService service.TaskService
	validator   *validator.Validate
}

// NewTaskHandler creates a new TaskHandler
func NewTaskHandler(taskService service.TaskService) *TaskHandler {
	return &TaskHandler{
		taskService: taskService,
		validator:   validator.New(),
	}
}

// CreateImageTask handles POST /api/task/image requests
func (h *TaskHandler) CreateImageTask(w http.ResponseWriter, r *http.Request) {
	var req CreateImageTaskRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	taskReq, err := h.toImageTaskRequest(req)
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	task, err := h.taskService.CreateImageTask(r.Context(), taskReq)
	if err != nil {
		h.respondCreateError(w, r, err, "Failed to create image task")
		return
	}

	// 202: generation is accepted, not finished
	shared.RespondWithJSON(w, r, http.StatusAccepted, taskToResponse(task))
}

// CreateImageToImageTask handles POST /api/task/image2image requests.
// The body is multipart: a "schema" field with the JSON request and a
// "file" field with the source image.
func (h *TaskHandler) CreateImageToImageTask(w http.ResponseWriter, r *http.Request) {
	var req CreateImageTaskRequest
	image, ok := h.decodeMultipart(w, r, &req)
	if !ok {
		return
	}

	if err := h.validator.Struct(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	taskReq, err := h.toImageTaskRequest(req)
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	task, err := h.taskService.CreateImageToImageTask(r.Context(), taskReq, image)
	if err != nil {
		h.respondCreateError(w, r, err, "Failed to create image task")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusAccepted, taskToResponse(task))
}

// CreateVideoTask handles POST /api/task/video requests. The body is
// multipart: a "schema" field with the JSON request and a "file" field
// with the reference image the video animates.
func (h *TaskHandler) CreateVideoTask(w http.ResponseWriter, r *http.Request) {
	var req CreateVideoTaskRequest
	image, ok := h.decodeMultipart(w, r, &req)
	if !ok {
		return
	}

	if err := h.validator.Struct(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	modelID, err := parseModelID(req.ModelID)
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid model ID")
		return
	}

	task, err := h.taskService.CreateVideoTask(r.Context(), domain.VideoTaskRequest{
		UserID:    req.UserID,
		AppBundle: req.AppBundle,
		ModelID:   modelID,
	}, image)
	if err != nil {
		h.respondCreateError(w, r, err, "Failed to create video task")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusAccepted, taskToResponse(task))
}

// GetTask handles GET /api/task/{id} requests
func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	taskID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid task ID")
		return
	}

	report, err := h.taskService.GetStatus(r.Context(), taskID)
	if err != nil {
		if errors.Is(err, service.ErrTaskNotFound) {
			shared.RespondWithError(w, r, http.StatusNotFound, "Task not found")
			return
		}
		shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError, "Failed to get task status", err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, TaskResponse{
		ID:        report.ID.String(),
		Status:    string(report.Status),
		Error:     report.Error,
		ResultURL: report.ResultURL,
	})
}

// decodeMultipart parses a multipart upload into the schema struct and
// returns the file bytes. On failure it writes the error response and
// returns ok=false.
func (h *TaskHandler) decodeMultipart(w http.ResponseWriter, r *http.Request, schema interface{}) ([]byte, bool) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid multipart request")
		return nil, false
	}

	raw := r.FormValue("schema")
	if raw == "" {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Missing schema field")
		return nil, false
	}
	if err := json.Unmarshal([]byte(raw), schema); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return nil, false
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Missing file field")
		return nil, false
	}
	defer func() { _ = file.Close() }()

	image, err := io.ReadAll(file)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError, "Failed to read uploaded file", err)
		return nil, false
	}
	if len(image) == 0 {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Uploaded file is empty")
		return nil, false
	}

	return image, true
}

// toImageTaskRequest converts the transport request to the domain
// request, validating the optional model ID.
func (h *TaskHandler) toImageTaskRequest(req CreateImageTaskRequest) (domain.ImageTaskRequest, error) {
	modelID, err := parseModelID(req.ModelID)
	if err != nil {
		return domain.ImageTaskRequest{}, errors.New("Invalid model ID")
	}

	return domain.ImageTaskRequest{
		Prompt:      req.Prompt,
		UserID:      req.UserID,
		AppBundle:   req.AppBundle,
		AspectRatio: domain.AspectRatio(req.AspectRatio),
		ModelID:     modelID,
	}, nil
}

// respondCreateError maps task creation failures to HTTP responses.
func (h *TaskHandler) respondCreateError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	if errors.Is(err, domain.ErrInvalidAspectRatio) {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid aspect ratio")
		return
	}
	shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError, fallback, err)
}

// parseModelID parses the optional model ID string from a request.
func parseModelID(raw string) (*uuid.UUID, error) {
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

// taskToResponse converts a domain.Task to a TaskResponse
func taskToResponse(task *domain.Task) TaskResponse {
	resp := TaskResponse{
		ID:     task.ID.String(),
		Status: string(task.Status()),
		Error:  task.Error,
	}
	if item := task.FirstItem(); item != nil {
		resp.ResultURL = item.ResultURL
	}
	return resp
}
