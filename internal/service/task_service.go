package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/animegen/animegen-api/internal/domain"
	"github.com/animegen/animegen-api/internal/provider"
	"github.com/animegen/animegen-api/internal/store"
	"github.com/animegen/animegen-api/internal/task"
	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
)

// TaskRunner defines the interface for submitting background tasks.
type TaskRunner interface {
	// Submit adds a task to the processing queue
	Submit(t task.Task) error
}

// TaskStatusReport is the externally observed state of a task: the
// status of its earliest item, or queued while submission is pending.
type TaskStatusReport struct {
	ID        uuid.UUID         `json:"id"`
	Status    domain.TaskStatus `json:"status"`
	Error     string            `json:"error,omitempty"`
	ResultURL string            `json:"result_url,omitempty"`
}

// TaskService owns the task lifecycle: creation, decoupled provider
// submission, status reads, and the reconciliation sweep.
type TaskService interface {
	// CreateImageTask persists a new image task and enqueues its
	// provider submission. Returns without waiting on the provider.
	CreateImageTask(ctx context.Context, req domain.ImageTaskRequest) (*domain.Task, error)

	// CreateImageToImageTask persists a new image task whose
	// submission will upload the given source image alongside the
	// prompt.
	CreateImageToImageTask(ctx context.Context, req domain.ImageTaskRequest, image []byte) (*domain.Task, error)

	// CreateVideoTask persists a new video task, synchronously uploads
	// the reference image to the video provider, and enqueues the
	// video submission.
	CreateVideoTask(ctx context.Context, req domain.VideoTaskRequest, image []byte) (*domain.Task, error)

	// StartImageSubmission performs the deferred text-to-image
	// submission. Runs on a background worker, never the request path.
	StartImageSubmission(ctx context.Context, taskID uuid.UUID, req domain.ImageTaskRequest) error

	// StartImageToImageSubmission performs the deferred image-to-image
	// submission.
	StartImageToImageSubmission(ctx context.Context, taskID uuid.UUID, image []byte, req domain.ImageTaskRequest) error

	// StartVideoSubmission performs the deferred video submission.
	// Returns ErrMissingReferenceImage if the task has no reference
	// image, which indicates a corrupted creation path.
	StartVideoSubmission(ctx context.Context, taskID uuid.UUID, req domain.VideoTaskRequest) error

	// GetStatus reads the task's externally observed status. Never
	// fails for a task whose submission is still pending: that reads
	// as queued.
	GetStatus(ctx context.Context, taskID uuid.UUID) (*TaskStatusReport, error)

	// ReconcileQueued runs one reconciliation sweep.
	ReconcileQueued(ctx context.Context) error
}

// taskServiceImpl implements the TaskService interface.
type taskServiceImpl struct {
	tasks    store.TaskStore
	resolver *PromptResolver
	imageGen provider.ImageGenerator
	videoGen provider.VideoGenerator
	runner   TaskRunner
	maxPolls int64
	logger   *slog.Logger
}

// Ensure the service satisfies the submission interface consumed by the
// background runner.
var _ task.Submitter = (*taskServiceImpl)(nil)

// NewTaskService creates a new TaskService.
// maxConcurrentPolls bounds the reconciliation fan-out; values below 1
// fall back to 16.
func NewTaskService(
	tasks store.TaskStore,
	resolver *PromptResolver,
	imageGen provider.ImageGenerator,
	videoGen provider.VideoGenerator,
	runner TaskRunner,
	maxConcurrentPolls int,
	logger *slog.Logger,
) (TaskService, error) {
	if tasks == nil {
		return nil, &TaskServiceError{Operation: "create_service", Message: "task store cannot be nil"}
	}
	if resolver == nil {
		return nil, &TaskServiceError{Operation: "create_service", Message: "prompt resolver cannot be nil"}
	}
	if imageGen == nil {
		return nil, &TaskServiceError{Operation: "create_service", Message: "image generator cannot be nil"}
	}
	if videoGen == nil {
		return nil, &TaskServiceError{Operation: "create_service", Message: "video generator cannot be nil"}
	}
	if runner == nil {
		return nil, &TaskServiceError{Operation: "create_service", Message: "task runner cannot be nil"}
	}

	if maxConcurrentPolls < 1 {
		maxConcurrentPolls = 16
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &taskServiceImpl{
		tasks:    tasks,
		resolver: resolver,
		imageGen: imageGen,
		videoGen: videoGen,
		runner:   runner,
		maxPolls: int64(maxConcurrentPolls),
		logger:   logger.With("component", "task_service"),
	}, nil
}

// CreateImageTask implements TaskService.CreateImageTask.
func (s *taskServiceImpl) CreateImageTask(ctx context.Context, req domain.ImageTaskRequest) (*domain.Task, error) {
	if !req.AspectRatio.Valid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidAspectRatio, req.AspectRatio)
	}

	t, err := s.createTask(ctx, domain.TaskTypeImage, req.UserID, req.AppBundle)
	if err != nil {
		return nil, err
	}

	submission, err := task.NewImageSubmission(s, t.ID, req)
	if err != nil {
		return nil, NewTaskServiceError("create_image_task", "failed to build submission", err)
	}
	s.enqueue(t.ID, submission)

	return t, nil
}

// CreateImageToImageTask implements TaskService.CreateImageToImageTask.
func (s *taskServiceImpl) CreateImageToImageTask(ctx context.Context, req domain.ImageTaskRequest, image []byte) (*domain.Task, error) {
	if !req.AspectRatio.Valid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidAspectRatio, req.AspectRatio)
	}

	t, err := s.createTask(ctx, domain.TaskTypeImage, req.UserID, req.AppBundle)
	if err != nil {
		return nil, err
	}

	submission, err := task.NewImageToImageSubmission(s, t.ID, image, req)
	if err != nil {
		return nil, NewTaskServiceError("create_image_to_image_task", "failed to build submission", err)
	}
	s.enqueue(t.ID, submission)

	return t, nil
}

// CreateVideoTask implements TaskService.CreateVideoTask. The reference
// image upload happens synchronously because the provider requires a
// stable image reference before a job can be submitted.
func (s *taskServiceImpl) CreateVideoTask(ctx context.Context, req domain.VideoTaskRequest, image []byte) (*domain.Task, error) {
	t, err := s.createTask(ctx, domain.TaskTypeVideo, req.UserID, req.AppBundle)
	if err != nil {
		return nil, err
	}

	externalID, err := s.videoGen.UploadImage(ctx, image)
	if err != nil {
		s.logger.Error("reference image upload failed",
			"task_id", t.ID,
			"error", err)
		if storeErr := s.tasks.SetTaskError(ctx, t.ID, "reference image upload failed"); storeErr != nil {
			s.logger.Error("failed to record task error",
				"task_id", t.ID,
				"error", storeErr)
		}
		return nil, NewTaskServiceError("create_video_task", "failed to upload reference image", err)
	}

	ref, err := domain.NewReferenceImage(t.ID, externalID)
	if err != nil {
		return nil, NewTaskServiceError("create_video_task", "failed to create reference image", err)
	}

	if err := s.tasks.CreateReferenceImage(ctx, ref); err != nil {
		return nil, NewTaskServiceError("create_video_task", "failed to save reference image", err)
	}
	t.ReferenceImage = ref

	submission, err := task.NewVideoSubmission(s, t.ID, req)
	if err != nil {
		return nil, NewTaskServiceError("create_video_task", "failed to build submission", err)
	}
	s.enqueue(t.ID, submission)

	return t, nil
}

// createTask builds and persists a new task with no items.
func (s *taskServiceImpl) createTask(ctx context.Context, taskType domain.TaskType, userID, appBundle string) (*domain.Task, error) {
	t, err := domain.NewTask(taskType, userID, appBundle)
	if err != nil {
		return nil, NewTaskServiceError("create_task", "failed to create task object", err)
	}

	if err := s.tasks.CreateTask(ctx, t); err != nil {
		s.logger.Error("failed to save task",
			"task_id", t.ID,
			"error", err)
		return nil, NewTaskServiceError("create_task", "failed to save task", err)
	}

	return t, nil
}

// enqueue hands the submission to the background runner. The task row
// is already committed at this point, so the worker can always load it.
// An enqueue failure leaves the task stuck-queued; there is no
// resubmission path, so all we can do is log it loudly.
func (s *taskServiceImpl) enqueue(taskID uuid.UUID, submission *task.SubmissionTask) {
	if err := s.runner.Submit(submission); err != nil {
		s.logger.Error("failed to enqueue submission, task will stay queued",
			"task_id", taskID,
			"submission_type", submission.Type(),
			"error", err)
	}
}

// StartImageSubmission implements TaskService.StartImageSubmission.
func (s *taskServiceImpl) StartImageSubmission(ctx context.Context, taskID uuid.UUID, req domain.ImageTaskRequest) error {
	prompt, err := s.resolver.Resolve(ctx, req.ModelID, domain.TaskTypeImage)
	if err != nil {
		return err
	}

	// The resolved template is a prefix for the user's own prompt.
	externalID, err := s.imageGen.Submit(ctx, prompt.Text+req.Prompt, string(req.AspectRatio))
	if err != nil {
		return NewTaskServiceError("start_image_submission", "provider submission failed", err)
	}

	return s.createItem(ctx, taskID, externalID, "")
}

// StartImageToImageSubmission implements TaskService.StartImageToImageSubmission.
func (s *taskServiceImpl) StartImageToImageSubmission(ctx context.Context, taskID uuid.UUID, image []byte, req domain.ImageTaskRequest) error {
	prompt, err := s.resolver.Resolve(ctx, req.ModelID, domain.TaskTypeImage)
	if err != nil {
		return err
	}

	externalID, err := s.imageGen.SubmitWithImage(ctx, prompt.Text+req.Prompt, image, string(req.AspectRatio))
	if err != nil {
		return NewTaskServiceError("start_image_to_image_submission", "provider submission failed", err)
	}

	return s.createItem(ctx, taskID, externalID, "")
}

// StartVideoSubmission implements TaskService.StartVideoSubmission.
// Video results are addressable by job id as soon as the job exists, so
// the item's result URL is precomputed here rather than discovered by
// polling.
func (s *taskServiceImpl) StartVideoSubmission(ctx context.Context, taskID uuid.UUID, req domain.VideoTaskRequest) error {
	t, err := s.tasks.GetTask(ctx, taskID)
	if err != nil {
		return NewTaskServiceError("start_video_submission", "failed to load task", err)
	}

	if t.ReferenceImage == nil {
		s.logger.Error("video task has no reference image, creation path is corrupted",
			"task_id", taskID)
		if storeErr := s.tasks.SetTaskError(ctx, taskID, "reference image missing"); storeErr != nil {
			s.logger.Error("failed to record task error",
				"task_id", taskID,
				"error", storeErr)
		}
		return fmt.Errorf("%w: task %s", ErrMissingReferenceImage, taskID)
	}

	prompt, err := s.resolver.Resolve(ctx, req.ModelID, domain.TaskTypeVideo)
	if err != nil {
		return err
	}

	externalID, err := s.videoGen.Submit(ctx, prompt.Text, t.ReferenceImage.ExternalID)
	if err != nil {
		return NewTaskServiceError("start_video_submission", "provider submission failed", err)
	}

	return s.createItem(ctx, taskID, externalID, s.videoGen.ResultURL(externalID))
}

// createItem records the provider job as the task's generation attempt.
func (s *taskServiceImpl) createItem(ctx context.Context, taskID uuid.UUID, externalID, resultURL string) error {
	item, err := domain.NewTaskItem(taskID, externalID, resultURL)
	if err != nil {
		return NewTaskServiceError("create_item", "failed to create task item", err)
	}

	if err := s.tasks.CreateItem(ctx, item); err != nil {
		return NewTaskServiceError("create_item", "failed to save task item", err)
	}

	s.logger.Info("submission recorded",
		"task_id", taskID,
		"external_id", externalID)
	return nil
}

// GetStatus implements TaskService.GetStatus.
func (s *taskServiceImpl) GetStatus(ctx context.Context, taskID uuid.UUID) (*TaskStatusReport, error) {
	t, err := s.tasks.GetTask(ctx, taskID)
	if err != nil {
		return nil, NewTaskServiceError("get_status", "failed to load task", err)
	}

	report := &TaskStatusReport{
		ID:     t.ID,
		Status: t.Status(),
		Error:  t.Error,
	}

	if item := t.FirstItem(); item != nil {
		report.ResultURL = item.ResultURL
	}

	return report, nil
}

// ReconcileQueued implements TaskService.ReconcileQueued. Each selected
// task is checked on its own goroutine, gated by a semaphore sized to
// the provider rate limits; one task's failure never aborts the others.
func (s *taskServiceImpl) ReconcileQueued(ctx context.Context) error {
	queued, err := s.tasks.ListQueued(ctx)
	if err != nil {
		return NewTaskServiceError("reconcile", "failed to list queued tasks", err)
	}

	if len(queued) == 0 {
		return nil
	}

	s.logger.Debug("reconciling queued tasks", "count", len(queued))

	sem := semaphore.NewWeighted(s.maxPolls)
	var wg sync.WaitGroup

	for _, t := range queued {
		if err := sem.Acquire(ctx, 1); err != nil {
			// Context cancelled mid-sweep; whatever is still queued
			// will be picked up by the next sweep.
			break
		}

		wg.Add(1)
		go func(t *domain.Task) {
			defer wg.Done()
			defer sem.Release(1)

			if err := s.reconcileTask(ctx, t); err != nil {
				s.logger.Error("task status check failed",
					"task_id", t.ID,
					"task_type", t.Type,
					"error", err)
			}
		}(t)
	}

	wg.Wait()
	return nil
}

// reconcileTask polls the provider for one task and applies the
// resulting transition. The transition write is a plain overwrite, so
// repeating it with the same provider response is harmless.
func (s *taskServiceImpl) reconcileTask(ctx context.Context, t *domain.Task) error {
	item := t.FirstItem()
	if item == nil || item.Status != domain.TaskStatusQueued {
		return nil
	}

	switch t.Type {
	case domain.TaskTypeVideo:
		status, err := s.videoGen.Status(ctx, item.ExternalID)
		if err != nil {
			return err
		}

		switch {
		case status.Finished:
			// Result URL was precomputed at submission time.
			return s.tasks.UpdateItem(ctx, item.ID, domain.TaskStatusFinished, item.ResultURL)
		case status.Invalid:
			return s.tasks.UpdateItem(ctx, item.ID, domain.TaskStatusError, item.ResultURL)
		default:
			return nil
		}

	default:
		status, err := s.imageGen.Status(ctx, item.ExternalID)
		if err != nil {
			return err
		}

		switch {
		case status.Finished:
			return s.tasks.UpdateItem(ctx, item.ID, domain.TaskStatusFinished, status.ResultURL)
		case status.Invalid:
			return s.tasks.UpdateItem(ctx, item.ID, domain.TaskStatusError, item.ResultURL)
		default:
			return nil
		}
	}
}
