package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/animegen/animegen-api/internal/domain"
	"github.com/animegen/animegen-api/internal/provider"
	"github.com/animegen/animegen-api/internal/task"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type serviceFixture struct {
	svc      TaskService
	tasks    *fakeTaskStore
	prompts  *fakePromptStore
	imageGen *fakeImageGenerator
	videoGen *fakeVideoGenerator
	runner   *fakeRunner
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()

	tasks := newFakeTaskStore()
	prompts := newFakePromptStore()
	imageGen := newFakeImageGenerator()
	videoGen := newFakeVideoGenerator()
	runner := &fakeRunner{}

	resolver, err := NewPromptResolver(prompts, testLogger())
	require.NoError(t, err)

	svc, err := NewTaskService(tasks, resolver, imageGen, videoGen, runner, 4, testLogger())
	require.NoError(t, err)

	return &serviceFixture{
		svc:      svc,
		tasks:    tasks,
		prompts:  prompts,
		imageGen: imageGen,
		videoGen: videoGen,
		runner:   runner,
	}
}

func (f *serviceFixture) addBasicImagePrompt(t *testing.T, text string) *domain.Prompt {
	t.Helper()
	prompt, err := domain.NewPrompt(text, "Basic Image")
	require.NoError(t, err)
	prompt.ForImage = true
	f.prompts.add(prompt)
	return prompt
}

func (f *serviceFixture) addBasicVideoPrompt(t *testing.T, text string) *domain.Prompt {
	t.Helper()
	prompt, err := domain.NewPrompt(text, "Basic Video")
	require.NoError(t, err)
	prompt.ForVideo = true
	f.prompts.add(prompt)
	return prompt
}

func imageRequest() domain.ImageTaskRequest {
	return domain.ImageTaskRequest{
		Prompt:      "a fox in the snow",
		UserID:      "user-1",
		AppBundle:   "com.example.app",
		AspectRatio: domain.AspectRatioSquareHD,
	}
}

func TestCreateImageTask(t *testing.T) {
	t.Parallel()

	t.Run("persists task and enqueues submission", func(t *testing.T) {
		t.Parallel()
		f := newServiceFixture(t)

		created, err := f.svc.CreateImageTask(context.Background(), imageRequest())
		require.NoError(t, err)

		// The task is durably stored before the submission is enqueued,
		// and reads as queued until a worker picks it up.
		assert.Equal(t, domain.TaskStatusQueued, created.Status())

		stored, err := f.tasks.GetTask(context.Background(), created.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.TaskTypeImage, stored.Type)
		assert.Empty(t, stored.Items)

		submission := f.runner.last()
		require.NotNil(t, submission)
		assert.Equal(t, task.TypeImageSubmission, submission.Type())

		// No provider call happened on the request path
		assert.Empty(t, f.imageGen.submittedPrompts)
	})

	t.Run("rejects invalid aspect ratio", func(t *testing.T) {
		t.Parallel()
		f := newServiceFixture(t)

		req := imageRequest()
		req.AspectRatio = "cinemascope"

		_, err := f.svc.CreateImageTask(context.Background(), req)
		assert.ErrorIs(t, err, domain.ErrInvalidAspectRatio)
		assert.Nil(t, f.runner.last())
	})

	t.Run("enqueue failure still returns the task", func(t *testing.T) {
		t.Parallel()
		f := newServiceFixture(t)
		f.runner.submitErr = task.ErrQueueFull

		created, err := f.svc.CreateImageTask(context.Background(), imageRequest())
		require.NoError(t, err)

		// Task exists and stays queued with no items
		stored, err := f.tasks.GetTask(context.Background(), created.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.TaskStatusQueued, stored.Status())
	})
}

func TestStartImageSubmission(t *testing.T) {
	t.Parallel()

	t.Run("prefixes template text and records item", func(t *testing.T) {
		t.Parallel()
		f := newServiceFixture(t)
		f.addBasicImagePrompt(t, "anime style, best quality, ")

		created, err := f.svc.CreateImageTask(context.Background(), imageRequest())
		require.NoError(t, err)

		require.NoError(t, f.runner.last().Execute(context.Background()))

		require.Len(t, f.imageGen.submittedPrompts, 1)
		assert.Equal(t, "anime style, best quality, a fox in the snow", f.imageGen.submittedPrompts[0])
		assert.Equal(t, string(domain.AspectRatioSquareHD), f.imageGen.submittedRatios[0])

		stored, err := f.tasks.GetTask(context.Background(), created.ID)
		require.NoError(t, err)
		require.Len(t, stored.Items, 1)
		assert.Equal(t, "img-job-1", stored.Items[0].ExternalID)
		assert.Equal(t, domain.TaskStatusQueued, stored.Items[0].Status)
		assert.Empty(t, stored.Items[0].ResultURL)
	})

	t.Run("uses selected model prompt", func(t *testing.T) {
		t.Parallel()
		f := newServiceFixture(t)
		f.addBasicImagePrompt(t, "basic, ")

		model, err := domain.NewPrompt("cyberpunk city, ", "Cyberpunk")
		require.NoError(t, err)
		model.IsModel = true
		f.prompts.add(model)

		req := imageRequest()
		req.ModelID = &model.ID

		_, err = f.svc.CreateImageTask(context.Background(), req)
		require.NoError(t, err)
		require.NoError(t, f.runner.last().Execute(context.Background()))

		require.Len(t, f.imageGen.submittedPrompts, 1)
		assert.Equal(t, "cyberpunk city, a fox in the snow", f.imageGen.submittedPrompts[0])
	})

	t.Run("unknown model id fails the submission", func(t *testing.T) {
		t.Parallel()
		f := newServiceFixture(t)
		f.addBasicImagePrompt(t, "basic, ")

		missing := uuid.New()
		req := imageRequest()
		req.ModelID = &missing

		created, err := f.svc.CreateImageTask(context.Background(), req)
		require.NoError(t, err)

		err = f.runner.last().Execute(context.Background())
		assert.ErrorIs(t, err, ErrPromptNotFound)

		// No item: the task stays queued with nothing to reconcile
		stored, err := f.tasks.GetTask(context.Background(), created.ID)
		require.NoError(t, err)
		assert.Empty(t, stored.Items)
	})

	t.Run("missing default prompt fails the submission", func(t *testing.T) {
		t.Parallel()
		f := newServiceFixture(t)

		_, err := f.svc.CreateImageTask(context.Background(), imageRequest())
		require.NoError(t, err)

		err = f.runner.last().Execute(context.Background())
		assert.ErrorIs(t, err, ErrNoDefaultPrompt)
	})

	t.Run("provider rejection fails the submission", func(t *testing.T) {
		t.Parallel()
		f := newServiceFixture(t)
		f.addBasicImagePrompt(t, "basic, ")
		f.imageGen.submitErr = provider.ErrSubmissionRejected

		created, err := f.svc.CreateImageTask(context.Background(), imageRequest())
		require.NoError(t, err)

		err = f.runner.last().Execute(context.Background())
		assert.ErrorIs(t, err, provider.ErrSubmissionRejected)

		stored, err := f.tasks.GetTask(context.Background(), created.ID)
		require.NoError(t, err)
		assert.Empty(t, stored.Items)
	})
}

func TestCreateImageToImageTask(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t)
	f.addBasicImagePrompt(t, "anime style, ")

	source := []byte{0xFF, 0xD8, 0xFF, 0xE0}

	created, err := f.svc.CreateImageToImageTask(context.Background(), imageRequest(), source)
	require.NoError(t, err)

	submission := f.runner.last()
	require.NotNil(t, submission)
	assert.Equal(t, task.TypeImageToImageSubmission, submission.Type())

	require.NoError(t, submission.Execute(context.Background()))

	require.Len(t, f.imageGen.submittedImages, 1)
	assert.Equal(t, source, f.imageGen.submittedImages[0])

	stored, err := f.tasks.GetTask(context.Background(), created.ID)
	require.NoError(t, err)
	require.Len(t, stored.Items, 1)
}

func TestCreateVideoTask(t *testing.T) {
	t.Parallel()

	t.Run("uploads reference image and enqueues submission", func(t *testing.T) {
		t.Parallel()
		f := newServiceFixture(t)

		source := []byte{0x89, 0x50, 0x4E, 0x47}

		created, err := f.svc.CreateVideoTask(context.Background(), domain.VideoTaskRequest{
			UserID:    "user-1",
			AppBundle: "com.example.app",
		}, source)
		require.NoError(t, err)

		require.Len(t, f.videoGen.uploadedImages, 1)
		assert.Equal(t, source, f.videoGen.uploadedImages[0])

		stored, err := f.tasks.GetTask(context.Background(), created.ID)
		require.NoError(t, err)
		require.NotNil(t, stored.ReferenceImage)
		assert.Equal(t, "upload-1", stored.ReferenceImage.ExternalID)

		submission := f.runner.last()
		require.NotNil(t, submission)
		assert.Equal(t, task.TypeVideoSubmission, submission.Type())
	})

	t.Run("upload failure marks the task errored", func(t *testing.T) {
		t.Parallel()
		f := newServiceFixture(t)
		f.videoGen.uploadErr = errors.New("provider down")

		_, err := f.svc.CreateVideoTask(context.Background(), domain.VideoTaskRequest{
			UserID:    "user-1",
			AppBundle: "com.example.app",
		}, []byte{0x01})
		require.Error(t, err)

		require.Len(t, f.tasks.setErrorCalls, 1)
		assert.Nil(t, f.runner.last())
	})
}

func TestStartVideoSubmission(t *testing.T) {
	t.Parallel()

	t.Run("submits with reference image and precomputes result URL", func(t *testing.T) {
		t.Parallel()
		f := newServiceFixture(t)
		f.addBasicVideoPrompt(t, "gentle camera pan")

		created, err := f.svc.CreateVideoTask(context.Background(), domain.VideoTaskRequest{
			UserID:    "user-1",
			AppBundle: "com.example.app",
		}, []byte{0x01})
		require.NoError(t, err)

		require.NoError(t, f.runner.last().Execute(context.Background()))

		require.Len(t, f.videoGen.submittedPrompts, 1)
		// Video submissions use the template text alone
		assert.Equal(t, "gentle camera pan", f.videoGen.submittedPrompts[0])
		assert.Equal(t, "upload-1", f.videoGen.submittedImageIDs[0])

		stored, err := f.tasks.GetTask(context.Background(), created.ID)
		require.NoError(t, err)
		require.Len(t, stored.Items, 1)
		assert.Equal(t, domain.TaskStatusQueued, stored.Items[0].Status)
		assert.Equal(t, "https://video.example.com/video/file/vid-job-1", stored.Items[0].ResultURL)
	})

	t.Run("missing reference image is fatal", func(t *testing.T) {
		t.Parallel()
		f := newServiceFixture(t)
		f.addBasicVideoPrompt(t, "gentle camera pan")

		// Create the task row directly, bypassing the upload path
		orphan, err := domain.NewTask(domain.TaskTypeVideo, "user-1", "com.example.app")
		require.NoError(t, err)
		require.NoError(t, f.tasks.CreateTask(context.Background(), orphan))

		err = f.svc.StartVideoSubmission(context.Background(), orphan.ID, domain.VideoTaskRequest{})
		assert.ErrorIs(t, err, ErrMissingReferenceImage)

		require.Len(t, f.tasks.setErrorCalls, 1)
		assert.Empty(t, f.videoGen.submittedPrompts)
	})
}

func TestGetStatus(t *testing.T) {
	t.Parallel()

	t.Run("itemless task reads as queued", func(t *testing.T) {
		t.Parallel()
		f := newServiceFixture(t)

		created, err := f.svc.CreateImageTask(context.Background(), imageRequest())
		require.NoError(t, err)

		report, err := f.svc.GetStatus(context.Background(), created.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.TaskStatusQueued, report.Status)
		assert.Empty(t, report.ResultURL)
	})

	t.Run("reports first item status and result URL", func(t *testing.T) {
		t.Parallel()
		f := newServiceFixture(t)
		f.addBasicImagePrompt(t, "basic, ")

		created, err := f.svc.CreateImageTask(context.Background(), imageRequest())
		require.NoError(t, err)
		require.NoError(t, f.runner.last().Execute(context.Background()))

		stored, err := f.tasks.GetTask(context.Background(), created.ID)
		require.NoError(t, err)
		require.NoError(t, f.tasks.UpdateItem(context.Background(), stored.Items[0].ID,
			domain.TaskStatusFinished, "https://cdn.example.com/img.png"))

		report, err := f.svc.GetStatus(context.Background(), created.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.TaskStatusFinished, report.Status)
		assert.Equal(t, "https://cdn.example.com/img.png", report.ResultURL)
	})

	t.Run("unknown task", func(t *testing.T) {
		t.Parallel()
		f := newServiceFixture(t)

		_, err := f.svc.GetStatus(context.Background(), uuid.New())
		assert.ErrorIs(t, err, ErrTaskNotFound)
	})
}

func TestReconcileQueued(t *testing.T) {
	t.Parallel()

	// submitImageTask creates an image task and runs its submission,
	// returning the stored task with its single queued item.
	submitImageTask := func(t *testing.T, f *serviceFixture, externalID string) *domain.Task {
		t.Helper()
		f.imageGen.mu.Lock()
		f.imageGen.nextExternalID = externalID
		f.imageGen.mu.Unlock()

		created, err := f.svc.CreateImageTask(context.Background(), imageRequest())
		require.NoError(t, err)
		require.NoError(t, f.runner.last().Execute(context.Background()))

		stored, err := f.tasks.GetTask(context.Background(), created.ID)
		require.NoError(t, err)
		return stored
	}

	t.Run("finished image task gets provider result URL", func(t *testing.T) {
		t.Parallel()
		f := newServiceFixture(t)
		f.addBasicImagePrompt(t, "basic, ")

		stored := submitImageTask(t, f, "job-finished")
		f.imageGen.statuses["job-finished"] = provider.GenerationStatus{
			Finished:  true,
			ResultURL: "https://cdn.example.com/result.png",
		}

		require.NoError(t, f.svc.ReconcileQueued(context.Background()))

		report, err := f.svc.GetStatus(context.Background(), stored.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.TaskStatusFinished, report.Status)
		assert.Equal(t, "https://cdn.example.com/result.png", report.ResultURL)
	})

	t.Run("invalid image task transitions to error", func(t *testing.T) {
		t.Parallel()
		f := newServiceFixture(t)
		f.addBasicImagePrompt(t, "basic, ")

		stored := submitImageTask(t, f, "job-invalid")
		f.imageGen.statuses["job-invalid"] = provider.GenerationStatus{
			Invalid: true,
			Comment: "nsfw content detected",
		}

		require.NoError(t, f.svc.ReconcileQueued(context.Background()))

		report, err := f.svc.GetStatus(context.Background(), stored.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.TaskStatusError, report.Status)
	})

	t.Run("pending task stays queued", func(t *testing.T) {
		t.Parallel()
		f := newServiceFixture(t)
		f.addBasicImagePrompt(t, "basic, ")

		stored := submitImageTask(t, f, "job-pending")
		// No scripted status: provider reports neither finished nor invalid

		require.NoError(t, f.svc.ReconcileQueued(context.Background()))

		report, err := f.svc.GetStatus(context.Background(), stored.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.TaskStatusQueued, report.Status)
	})

	t.Run("finished video task keeps precomputed URL", func(t *testing.T) {
		t.Parallel()
		f := newServiceFixture(t)
		f.addBasicVideoPrompt(t, "pan")

		created, err := f.svc.CreateVideoTask(context.Background(), domain.VideoTaskRequest{
			UserID:    "user-1",
			AppBundle: "com.example.app",
		}, []byte{0x01})
		require.NoError(t, err)
		require.NoError(t, f.runner.last().Execute(context.Background()))

		f.videoGen.statuses["vid-job-1"] = provider.GenerationStatus{Finished: true}

		require.NoError(t, f.svc.ReconcileQueued(context.Background()))

		report, err := f.svc.GetStatus(context.Background(), created.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.TaskStatusFinished, report.Status)
		assert.Equal(t, "https://video.example.com/video/file/vid-job-1", report.ResultURL)
	})

	t.Run("one failing poll does not block the others", func(t *testing.T) {
		t.Parallel()
		f := newServiceFixture(t)
		f.addBasicImagePrompt(t, "basic, ")

		broken := submitImageTask(t, f, "job-broken")
		f.imageGen.statusErr["job-broken"] = errors.New("connection reset")

		healthy := submitImageTask(t, f, "job-healthy")
		f.imageGen.statuses["job-healthy"] = provider.GenerationStatus{
			Finished:  true,
			ResultURL: "https://cdn.example.com/healthy.png",
		}

		require.NoError(t, f.svc.ReconcileQueued(context.Background()))

		brokenReport, err := f.svc.GetStatus(context.Background(), broken.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.TaskStatusQueued, brokenReport.Status)

		healthyReport, err := f.svc.GetStatus(context.Background(), healthy.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.TaskStatusFinished, healthyReport.Status)
	})

	t.Run("terminal tasks leave the sweep set", func(t *testing.T) {
		t.Parallel()
		f := newServiceFixture(t)
		f.addBasicImagePrompt(t, "basic, ")

		stored := submitImageTask(t, f, "job-done")
		f.imageGen.statuses["job-done"] = provider.GenerationStatus{
			Finished:  true,
			ResultURL: "https://cdn.example.com/done.png",
		}

		require.NoError(t, f.svc.ReconcileQueued(context.Background()))

		// Second sweep must not poll the provider again
		f.imageGen.statusErr["job-done"] = errors.New("should not be called")
		require.NoError(t, f.svc.ReconcileQueued(context.Background()))

		report, err := f.svc.GetStatus(context.Background(), stored.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.TaskStatusFinished, report.Status)
	})

	t.Run("many tasks within the poll bound", func(t *testing.T) {
		t.Parallel()
		f := newServiceFixture(t)
		f.addBasicImagePrompt(t, "basic, ")

		const n = 20
		ids := make([]uuid.UUID, 0, n)
		for i := 0; i < n; i++ {
			jobID := fmt.Sprintf("job-%d", i)
			stored := submitImageTask(t, f, jobID)
			f.imageGen.statuses[jobID] = provider.GenerationStatus{
				Finished:  true,
				ResultURL: "https://cdn.example.com/" + jobID + ".png",
			}
			ids = append(ids, stored.ID)
		}

		require.NoError(t, f.svc.ReconcileQueued(context.Background()))

		for _, id := range ids {
			report, err := f.svc.GetStatus(context.Background(), id)
			require.NoError(t, err)
			assert.Equal(t, domain.TaskStatusFinished, report.Status)
		}
	})
}
