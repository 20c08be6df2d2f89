package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/animegen/animegen-api/internal/domain"
	"github.com/animegen/animegen-api/internal/provider"
	"github.com/animegen/animegen-api/internal/store"
	"github.com/animegen/animegen-api/internal/task"
	"github.com/google/uuid"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
}

// fakeTaskStore is an in-memory TaskStore for service tests.
type fakeTaskStore struct {
	mu         sync.Mutex
	tasks      map[uuid.UUID]*domain.Task
	nextItemID int64

	createTaskErr error
	createItemErr error
	getTaskErr    error
	listQueuedErr error
	updateItemErr error

	setErrorCalls []string
}

func newFakeTaskStore() *fakeTaskStore {
	return &fakeTaskStore{tasks: make(map[uuid.UUID]*domain.Task)}
}

func (s *fakeTaskStore) CreateTask(ctx context.Context, t *domain.Task) error {
	if s.createTaskErr != nil {
		return s.createTaskErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *t
	s.tasks[t.ID] = &copied
	return nil
}

func (s *fakeTaskStore) CreateItem(ctx context.Context, item *domain.TaskItem) error {
	if s.createItemErr != nil {
		return s.createItemErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[item.TaskID]
	if !ok {
		return fmt.Errorf("%w: task item", store.ErrInvalidEntity)
	}
	s.nextItemID++
	item.ID = s.nextItemID
	copied := *item
	t.Items = append(t.Items, &copied)
	return nil
}

func (s *fakeTaskStore) CreateReferenceImage(ctx context.Context, image *domain.ReferenceImage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[image.TaskID]
	if !ok {
		return fmt.Errorf("%w: reference image", store.ErrInvalidEntity)
	}
	copied := *image
	t.ReferenceImage = &copied
	return nil
}

func (s *fakeTaskStore) GetTask(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	if s.getTaskErr != nil {
		return nil, s.getTaskErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return nil, store.ErrTaskNotFound
	}
	return cloneTask(t), nil
}

func (s *fakeTaskStore) UpdateItem(ctx context.Context, itemID int64, status domain.TaskStatus, resultURL string) error {
	if s.updateItemErr != nil {
		return s.updateItemErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tasks {
		for _, item := range t.Items {
			if item.ID == itemID {
				item.Status = status
				item.ResultURL = resultURL
				return nil
			}
		}
	}
	return store.ErrTaskItemNotFound
}

func (s *fakeTaskStore) SetTaskError(ctx context.Context, id uuid.UUID, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return store.ErrTaskNotFound
	}
	t.Error = message
	s.setErrorCalls = append(s.setErrorCalls, message)
	return nil
}

func (s *fakeTaskStore) ListQueued(ctx context.Context) ([]*domain.Task, error) {
	if s.listQueuedErr != nil {
		return nil, s.listQueuedErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var queued []*domain.Task
	for _, t := range s.tasks {
		for _, item := range t.Items {
			if item.Status == domain.TaskStatusQueued {
				queued = append(queued, cloneTask(t))
				break
			}
		}
	}
	return queued, nil
}

func cloneTask(t *domain.Task) *domain.Task {
	copied := *t
	copied.Items = make([]*domain.TaskItem, len(t.Items))
	for i, item := range t.Items {
		itemCopy := *item
		copied.Items[i] = &itemCopy
	}
	if t.ReferenceImage != nil {
		refCopy := *t.ReferenceImage
		copied.ReferenceImage = &refCopy
	}
	return &copied
}

// fakePromptStore is an in-memory PromptStore for service tests.
type fakePromptStore struct {
	mu      sync.Mutex
	prompts map[uuid.UUID]*domain.Prompt
	listErr error
}

func newFakePromptStore() *fakePromptStore {
	return &fakePromptStore{prompts: make(map[uuid.UUID]*domain.Prompt)}
}

func (s *fakePromptStore) add(p *domain.Prompt) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prompts[p.ID] = p
}

func (s *fakePromptStore) GetPrompt(ctx context.Context, id uuid.UUID) (*domain.Prompt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.prompts[id]
	if !ok {
		return nil, store.ErrPromptNotFound
	}
	return p, nil
}

func (s *fakePromptStore) GetBasicPrompt(ctx context.Context, taskType domain.TaskType) (*domain.Prompt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.prompts {
		if taskType == domain.TaskTypeImage && p.ForImage {
			return p, nil
		}
		if taskType == domain.TaskTypeVideo && p.ForVideo {
			return p, nil
		}
	}
	return nil, store.ErrPromptNotFound
}

func (s *fakePromptStore) ListModelPrompts(ctx context.Context, search string, limit, offset int) ([]*domain.Prompt, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var models []*domain.Prompt
	for _, p := range s.prompts {
		if p.IsModel {
			models = append(models, p)
		}
	}
	return models, nil
}

// fakeImageGenerator records submissions and serves scripted statuses.
type fakeImageGenerator struct {
	mu sync.Mutex

	submittedPrompts []string
	submittedRatios  []string
	submittedImages  [][]byte
	nextExternalID   string
	submitErr        error

	statuses  map[string]provider.GenerationStatus
	statusErr map[string]error
}

func newFakeImageGenerator() *fakeImageGenerator {
	return &fakeImageGenerator{
		nextExternalID: "img-job-1",
		statuses:       make(map[string]provider.GenerationStatus),
		statusErr:      make(map[string]error),
	}
}

func (g *fakeImageGenerator) Submit(ctx context.Context, prompt, aspectRatio string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.submitErr != nil {
		return "", g.submitErr
	}
	g.submittedPrompts = append(g.submittedPrompts, prompt)
	g.submittedRatios = append(g.submittedRatios, aspectRatio)
	return g.nextExternalID, nil
}

func (g *fakeImageGenerator) SubmitWithImage(ctx context.Context, prompt string, image []byte, aspectRatio string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.submitErr != nil {
		return "", g.submitErr
	}
	g.submittedPrompts = append(g.submittedPrompts, prompt)
	g.submittedRatios = append(g.submittedRatios, aspectRatio)
	g.submittedImages = append(g.submittedImages, image)
	return g.nextExternalID, nil
}

func (g *fakeImageGenerator) Status(ctx context.Context, externalID string) (provider.GenerationStatus, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.statusErr[externalID]; err != nil {
		return provider.GenerationStatus{}, err
	}
	return g.statuses[externalID], nil
}

// fakeVideoGenerator records uploads and submissions.
type fakeVideoGenerator struct {
	mu sync.Mutex

	uploadedImages [][]byte
	uploadID       string
	uploadErr      error

	submittedPrompts  []string
	submittedImageIDs []string
	nextExternalID    string
	submitErr         error

	statuses map[string]provider.GenerationStatus
}

func newFakeVideoGenerator() *fakeVideoGenerator {
	return &fakeVideoGenerator{
		uploadID:       "upload-1",
		nextExternalID: "vid-job-1",
		statuses:       make(map[string]provider.GenerationStatus),
	}
}

func (g *fakeVideoGenerator) UploadImage(ctx context.Context, image []byte) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.uploadErr != nil {
		return "", g.uploadErr
	}
	g.uploadedImages = append(g.uploadedImages, image)
	return g.uploadID, nil
}

func (g *fakeVideoGenerator) Submit(ctx context.Context, prompt, imageID string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.submitErr != nil {
		return "", g.submitErr
	}
	g.submittedPrompts = append(g.submittedPrompts, prompt)
	g.submittedImageIDs = append(g.submittedImageIDs, imageID)
	return g.nextExternalID, nil
}

func (g *fakeVideoGenerator) Status(ctx context.Context, externalID string) (provider.GenerationStatus, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.statuses[externalID], nil
}

func (g *fakeVideoGenerator) ResultURL(externalID string) string {
	return "https://video.example.com/video/file/" + externalID
}

// fakeRunner captures submitted tasks without executing them, so tests
// control when the deferred submission runs.
type fakeRunner struct {
	mu        sync.Mutex
	submitted []task.Task
	submitErr error
}

func (r *fakeRunner) Submit(t task.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.submitErr != nil {
		return r.submitErr
	}
	r.submitted = append(r.submitted, t)
	return nil
}

func (r *fakeRunner) last() task.Task {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.submitted) == 0 {
		return nil
	}
	return r.submitted[len(r.submitted)-1]
}
