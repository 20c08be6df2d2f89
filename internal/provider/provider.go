package provider

import "context"

// GenerationStatus is a provider's answer to a status poll. Neither
// flag set means the job is still in progress. Polling has no provider
// side effects and may be repeated freely.
type GenerationStatus struct {
	// Finished reports that the job completed successfully.
	Finished bool

	// Invalid reports that the provider gave up on the job.
	Invalid bool

	// ResultURL is where the finished asset can be fetched. Only the
	// image provider reports it; video results are addressable by job
	// id alone.
	ResultURL string

	// Comment carries the provider's optional human-readable note.
	Comment string
}

// ImageGenerator is the capability interface over the external image
// generation provider. Each call is a single outbound network
// operation; implementations keep no state beyond identity/auth.
type ImageGenerator interface {
	// Submit initiates a text-to-image job and returns the
	// provider-assigned job id.
	// Returns ErrSubmissionRejected if the provider refuses the job.
	Submit(ctx context.Context, prompt string, aspectRatio string) (string, error)

	// SubmitWithImage initiates an image-to-image job, uploading the
	// source image alongside the prompt.
	// Returns ErrSubmissionRejected if the provider refuses the job.
	SubmitWithImage(ctx context.Context, prompt string, image []byte, aspectRatio string) (string, error)

	// Status polls the current state of a job.
	Status(ctx context.Context, externalID string) (GenerationStatus, error)
}

// VideoGenerator is the capability interface over the external video
// generation provider. The provider requires a stable reference image
// upload before a generation job can be submitted.
type VideoGenerator interface {
	// UploadImage uploads a reference image and returns the
	// provider-assigned image id.
	UploadImage(ctx context.Context, image []byte) (string, error)

	// Submit initiates a video job from a prompt and a previously
	// uploaded reference image, returning the provider-assigned job id.
	// Returns ErrSubmissionRejected if the provider refuses the job.
	Submit(ctx context.Context, prompt string, imageID string) (string, error)

	// Status polls the current state of a job.
	Status(ctx context.Context, externalID string) (GenerationStatus, error)

	// ResultURL constructs the address the finished video will be
	// served from. Deterministic from the job id, known at submission
	// time.
	ResultURL(externalID string) string
}
