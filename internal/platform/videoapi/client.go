// Package videoapi implements the provider.VideoGenerator interface
// over the external video generation HTTP API.
package videoapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/animegen/animegen-api/internal/config"
	"github.com/animegen/animegen-api/internal/provider"
)

// accessTokenHeader is the auth header both providers expect.
const accessTokenHeader = "ACCESS-TOKEN"

// Client talks to the video generation provider. Video generation is a
// two-step protocol: a reference image upload, then a job submission
// pointing back at the uploaded image.
type Client struct {
	baseURL    string
	token      string
	userID     string
	appBundle  string
	httpClient *http.Client
	logger     *slog.Logger
}

// Ensure Client implements the provider interface
var _ provider.VideoGenerator = (*Client)(nil)

// submitRequest is the JSON body of a video generation submission.
type submitRequest struct {
	Prompt    string `json:"prompt"`
	ImageURL  string `json:"image_url"`
	UserID    string `json:"user_id"`
	AppBundle string `json:"app_bundle"`
}

// idResponse is the provider's answer to uploads and submissions.
type idResponse struct {
	ID string `json:"id"`
}

// statusResponse is the provider's answer to a status poll. The video
// provider reports no result URL; results are addressed by job id.
type statusResponse struct {
	ID         string `json:"id"`
	UserID     string `json:"user_id"`
	IsFinished bool   `json:"is_finished"`
	IsInvalid  bool   `json:"is_invalid"`
}

// NewClient creates a Client for the configured provider endpoint.
func NewClient(cfg config.ProviderConfig, identity config.GatewayConfig, logger *slog.Logger) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("%w: video API URL cannot be empty", provider.ErrInvalidConfig)
	}

	if cfg.Token == "" {
		return nil, fmt.Errorf("%w: video API token cannot be empty", provider.ErrInvalidConfig)
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL:   strings.TrimRight(cfg.URL, "/"),
		token:     cfg.Token,
		userID:    identity.UserID,
		appBundle: identity.AppBundle,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger.With("component", "video_api"),
	}, nil
}

// UploadImage implements provider.VideoGenerator.UploadImage.
func (c *Client) UploadImage(ctx context.Context, image []byte) (string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", "reference.jpg")
	if err != nil {
		return "", fmt.Errorf("failed to create image form part: %w", err)
	}
	if _, err := part.Write(image); err != nil {
		return "", fmt.Errorf("failed to write image data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/image", &buf)
	if err != nil {
		return "", fmt.Errorf("failed to build upload request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set(accessTokenHeader, c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("reference image upload failed: %w", err)
	}
	defer c.closeBody(resp.Body)

	if resp.StatusCode != http.StatusCreated {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("%w: status %d: %s",
			provider.ErrSubmissionRejected, resp.StatusCode, string(detail))
	}

	var result idResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("%w: %v", provider.ErrInvalidResponse, err)
	}

	c.logger.Debug("reference image uploaded", "image_id", result.ID)
	return result.ID, nil
}

// Submit implements provider.VideoGenerator.Submit. The provider wants
// the reference image as a URL pointing back at its own image store.
func (c *Client) Submit(ctx context.Context, prompt string, imageID string) (string, error) {
	body, err := json.Marshal(submitRequest{
		Prompt:    prompt,
		ImageURL:  c.baseURL + "/image/" + imageID,
		UserID:    c.userID,
		AppBundle: c.appBundle,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode submission: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/video", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build submission request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(accessTokenHeader, c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("video submission request failed: %w", err)
	}
	defer c.closeBody(resp.Body)

	if resp.StatusCode != http.StatusCreated {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.logger.Warn("video provider rejected submission",
			"status_code", resp.StatusCode,
			"detail", string(detail))
		return "", fmt.Errorf("%w: status %d: %s",
			provider.ErrSubmissionRejected, resp.StatusCode, string(detail))
	}

	var result idResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("%w: %v", provider.ErrInvalidResponse, err)
	}

	c.logger.Debug("video generation started", "external_id", result.ID)
	return result.ID, nil
}

// Status implements provider.VideoGenerator.Status.
func (c *Client) Status(ctx context.Context, externalID string) (provider.GenerationStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/video/"+externalID, nil)
	if err != nil {
		return provider.GenerationStatus{}, fmt.Errorf("failed to build status request: %w", err)
	}
	req.Header.Set(accessTokenHeader, c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return provider.GenerationStatus{}, fmt.Errorf("video status request failed: %w", err)
	}
	defer c.closeBody(resp.Body)

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return provider.GenerationStatus{}, fmt.Errorf("%w: status %d: %s",
			provider.ErrUnexpectedStatus, resp.StatusCode, string(detail))
	}

	var result statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return provider.GenerationStatus{}, fmt.Errorf("%w: %v", provider.ErrInvalidResponse, err)
	}

	c.logger.Debug("video API response",
		"external_id", externalID,
		"finished", result.IsFinished,
		"invalid", result.IsInvalid)
	return provider.GenerationStatus{
		Finished: result.IsFinished,
		Invalid:  result.IsInvalid,
	}, nil
}

// ResultURL implements provider.VideoGenerator.ResultURL.
func (c *Client) ResultURL(externalID string) string {
	return c.baseURL + "/video/file/" + externalID
}

// closeBody drains and closes a response body, logging close failures.
func (c *Client) closeBody(body io.ReadCloser) {
	if err := body.Close(); err != nil {
		c.logger.Error("failed to close response body", "error", err)
	}
}
