// Package imageapi implements the provider.ImageGenerator interface
// over the external image generation HTTP API.
package imageapi

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

// Client talks to the image generation provider. It keeps no state
// across calls beyond the endpoint, auth token, and gateway identity.
type Client struct {
	baseURL    string
	token      string
	userID     string
	appBundle  string
	httpClient *http.Client
	logger     *slog.Logger
}

// Ensure Client implements the provider interface
var _ provider.ImageGenerator = (*Client)(nil)

// submitRequest is the JSON body of a generation submission.
type submitRequest struct {
	Prompt    string `json:"prompt"`
	UserID    string `json:"user_id"`
	AppBundle string `json:"app_bundle"`
	ImageSize string `json:"image_size"`
}

// submitResponse is the provider's answer to a successful submission.
type submitResponse struct {
	ID string `json:"id"`
}

// statusResponse is the provider's answer to a status poll.
type statusResponse struct {
	ID         string  `json:"id"`
	IsFinished bool    `json:"is_finished"`
	IsInvalid  bool    `json:"is_invalid"`
	ImageURL   *string `json:"image_url"`
	Comment    *string `json:"comment"`
}

// NewClient creates a Client for the configured provider endpoint.
func NewClient(cfg config.ProviderConfig, identity config.GatewayConfig, logger *slog.Logger) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("%w: image API URL cannot be empty", provider.ErrInvalidConfig)
	}

	if cfg.Token == "" {
		return nil, fmt.Errorf("%w: image API token cannot be empty", provider.ErrInvalidConfig)
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
		logger: logger.With("component", "image_api"),
	}, nil
}

// Submit implements provider.ImageGenerator.Submit.
func (c *Client) Submit(ctx context.Context, prompt string, aspectRatio string) (string, error) {
	body, err := json.Marshal(submitRequest{
		Prompt:    prompt,
		UserID:    c.userID,
		AppBundle: c.appBundle,
		ImageSize: aspectRatio,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode submission: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/image", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build submission request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(accessTokenHeader, c.token)

	return c.doSubmit(req)
}

// SubmitWithImage implements provider.ImageGenerator.SubmitWithImage.
// The source image travels as a multipart upload next to the prompt
// fields.
func (c *Client) SubmitWithImage(ctx context.Context, prompt string, image []byte, aspectRatio string) (string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	fields := map[string]string{
		"prompt":     prompt,
		"user_id":    c.userID,
		"app_bundle": c.appBundle,
		"image_size": aspectRatio,
	}
	for name, value := range fields {
		if err := writer.WriteField(name, value); err != nil {
			return "", fmt.Errorf("failed to write form field %s: %w", name, err)
		}
	}

	part, err := writer.CreateFormFile("file", "a.jpg")
	if err != nil {
		return "", fmt.Errorf("failed to create image form part: %w", err)
	}
	if _, err := part.Write(image); err != nil {
		return "", fmt.Errorf("failed to write image data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/image2image", &buf)
	if err != nil {
		return "", fmt.Errorf("failed to build submission request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set(accessTokenHeader, c.token)

	return c.doSubmit(req)
}

// doSubmit sends a prepared submission request and extracts the job id.
func (c *Client) doSubmit(req *http.Request) (string, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("image submission request failed: %w", err)
	}
	defer c.closeBody(resp.Body)

	if resp.StatusCode != http.StatusCreated {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.logger.Warn("image provider rejected submission",
			"status_code", resp.StatusCode,
			"detail", string(detail))
		return "", fmt.Errorf("%w: status %d: %s",
			provider.ErrSubmissionRejected, resp.StatusCode, string(detail))
	}

	var result submitResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("%w: %v", provider.ErrInvalidResponse, err)
	}

	c.logger.Debug("image generation started", "external_id", result.ID)
	return result.ID, nil
}

// Status implements provider.ImageGenerator.Status.
func (c *Client) Status(ctx context.Context, externalID string) (provider.GenerationStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/image/"+externalID, nil)
	if err != nil {
		return provider.GenerationStatus{}, fmt.Errorf("failed to build status request: %w", err)
	}
	req.Header.Set(accessTokenHeader, c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return provider.GenerationStatus{}, fmt.Errorf("image status request failed: %w", err)
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

	status := provider.GenerationStatus{
		Finished: result.IsFinished,
		Invalid:  result.IsInvalid,
	}
	if result.ImageURL != nil {
		status.ResultURL = *result.ImageURL
	}
	if result.Comment != nil {
		status.Comment = *result.Comment
	}

	c.logger.Debug("image API response",
		"external_id", externalID,
		"finished", status.Finished,
		"invalid", status.Invalid)
	return status, nil
}

// closeBody drains and closes a response body, logging close failures.
func (c *Client) closeBody(body io.ReadCloser) {
	if err := body.Close(); err != nil {
		c.logger.Error("failed to close response body", "error", err)
	}
}
