package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// CutoutClient calls the background removal service, stage one of the
// processing pipeline: a garment photo goes in, a clean cutout comes back.
type CutoutClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     zerolog.Logger
}

// CutoutOptions configures CutoutClient.
type CutoutOptions struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
	Logger     zerolog.Logger
}

// NewCutoutClient creates a background removal client.
func NewCutoutClient(opts CutoutOptions) *CutoutClient {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 120 * time.Second}
	}
	return &CutoutClient{
		baseURL:    opts.BaseURL,
		apiKey:     opts.APIKey,
		httpClient: httpClient,
		logger:     opts.Logger.With().Str("component", "cutout").Logger(),
	}
}

// RemoveBackground sends the garment image to the cutout service. Every
// failure mode comes back as a failed StageResult carrying the original
// reference and a message a user can read; the caller decides what a
// failed stage means for the run.
func (c *CutoutClient) RemoveBackground(ctx context.Context, src ImageSource) StageResult {
	var (
		resp *http.Response
		err  error
	)
	if len(src.Data) > 0 {
		resp, err = c.postFile(ctx, src)
	} else {
		resp, err = c.postURL(ctx, src.URL)
	}
	if err != nil {
		c.logger.Warn().Err(err).Msg("cutout request failed")
		return failedStage(src.Ref(), "Background removal is unreachable right now.")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		c.logger.Warn().Err(err).Msg("cutout response unreadable")
		return failedStage(src.Ref(), "Background removal returned an unreadable response.")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn().Int("status", resp.StatusCode).Msg("cutout rejected the image")
		return failedStage(src.Ref(), fmt.Sprintf("Background removal rejected the image (status %d).", resp.StatusCode))
	}

	var out cutoutResponse
	if err := json.Unmarshal(body, &out); err != nil {
		c.logger.Warn().Err(err).Msg("cutout response not json")
		return failedStage(src.Ref(), "Background removal returned an unexpected payload.")
	}
	if !out.Success || out.ProcessedImageURL == "" {
		msg := out.Message
		if msg == "" {
			msg = "Background removal could not process this image."
		}
		return failedStage(src.Ref(), msg)
	}

	return succeededStage(out.ProcessedImageURL)
}

func (c *CutoutClient) postFile(ctx context.Context, src ImageSource) (*http.Response, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("image", src.Filename)
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(src.Data); err != nil {
		return nil, fmt.Errorf("write form file: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/cutout", &buf)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if c.apiKey != "" {
		req.Header.Set("X-Api-Key", c.apiKey)
	}
	return c.httpClient.Do(req)
}

func (c *CutoutClient) postURL(ctx context.Context, imageURL string) (*http.Response, error) {
	payload, err := json.Marshal(cutoutURLRequest{ImageURL: imageURL})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/cutout", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-Api-Key", c.apiKey)
	}
	return c.httpClient.Do(req)
}

type cutoutURLRequest struct {
	ImageURL string `json:"image_url"`
}

type cutoutResponse struct {
	Success           bool   `json:"success"`
	ProcessedImageURL string `json:"processedImageUrl"`
	Message           string `json:"message,omitempty"`
}
