package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// ModelRef is the denormalized fashion model descriptor sent with an
// overlay request, so the service never needs a second lookup.
type ModelRef struct {
	ID        string
	Name      string
	ImageURL  string
	Gender    string
	BodyType  string
	Ethnicity string
	Category  string
}

// TryOnClient calls the virtual try-on service that drapes a garment
// cutout onto a fashion model. The overlay is cosmetic: whatever goes
// wrong here degrades to the input image, it never sinks a run.
type TryOnClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     zerolog.Logger
}

// TryOnOptions configures TryOnClient.
type TryOnOptions struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
	Logger     zerolog.Logger
}

// NewTryOnClient creates a virtual try-on client.
func NewTryOnClient(opts TryOnOptions) *TryOnClient {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 180 * time.Second}
	}
	return &TryOnClient{
		baseURL:    opts.BaseURL,
		apiKey:     opts.APIKey,
		httpClient: httpClient,
		logger:     opts.Logger.With().Str("component", "tryon").Logger(),
	}
}

// ApplyModel composites the garment onto a fashion model. When model is
// nil the service picks a default for the garment type and gender. This
// stage never fails: every error path returns a degraded result carrying
// the input image and an advisory message.
func (c *TryOnClient) ApplyModel(ctx context.Context, imageURL string, garment GarmentType, gender ModelGender, model *ModelRef) StageResult {
	payload := tryOnRequest{
		ImageURL:    imageURL,
		GarmentType: string(garment),
		ModelGender: string(gender),
	}
	if model != nil {
		payload.FashionModel = &tryOnModel{
			ID:        model.ID,
			Name:      model.Name,
			ImageURL:  model.ImageURL,
			Gender:    model.Gender,
			BodyType:  model.BodyType,
			Ethnicity: model.Ethnicity,
			Category:  model.Category,
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return degradedStage(imageURL, "Model preview could not be requested, showing the cutout instead.")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/tryon", bytes.NewReader(body))
	if err != nil {
		return degradedStage(imageURL, "Model preview could not be requested, showing the cutout instead.")
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn().Err(err).Msg("tryon request failed")
		return degradedStage(imageURL, "Model preview is unavailable right now, showing the cutout instead.")
	}
	defer resp.Body.Close()

	var out tryOnResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		c.logger.Warn().Err(err).Msg("tryon response not json")
		return degradedStage(imageURL, "Model preview returned an unexpected payload, showing the cutout instead.")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 || !out.Success || out.ProcessedImageURL == "" {
		c.logger.Warn().Int("status", resp.StatusCode).Str("message", out.Message).Msg("tryon declined")
		return degradedStage(imageURL, "Model preview was declined for this image, showing the cutout instead.")
	}

	return succeededStage(out.ProcessedImageURL)
}

type tryOnRequest struct {
	ImageURL     string      `json:"imageUrl"`
	GarmentType  string      `json:"garmentType"`
	ModelGender  string      `json:"modelGender"`
	FashionModel *tryOnModel `json:"fashionModel,omitempty"`
}

type tryOnModel struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	ImageURL  string `json:"imageUrl"`
	Gender    string `json:"gender"`
	BodyType  string `json:"bodyType,omitempty"`
	Ethnicity string `json:"ethnicity,omitempty"`
	Category  string `json:"category,omitempty"`
}

type tryOnResponse struct {
	Success           bool   `json:"success"`
	ProcessedImageURL string `json:"processedImageUrl"`
	Message           string `json:"message,omitempty"`
}
