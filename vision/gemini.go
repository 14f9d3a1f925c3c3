package vision

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"
)

const listingPrompt = `You write listing copy for a second-hand fashion marketplace.
Look at the garment in the photo and answer with ONLY a JSON object, no markdown, shaped as:
{"title": "...", "description": "...", "brand": "...", "condition": "..."}
Rules: title under 60 characters, description 2-3 sentences about fabric, fit and styling,
brand empty string if not visible, condition one of new_with_tags, like_new, good, fair.`

// Gemini is the Analyzer backed by Google's Gemini vision models.
type Gemini struct {
	apiKey     string
	model      string
	httpClient *http.Client
	logger     zerolog.Logger
}

// GeminiOptions configures Gemini.
type GeminiOptions struct {
	APIKey     string
	Model      string
	HTTPClient *http.Client
	Logger     zerolog.Logger
}

// NewGemini creates the analyzer. The API key is required; the model
// defaults to a current flash model.
func NewGemini(opts GeminiOptions) (*Gemini, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("gemini api key is not set")
	}
	model := opts.Model
	if model == "" {
		model = "gemini-2.0-flash"
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Gemini{
		apiKey:     opts.APIKey,
		model:      model,
		httpClient: httpClient,
		logger:     opts.Logger.With().Str("component", "vision").Logger(),
	}, nil
}

// AnalyzeGarment sends the photo to Gemini and parses the proposed copy.
func (g *Gemini) AnalyzeGarment(ctx context.Context, imageURL string) (*Listing, error) {
	imgData, mimeSubtype, err := g.fetchImage(ctx, imageURL)
	if err != nil {
		return nil, fmt.Errorf("fetch garment image: %w", err)
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(g.apiKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	defer client.Close()

	model := client.GenerativeModel(g.model)
	resp, err := model.GenerateContent(ctx,
		genai.Text(listingPrompt),
		genai.ImageData(mimeSubtype, imgData),
	)
	if err != nil {
		return nil, fmt.Errorf("generate listing copy: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("gemini returned no content")
	}

	var text string
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			text += string(t)
		}
	}
	if text == "" {
		return nil, fmt.Errorf("gemini returned no text part")
	}

	listing, err := ParseListing(text)
	if err != nil {
		g.logger.Warn().Err(err).Str("model", g.model).Msg("unparseable analyzer output")
		return nil, err
	}
	return listing, nil
}

// Describe satisfies the studio's describer contract with AnalyzeGarment.
func (g *Gemini) Describe(ctx context.Context, imageURL string) (string, string, error) {
	l, err := g.AnalyzeGarment(ctx, imageURL)
	if err != nil {
		return "", "", err
	}
	return l.Title, l.Description, nil
}

func (g *Gemini) fetchImage(ctx context.Context, imageURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("image fetch status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 20<<20))
	if err != nil {
		return nil, "", err
	}

	subtype := "jpeg"
	switch resp.Header.Get("Content-Type") {
	case "image/png":
		subtype = "png"
	case "image/webp":
		subtype = "webp"
	}
	return data, subtype, nil
}
