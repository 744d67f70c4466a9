// Package gemini wraps the Google GenAI SDK for the two calls the pipeline
// makes: text generation (ideation, prompt crafting) and native image
// generation with product reference photos.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/genai"

	"postforge/internal/logging"
)

// ErrNoImage is returned when the image model responds without inline
// image data. The asset stage treats it as a retryable failure.
var ErrNoImage = errors.New("no image in model response")

// Config configures the Gemini client.
type Config struct {
	APIKey     string
	TextModel  string
	ImageModel string
	Timeout    time.Duration
}

// Client calls the Gemini API for text and image generation.
type Client struct {
	client     *genai.Client
	textModel  string
	imageModel string
	timeout    time.Duration
}

// NewClient creates a Gemini client for the Gemini API backend.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("Gemini API key is required (set GEMINI_API_KEY)")
	}
	if cfg.TextModel == "" {
		cfg.TextModel = "gemini-2.5-flash"
	}
	if cfg.ImageModel == "" {
		cfg.ImageModel = "gemini-2.5-flash-image"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &Client{
		client:     client,
		textModel:  cfg.TextModel,
		imageModel: cfg.ImageModel,
		timeout:    cfg.Timeout,
	}, nil
}

// TextRequest is a single-turn text generation request.
type TextRequest struct {
	// System is the system instruction (persona + task framing).
	System string

	// Prompt is the user-turn content.
	Prompt string

	// JSONOutput asks the model for an application/json response.
	JSONOutput bool

	// Temperature overrides the model default when non-nil.
	Temperature *float32
}

// GenerateText runs a single text generation call and returns the
// concatenated text of the first candidate.
func (c *Client) GenerateText(ctx context.Context, req TextRequest) (string, error) {
	timer := logging.StartTimer(logging.CategoryAPI, "gemini.GenerateText")
	defer timer.StopWithThreshold(30 * time.Second)

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	cfg := &genai.GenerateContentConfig{
		Temperature: req.Temperature,
	}
	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.JSONOutput {
		cfg.ResponseMIMEType = "application/json"
	}

	logging.API("GenerateText model=%s json=%v prompt_len=%d", c.textModel, req.JSONOutput, len(req.Prompt))

	resp, err := c.client.Models.GenerateContent(ctx,
		c.textModel,
		genai.Text(req.Prompt),
		cfg,
	)
	if err != nil {
		return "", fmt.Errorf("Gemini text generation failed: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("empty response from %s", c.textModel)
	}
	logging.APIDebug("GenerateText response_len=%d", len(text))
	return text, nil
}

// ReferenceImage is a product photo passed to the image model so it can
// depict the real product accurately.
type ReferenceImage struct {
	Data     []byte
	MIMEType string
}

// ImageRequest is a single image generation request.
type ImageRequest struct {
	Prompt     string
	References []ReferenceImage
}

// GenerateImage generates one square image for the prompt. Reference
// images are passed as inline parts; every harm category is submitted
// with threshold BLOCK_NONE.
func (c *Client) GenerateImage(ctx context.Context, req ImageRequest) ([]byte, error) {
	timer := logging.StartTimer(logging.CategoryAPI, "gemini.GenerateImage")
	defer timer.StopWithThreshold(60 * time.Second)

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	parts := []*genai.Part{genai.NewPartFromText(req.Prompt)}
	for _, ref := range req.References {
		parts = append(parts, genai.NewPartFromBytes(ref.Data, ref.MIMEType))
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	cfg := &genai.GenerateContentConfig{
		ResponseModalities: []string{"TEXT", "IMAGE"},
		SafetySettings:     permissiveSafetySettings(),
		ImageConfig: &genai.ImageConfig{
			AspectRatio: "1:1",
		},
	}

	logging.API("GenerateImage model=%s refs=%d prompt_len=%d", c.imageModel, len(req.References), len(req.Prompt))

	resp, err := c.client.Models.GenerateContent(ctx, c.imageModel, contents, cfg)
	if err != nil {
		return nil, fmt.Errorf("Gemini image generation failed: %w", err)
	}

	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part.InlineData != nil && len(part.InlineData.Data) > 0 {
				logging.APIDebug("GenerateImage got %d bytes (%s)", len(part.InlineData.Data), part.InlineData.MIMEType)
				return part.InlineData.Data, nil
			}
		}
	}
	return nil, ErrNoImage
}

func permissiveSafetySettings() []*genai.SafetySetting {
	categories := []genai.HarmCategory{
		genai.HarmCategoryDangerousContent,
		genai.HarmCategoryHarassment,
		genai.HarmCategoryHateSpeech,
		genai.HarmCategorySexuallyExplicit,
		genai.HarmCategoryCivicIntegrity,
	}
	settings := make([]*genai.SafetySetting, 0, len(categories))
	for _, cat := range categories {
		settings = append(settings, &genai.SafetySetting{
			Category:  cat,
			Threshold: genai.HarmBlockThresholdBlockNone,
		})
	}
	return settings
}
