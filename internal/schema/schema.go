// Package schema defines the JSON contract between the ideation and asset
// stages. The structures mirror what the idea-generation model is instructed
// to emit; Validate enforces the contract before anything reaches state or
// disk.
package schema

import (
	"encoding/json"
	"fmt"
	"strings"
)

// PostIdea pairs a catalog product with an imagery direction, headline,
// and caption for one Instagram post concept.
type PostIdea struct {
	ID               string `json:"id"`
	ProductName      string `json:"product_name"`
	ProductSKU       string `json:"product_sku"`
	ProductImageURL  string `json:"product_image_url"`
	ImageryDirection string `json:"imagery_direction"`
	Headline         string `json:"headline"`
	PostDescription  string `json:"post_description"`
	Mood             string `json:"mood"`
}

// Validate checks that every required field is present.
func (p *PostIdea) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("idea is missing id")
	}
	if p.ProductName == "" {
		return fmt.Errorf("idea %s is missing product_name", p.ID)
	}
	if p.ProductSKU == "" {
		return fmt.Errorf("idea %s is missing product_sku", p.ID)
	}
	if p.ImageryDirection == "" {
		return fmt.Errorf("idea %s is missing imagery_direction", p.ID)
	}
	if p.Headline == "" {
		return fmt.Errorf("idea %s is missing headline", p.ID)
	}
	if p.PostDescription == "" {
		return fmt.Errorf("idea %s is missing post_description", p.ID)
	}
	if p.Mood == "" {
		return fmt.Errorf("idea %s is missing mood", p.ID)
	}
	return nil
}

// IdeasOutput is the ideation stage's result: the full set of generated
// post ideas plus provenance.
type IdeasOutput struct {
	MoodBoardSource string     `json:"mood_board_source"`
	GeneratedAt     string     `json:"generated_at"`
	Ideas           []PostIdea `json:"ideas"`
}

// Validate checks the output and every idea within it.
func (o *IdeasOutput) Validate() error {
	if o.MoodBoardSource == "" {
		return fmt.Errorf("ideas output is missing mood_board_source")
	}
	if len(o.Ideas) == 0 {
		return fmt.Errorf("ideas output contains no ideas")
	}
	seen := make(map[string]bool, len(o.Ideas))
	for i := range o.Ideas {
		if err := o.Ideas[i].Validate(); err != nil {
			return err
		}
		if seen[o.Ideas[i].ID] {
			return fmt.Errorf("duplicate idea id %q", o.Ideas[i].ID)
		}
		seen[o.Ideas[i].ID] = true
	}
	return nil
}

// ImagePrompt is one image-generation prompt for an idea.
// Version is 1-3: hero shot, lifestyle shot, artistic composition.
type ImagePrompt struct {
	IdeaID  string `json:"idea_id"`
	Version int    `json:"version"`
	Prompt  string `json:"prompt"`
}

// Validate checks prompt completeness.
func (p *ImagePrompt) Validate() error {
	if p.IdeaID == "" {
		return fmt.Errorf("image prompt is missing idea_id")
	}
	if p.Version < 1 || p.Version > 3 {
		return fmt.Errorf("image prompt for %s has version %d, want 1-3", p.IdeaID, p.Version)
	}
	if strings.TrimSpace(p.Prompt) == "" {
		return fmt.Errorf("image prompt %s v%d is empty", p.IdeaID, p.Version)
	}
	return nil
}

// ValidatePrompts checks a full prompt batch for one idea.
func ValidatePrompts(prompts []ImagePrompt) error {
	if len(prompts) == 0 {
		return fmt.Errorf("prompt batch is empty")
	}
	for i := range prompts {
		if err := prompts[i].Validate(); err != nil {
			return err
		}
	}
	return nil
}

// ImageResult is one generated image, held in pipeline state before it is
// written to disk.
type ImageResult struct {
	IdeaID  string `json:"idea_id"`
	Version int    `json:"version"`
	Data    []byte `json:"image_base64"`
}

// Asset records one image written to the output directory.
type Asset struct {
	IdeaID  string `json:"idea_id"`
	Version int    `json:"version"`
	File    string `json:"file"`
	Bytes   int    `json:"bytes"`
}

// AssetFailure records one prompt whose image generation exhausted retries.
type AssetFailure struct {
	IdeaID  string `json:"idea_id"`
	Version int    `json:"version"`
	Reason  string `json:"reason"`
}

// AssetManifest summarizes an asset-generation run.
type AssetManifest struct {
	GeneratedAt string         `json:"generated_at"`
	Assets      []Asset        `json:"assets"`
	Failures    []AssetFailure `json:"failures,omitempty"`
}

// ExtractJSON strips markdown code fences that models wrap around JSON
// output ("```json ... ```") and returns the bare payload.
func ExtractJSON(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	if i := strings.LastIndex(s, "```"); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

// ParseIdeasOutput decodes and validates model output for the ideas contract.
// fallbackSource fills mood_board_source when the model omitted it.
func ParseIdeasOutput(raw, fallbackSource string) (*IdeasOutput, error) {
	var out IdeasOutput
	if err := json.Unmarshal([]byte(ExtractJSON(raw)), &out); err != nil {
		return nil, fmt.Errorf("ideas output is not valid JSON: %w", err)
	}
	if out.MoodBoardSource == "" {
		out.MoodBoardSource = fallbackSource
	}
	if err := out.Validate(); err != nil {
		return nil, err
	}
	return &out, nil
}

// ParseImagePrompts decodes and validates a prompt batch emitted by the
// prompt-generation model.
func ParseImagePrompts(raw string) ([]ImagePrompt, error) {
	var prompts []ImagePrompt
	if err := json.Unmarshal([]byte(ExtractJSON(raw)), &prompts); err != nil {
		return nil, fmt.Errorf("image prompts are not valid JSON: %w", err)
	}
	if err := ValidatePrompts(prompts); err != nil {
		return nil, err
	}
	return prompts, nil
}
