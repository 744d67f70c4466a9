// Package assets implements the second pipeline stage: for each generated
// idea, craft image prompts, generate one image per prompt with bounded
// retry, and write the results to the output directory.
package assets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"postforge/internal/gemini"
	"postforge/internal/logging"
	"postforge/internal/pipeline"
	"postforge/internal/retry"
	"postforge/internal/schema"
)

// ErrNoIdeas is returned when neither pipeline state nor the ideas file
// has ideation output.
var ErrNoIdeas = errors.New("no ideas found in state or ideas file")

// maxReferenceBytes caps a downloaded product reference photo.
const maxReferenceBytes = 8 << 20

// TextGenerator is the prompt-crafting LLM surface.
type TextGenerator interface {
	GenerateText(ctx context.Context, req gemini.TextRequest) (string, error)
}

// ImageGenerator produces one image per request.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, req gemini.ImageRequest) ([]byte, error)
}

// ReferenceFetcher loads a product reference photo from a URL or local
// path. Injectable for tests.
type ReferenceFetcher func(ctx context.Context, source string) (data []byte, mimeType string, err error)

// Stage is the asset-generation pipeline stage.
type Stage struct {
	llm       TextGenerator
	images    ImageGenerator
	outputDir string
	policy    retry.Policy
	fetch     ReferenceFetcher
}

// New creates an asset stage with the default HTTP/file reference fetcher.
func New(llm TextGenerator, images ImageGenerator, outputDir string, policy retry.Policy) *Stage {
	return &Stage{
		llm:       llm,
		images:    images,
		outputDir: outputDir,
		policy:    policy,
		fetch:     FetchReference,
	}
}

// SetReferenceFetcher overrides how product reference photos are loaded.
func (s *Stage) SetReferenceFetcher(f ReferenceFetcher) { s.fetch = f }

// Name implements pipeline.Stage.
func (s *Stage) Name() string { return "assets" }

// Run processes every idea sequentially. Per-item failures are recorded
// in the manifest and do not stop the loop; the stage fails only when no
// asset at all could be produced.
func (s *Stage) Run(ctx context.Context, state *pipeline.State) error {
	ideas, err := LoadIdeas(state, s.outputDir)
	if err != nil {
		return err
	}

	manifest := &schema.AssetManifest{}
	for _, idea := range ideas.Ideas {
		if err := ctx.Err(); err != nil {
			return err
		}
		state.Set(pipeline.KeyCurrentIdea, idea)
		s.processIdea(ctx, state, idea, manifest)
	}

	manifest.GeneratedAt = time.Now().UTC().Format(time.RFC3339)
	if err := writeManifest(s.outputDir, manifest); err != nil {
		return err
	}

	logging.Assets("Run complete: %d assets, %d failures", len(manifest.Assets), len(manifest.Failures))
	if len(manifest.Assets) == 0 {
		return fmt.Errorf("no assets produced for %d ideas (%d failures)", len(ideas.Ideas), len(manifest.Failures))
	}
	return nil
}

// processIdea runs the per-idea sub-pipeline: prompts, then one image per
// prompt with retry.
func (s *Stage) processIdea(ctx context.Context, state *pipeline.State, idea schema.PostIdea, manifest *schema.AssetManifest) {
	log := logging.Get(logging.CategoryAssets)

	prompts, err := s.generatePrompts(ctx, idea)
	if err != nil {
		log.Error("prompt generation for %s failed: %v", idea.ID, err)
		manifest.Failures = append(manifest.Failures, schema.AssetFailure{
			IdeaID: idea.ID,
			Reason: fmt.Sprintf("prompt generation failed: %v", err),
		})
		return
	}
	state.Set(pipeline.KeyImagePrompts, prompts)

	refs := s.loadReferences(ctx, idea)

	for _, prompt := range prompts {
		result, err := s.generateWithRetry(ctx, state, prompt, refs)
		if err != nil {
			log.Error("image generation for %s v%d exhausted retries: %v", prompt.IdeaID, prompt.Version, err)
			manifest.Failures = append(manifest.Failures, schema.AssetFailure{
				IdeaID:  prompt.IdeaID,
				Version: prompt.Version,
				Reason:  err.Error(),
			})
			continue
		}

		asset, err := SaveAsset(s.outputDir, result)
		if err != nil {
			log.Error("saving %s v%d failed: %v", result.IdeaID, result.Version, err)
			manifest.Failures = append(manifest.Failures, schema.AssetFailure{
				IdeaID:  result.IdeaID,
				Version: result.Version,
				Reason:  err.Error(),
			})
			continue
		}
		manifest.Assets = append(manifest.Assets, asset)
	}
}

// generatePrompts asks the model for the 3 image prompts of one idea.
func (s *Stage) generatePrompts(ctx context.Context, idea schema.PostIdea) ([]schema.ImagePrompt, error) {
	ideaJSON, err := json.MarshalIndent(idea, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode idea %s: %w", idea.ID, err)
	}

	raw, err := s.llm.GenerateText(ctx, gemini.TextRequest{
		System:     promptSystem,
		Prompt:     fmt.Sprintf(promptTemplate, ideaJSON),
		JSONOutput: true,
	})
	if err != nil {
		return nil, err
	}

	prompts, err := schema.ParseImagePrompts(raw)
	if err != nil {
		return nil, err
	}
	for i := range prompts {
		// Models occasionally echo a placeholder id; pin to the real one.
		prompts[i].IdeaID = idea.ID
	}
	logging.Assets("Crafted %d prompts for %s", len(prompts), idea.ID)
	return prompts, nil
}

// loadReferences loads the idea's product photo. Missing or unreadable
// references are skipped with a warning; generation proceeds without them.
func (s *Stage) loadReferences(ctx context.Context, idea schema.PostIdea) []gemini.ReferenceImage {
	if idea.ProductImageURL == "" {
		return nil
	}
	data, mimeType, err := s.fetch(ctx, idea.ProductImageURL)
	if err != nil {
		logging.Get(logging.CategoryAssets).Warn("skipping reference %s: %v", idea.ProductImageURL, err)
		return nil
	}
	logging.Assets("Loaded reference image %s (%d bytes)", idea.ProductImageURL, len(data))
	return []gemini.ReferenceImage{{Data: data, MIMEType: mimeType}}
}

// generateWithRetry wraps one image generation in the retry loop. Success
// is probed through state: an attempt that leaves KeyImageResults empty
// counts as failed, and stale results are cleared before each attempt.
func (s *Stage) generateWithRetry(ctx context.Context, state *pipeline.State, prompt schema.ImagePrompt, refs []gemini.ReferenceImage) (schema.ImageResult, error) {
	policy := s.policy
	policy.OnRetry = func(err error, attempt int, delay time.Duration) {
		logging.Get(logging.CategoryAssets).Warn(
			"attempt %d/%d for %s v%d produced no image (%v), retrying in %v",
			attempt, policy.MaxAttempts, prompt.IdeaID, prompt.Version, err, delay)
	}

	return retry.Do(ctx, policy, func() (schema.ImageResult, error) {
		state.Delete(pipeline.KeyImageResults)

		data, err := s.images.GenerateImage(ctx, gemini.ImageRequest{
			Prompt:     fmt.Sprintf(imagePreambleTemplate, prompt.Prompt),
			References: refs,
		})
		if err != nil {
			return schema.ImageResult{}, err
		}

		result := schema.ImageResult{IdeaID: prompt.IdeaID, Version: prompt.Version, Data: data}
		state.Set(pipeline.KeyImageResults, []schema.ImageResult{result})

		results, ok := state.Get(pipeline.KeyImageResults)
		if !ok || len(results.([]schema.ImageResult)) == 0 {
			return schema.ImageResult{}, gemini.ErrNoImage
		}
		logging.Assets("Generated image for %s v%d (%d bytes)", prompt.IdeaID, prompt.Version, len(data))
		return result, nil
	})
}

// LoadIdeas returns ideation output, preferring pipeline state and
// falling back to <outputDir>/ideas.json.
func LoadIdeas(state *pipeline.State, outputDir string) (*schema.IdeasOutput, error) {
	if v, ok := state.Get(pipeline.KeyIdeas); ok {
		if ideas, ok := v.(*schema.IdeasOutput); ok && len(ideas.Ideas) > 0 {
			return ideas, nil
		}
	}

	path := filepath.Join(outputDir, "ideas.json")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoIdeas
		}
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var ideas schema.IdeasOutput
	if err := json.Unmarshal(data, &ideas); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if err := ideas.Validate(); err != nil {
		return nil, err
	}
	return &ideas, nil
}

// SaveAsset writes one generated image as <outputDir>/<idea_id>_v<n>.png.
func SaveAsset(outputDir string, result schema.ImageResult) (schema.Asset, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return schema.Asset{}, fmt.Errorf("failed to create output directory: %w", err)
	}
	filename := fmt.Sprintf("%s_v%d.png", result.IdeaID, result.Version)
	path := filepath.Join(outputDir, filename)
	if err := os.WriteFile(path, result.Data, 0644); err != nil {
		return schema.Asset{}, fmt.Errorf("failed to write %s: %w", path, err)
	}
	logging.Assets("Saved %s (%d bytes)", filename, len(result.Data))
	return schema.Asset{
		IdeaID:  result.IdeaID,
		Version: result.Version,
		File:    filename,
		Bytes:   len(result.Data),
	}, nil
}

func writeManifest(outputDir string, manifest *schema.AssetManifest) error {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	path := filepath.Join(outputDir, "assets.json")
	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// FetchReference loads a product photo from an http(s) URL or a local
// file path and sniffs its MIME type.
func FetchReference(ctx context.Context, source string) ([]byte, string, error) {
	var data []byte
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
		if err != nil {
			return nil, "", fmt.Errorf("invalid reference URL: %w", err)
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return nil, "", fmt.Errorf("reference download failed: %w", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, "", fmt.Errorf("reference download returned %s", resp.Status)
		}
		data, err = io.ReadAll(io.LimitReader(resp.Body, maxReferenceBytes))
		if err != nil {
			return nil, "", fmt.Errorf("reference download failed: %w", err)
		}
	} else {
		var err error
		data, err = os.ReadFile(source)
		if err != nil {
			return nil, "", fmt.Errorf("failed to read reference file: %w", err)
		}
	}
	if len(data) == 0 {
		return nil, "", fmt.Errorf("reference %s is empty", source)
	}
	return data, sniffImageMIME(source, data), nil
}

func sniffImageMIME(source string, data []byte) string {
	switch strings.ToLower(filepath.Ext(strings.SplitN(source, "?", 2)[0])) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".webp":
		return "image/webp"
	}
	return http.DetectContentType(data)
}
