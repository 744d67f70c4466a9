// Package ideation implements the first pipeline stage: read the mood
// board, search the product catalog with model-proposed queries, generate
// post ideas as validated JSON, and persist them for the asset stage.
package ideation

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"postforge/internal/catalog"
	"postforge/internal/gemini"
	"postforge/internal/logging"
	"postforge/internal/pipeline"
	"postforge/internal/schema"
)

// DefaultIdeaCount is how many post ideas one run generates.
const DefaultIdeaCount = 3

// minQueries is the search variety the stage asks the model for.
const minQueries = 3

// TextGenerator is the LLM surface the stage needs.
type TextGenerator interface {
	GenerateText(ctx context.Context, req gemini.TextRequest) (string, error)
}

// Searcher runs catalog searches.
type Searcher interface {
	Search(ctx context.Context, query string) (*catalog.SearchResult, error)
}

// Stage is the ideation pipeline stage.
type Stage struct {
	llm           TextGenerator
	catalog       Searcher
	moodBoardPath string
	outputDir     string
	ideaCount     int
}

// New creates an ideation stage.
func New(llm TextGenerator, cat Searcher, moodBoardPath, outputDir string) *Stage {
	return &Stage{
		llm:           llm,
		catalog:       cat,
		moodBoardPath: moodBoardPath,
		outputDir:     outputDir,
		ideaCount:     DefaultIdeaCount,
	}
}

// Name implements pipeline.Stage.
func (s *Stage) Name() string { return "ideation" }

// searchSummary is the compiled search context fed to the idea generator.
type searchSummary struct {
	Queries            []string             `json:"queries"`
	Products           []catalog.Product    `json:"products"`
	RelatedCollections []catalog.Collection `json:"related_collections,omitempty"`
}

// Run executes the four ideation steps sequentially.
func (s *Stage) Run(ctx context.Context, state *pipeline.State) error {
	content, err := os.ReadFile(s.moodBoardPath)
	if err != nil {
		return fmt.Errorf("failed to read mood board %s: %w", s.moodBoardPath, err)
	}
	moodBoard := string(content)
	state.Set(pipeline.KeyMoodBoardContent, moodBoard)
	logging.Ideation("Read mood board %s (%d bytes)", s.moodBoardPath, len(content))

	queries, err := s.proposeQueries(ctx, moodBoard)
	if err != nil {
		return err
	}

	summary, err := s.searchCatalog(ctx, queries)
	if err != nil {
		return err
	}
	summaryJSON, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode search summary: %w", err)
	}
	state.Set(pipeline.KeySearchResults, string(summaryJSON))

	ideas, err := s.generateIdeas(ctx, moodBoard, string(summaryJSON))
	if err != nil {
		return err
	}

	return SaveIdeas(state, ideas, s.outputDir)
}

// proposeQueries asks the model for catalog search queries covering the
// mood board's themes.
func (s *Stage) proposeQueries(ctx context.Context, moodBoard string) ([]string, error) {
	raw, err := s.llm.GenerateText(ctx, gemini.TextRequest{
		System:     querySystem,
		Prompt:     fmt.Sprintf(queryPromptTemplate, moodBoard),
		JSONOutput: true,
	})
	if err != nil {
		return nil, fmt.Errorf("query proposal failed: %w", err)
	}

	var queries []string
	if err := json.Unmarshal([]byte(schema.ExtractJSON(raw)), &queries); err != nil {
		return nil, fmt.Errorf("query proposal is not a JSON string array: %w", err)
	}
	if len(queries) == 0 {
		return nil, fmt.Errorf("model proposed no search queries")
	}
	if len(queries) < minQueries {
		logging.Get(logging.CategoryIdeation).Warn("model proposed only %d queries (asked for %d)", len(queries), minQueries)
	}
	logging.Ideation("Proposed queries: %v", queries)
	return queries, nil
}

// searchCatalog runs every query and compiles the unique products found.
func (s *Stage) searchCatalog(ctx context.Context, queries []string) (*searchSummary, error) {
	summary := &searchSummary{Queries: queries}
	seen := make(map[string]bool)

	for _, q := range queries {
		result, err := s.catalog.Search(ctx, q)
		if err != nil {
			return nil, fmt.Errorf("catalog search %q failed: %w", q, err)
		}
		for _, p := range result.Products {
			if seen[p.SKU] {
				continue
			}
			seen[p.SKU] = true
			summary.Products = append(summary.Products, p)
		}
		summary.RelatedCollections = append(summary.RelatedCollections, result.RelatedCollections...)
	}

	if len(summary.Products) == 0 && len(summary.RelatedCollections) == 0 {
		return nil, fmt.Errorf("no catalog matches for any of %d queries (is the index built?)", len(queries))
	}
	logging.Ideation("Search compiled %d unique products across %d queries", len(summary.Products), len(queries))
	return summary, nil
}

// generateIdeas runs the idea-generation call and validates its output.
func (s *Stage) generateIdeas(ctx context.Context, moodBoard, searchResults string) (*schema.IdeasOutput, error) {
	raw, err := s.llm.GenerateText(ctx, gemini.TextRequest{
		System:     ideaSystem,
		Prompt:     fmt.Sprintf(ideaPromptTemplate, s.ideaCount, moodBoard, searchResults, s.moodBoardPath),
		JSONOutput: true,
	})
	if err != nil {
		return nil, fmt.Errorf("idea generation failed: %w", err)
	}

	ideas, err := schema.ParseIdeasOutput(raw, s.moodBoardPath)
	if err != nil {
		return nil, err
	}
	if len(ideas.Ideas) != s.ideaCount {
		logging.Get(logging.CategoryIdeation).Warn("model returned %d ideas, expected %d", len(ideas.Ideas), s.ideaCount)
	}
	logging.Ideation("Generated %d ideas", len(ideas.Ideas))
	return ideas, nil
}

// SaveIdeas stamps generated_at, stores the ideas in pipeline state for
// the asset stage, and writes output/ideas.json as a debug artifact.
func SaveIdeas(state *pipeline.State, ideas *schema.IdeasOutput, outputDir string) error {
	ideas.GeneratedAt = time.Now().UTC().Format(time.RFC3339)
	if err := ideas.Validate(); err != nil {
		return err
	}

	state.Set(pipeline.KeyIdeas, ideas)

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	path := filepath.Join(outputDir, "ideas.json")
	data, err := json.MarshalIndent(ideas, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode ideas: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	logging.Ideation("Saved %d ideas to %s", len(ideas.Ideas), path)
	return nil
}
