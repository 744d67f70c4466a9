package ideation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"postforge/internal/catalog"
	"postforge/internal/gemini"
	"postforge/internal/pipeline"
	"postforge/internal/schema"
)

// fakeLLM returns scripted responses in order.
type fakeLLM struct {
	responses []string
	requests  []gemini.TextRequest
	err       error
}

func (f *fakeLLM) GenerateText(ctx context.Context, req gemini.TextRequest) (string, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return "", f.err
	}
	if len(f.requests) > len(f.responses) {
		return "", fmt.Errorf("unexpected call %d", len(f.requests))
	}
	return f.responses[len(f.requests)-1], nil
}

// fakeSearcher returns the same result for every query.
type fakeSearcher struct {
	result  *catalog.SearchResult
	queries []string
}

func (f *fakeSearcher) Search(ctx context.Context, query string) (*catalog.SearchResult, error) {
	f.queries = append(f.queries, query)
	r := *f.result
	r.Query = query
	return &r, nil
}

func writeMoodBoard(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mood_board.md")
	require.NoError(t, os.WriteFile(path, []byte("# Urban Dawn\n\nMuted tones, empty streets, first light."), 0644))
	return path
}

func price(v float64) *float64 { return &v }

func ideasJSON(source string) string {
	out := schema.IdeasOutput{
		MoodBoardSource: source,
		Ideas: []schema.PostIdea{
			{ID: "idea_1", ProductName: "Cloud 6", ProductSKU: "3ME10120485", ProductImageURL: "https://img.example.com/1.png",
				ImageryDirection: "Hero shot at dawn", Headline: "First Light", PostDescription: "Start before the city does.", Mood: "calm"},
			{ID: "idea_2", ProductName: "Cloudmonster", ProductSKU: "3ME10141234", ProductImageURL: "https://img.example.com/2.png",
				ImageryDirection: "Runner crossing a bridge", Headline: "Own the Morning", PostDescription: "Long miles, soft landings.", Mood: "determined"},
			{ID: "idea_3", ProductName: "Performance Tee", ProductSKU: "1MD30440598", ProductImageURL: "https://img.example.com/3.png",
				ImageryDirection: "Close-up fabric texture", Headline: "Built to Breathe", PostDescription: "Light as the morning air.", Mood: "fresh"},
		},
	}
	data, _ := json.Marshal(out)
	return string(data)
}

func TestRunHappyPath(t *testing.T) {
	moodBoard := writeMoodBoard(t)
	outputDir := t.TempDir()

	llm := &fakeLLM{responses: []string{
		`["road running shoes", "muted apparel", "dawn accessories"]`,
		ideasJSON(moodBoard),
	}}
	searcher := &fakeSearcher{result: &catalog.SearchResult{
		MatchCount: 1,
		Products: []catalog.Product{
			{Name: "Cloud 6 Black", SKU: "3ME10120485", Price: price(169.99), Category: "shoes"},
		},
	}}

	stage := New(llm, searcher, moodBoard, outputDir)
	assert.Equal(t, "ideation", stage.Name())

	state := pipeline.NewState()
	require.NoError(t, stage.Run(context.Background(), state))

	// Both LLM calls request JSON output.
	require.Len(t, llm.requests, 2)
	assert.True(t, llm.requests[0].JSONOutput)
	assert.True(t, llm.requests[1].JSONOutput)
	assert.Contains(t, llm.requests[0].Prompt, "Urban Dawn")

	// One search per proposed query.
	assert.Equal(t, []string{"road running shoes", "muted apparel", "dawn accessories"}, searcher.queries)

	// State carries mood board, search summary, and validated ideas.
	content, ok := state.Get(pipeline.KeyMoodBoardContent)
	require.True(t, ok)
	assert.Contains(t, content.(string), "Urban Dawn")

	summaryRaw, ok := state.Get(pipeline.KeySearchResults)
	require.True(t, ok)
	var summary struct {
		Queries  []string          `json:"queries"`
		Products []catalog.Product `json:"products"`
	}
	require.NoError(t, json.Unmarshal([]byte(summaryRaw.(string)), &summary))
	assert.Len(t, summary.Products, 1, "duplicate SKUs across queries are deduplicated")

	v, ok := state.Get(pipeline.KeyIdeas)
	require.True(t, ok)
	ideas := v.(*schema.IdeasOutput)
	assert.Len(t, ideas.Ideas, 3)
	assert.NotEmpty(t, ideas.GeneratedAt)

	// ideas.json written alongside.
	data, err := os.ReadFile(filepath.Join(outputDir, "ideas.json"))
	require.NoError(t, err)
	var fromFile schema.IdeasOutput
	require.NoError(t, json.Unmarshal(data, &fromFile))
	assert.Equal(t, ideas.Ideas, fromFile.Ideas)
}

func TestRunMissingMoodBoard(t *testing.T) {
	stage := New(&fakeLLM{}, &fakeSearcher{}, filepath.Join(t.TempDir(), "absent.md"), t.TempDir())
	err := stage.Run(context.Background(), pipeline.NewState())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mood board")
}

func TestRunRejectsEmptyQueryList(t *testing.T) {
	stage := New(&fakeLLM{responses: []string{`[]`}}, &fakeSearcher{}, writeMoodBoard(t), t.TempDir())
	err := stage.Run(context.Background(), pipeline.NewState())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no search queries")
}

func TestRunRejectsNonArrayQueries(t *testing.T) {
	stage := New(&fakeLLM{responses: []string{`{"queries": ["x"]}`}}, &fakeSearcher{}, writeMoodBoard(t), t.TempDir())
	err := stage.Run(context.Background(), pipeline.NewState())
	require.Error(t, err)
}

func TestRunFailsWhenCatalogEmpty(t *testing.T) {
	llm := &fakeLLM{responses: []string{`["something"]`, "never reached"}}
	searcher := &fakeSearcher{result: &catalog.SearchResult{}}

	stage := New(llm, searcher, writeMoodBoard(t), t.TempDir())
	err := stage.Run(context.Background(), pipeline.NewState())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no catalog matches")
	assert.Len(t, llm.requests, 1, "idea generation must not run without catalog context")
}

func TestRunCollectionsOnlyStillProceeds(t *testing.T) {
	moodBoard := writeMoodBoard(t)
	llm := &fakeLLM{responses: []string{
		`["hiking"]`,
		ideasJSON(moodBoard),
	}}
	searcher := &fakeSearcher{result: &catalog.SearchResult{
		RelatedCollections: []catalog.Collection{{Name: "Hiking", URL: "https://www.example.com/hiking"}},
	}}

	stage := New(llm, searcher, moodBoard, t.TempDir())
	require.NoError(t, stage.Run(context.Background(), pipeline.NewState()))
}

func TestRunSurfacesLLMErrors(t *testing.T) {
	boom := errors.New("quota exceeded")
	stage := New(&fakeLLM{err: boom}, &fakeSearcher{}, writeMoodBoard(t), t.TempDir())
	err := stage.Run(context.Background(), pipeline.NewState())
	require.ErrorIs(t, err, boom)
}

func TestSaveIdeasRejectsInvalidOutput(t *testing.T) {
	state := pipeline.NewState()
	err := SaveIdeas(state, &schema.IdeasOutput{MoodBoardSource: "x.md"}, t.TempDir())
	require.Error(t, err)
	_, ok := state.Get(pipeline.KeyIdeas)
	assert.False(t, ok, "invalid ideas must not reach state")
}

func TestSaveIdeasStampsGeneratedAt(t *testing.T) {
	var ideas schema.IdeasOutput
	require.NoError(t, json.Unmarshal([]byte(ideasJSON("mood_boards/x.md")), &ideas))
	require.Empty(t, ideas.GeneratedAt)

	state := pipeline.NewState()
	outputDir := t.TempDir()
	require.NoError(t, SaveIdeas(state, &ideas, outputDir))
	assert.NotEmpty(t, ideas.GeneratedAt)

	data, err := os.ReadFile(filepath.Join(outputDir, "ideas.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), ideas.GeneratedAt)
}
