// Package pipeline provides the shared session state and the sequential
// stage runner. Stages communicate exclusively through State: ideation
// writes the validated ideas, the asset stage reads them and writes image
// prompts and results per idea.
package pipeline

import "sync"

// Well-known state keys.
const (
	// KeyMoodBoardContent holds the raw mood board markdown.
	KeyMoodBoardContent = "mood_board_content"

	// KeySearchResults holds the compiled product search summary.
	KeySearchResults = "product_search_results"

	// KeyIdeas holds the validated *schema.IdeasOutput.
	KeyIdeas = "ideas_output"

	// KeyCurrentIdea holds the schema.PostIdea being processed.
	KeyCurrentIdea = "current_idea"

	// KeyImagePrompts holds the []schema.ImagePrompt for the current idea.
	KeyImagePrompts = "image_prompts"

	// KeyImageResults holds the []schema.ImageResult produced by the
	// current generation attempt. Its presence is the retry loop's
	// success probe.
	KeyImageResults = "image_results"
)

// State is the key/value store shared by pipeline stages.
type State struct {
	mu   sync.RWMutex
	data map[string]interface{}
}

// NewState creates an empty state.
func NewState() *State {
	return &State{data: make(map[string]interface{})}
}

// Get returns the value for key and whether it was present.
func (s *State) Get(key string) (interface{}, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	return v, ok
}

// Set stores a value under key.
func (s *State) Set(key string, value interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
}

// Delete removes key from the state.
func (s *State) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
}

// Keys returns the currently populated keys.
func (s *State) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	return keys
}
