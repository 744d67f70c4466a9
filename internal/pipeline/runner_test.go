package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeStage struct {
	name string
	run  func(ctx context.Context, state *State) error
}

func (f *fakeStage) Name() string { return f.name }

func (f *fakeStage) Run(ctx context.Context, state *State) error { return f.run(ctx, state) }

func TestRunnerExecutesStagesInOrder(t *testing.T) {
	var order []string
	mk := func(name string) Stage {
		return &fakeStage{name: name, run: func(ctx context.Context, state *State) error {
			order = append(order, name)
			state.Set(name, true)
			return nil
		}}
	}

	r := NewRunner(nil, mk("first"), mk("second"), mk("third"))
	assert.NotEmpty(t, r.SessionID)

	state := NewState()
	require.NoError(t, r.Run(context.Background(), state))
	assert.Equal(t, []string{"first", "second", "third"}, order)

	// State carries across stages.
	_, ok := state.Get("first")
	assert.True(t, ok)
}

func TestRunnerStopsOnStageError(t *testing.T) {
	boom := errors.New("boom")
	ran := false
	r := NewRunner(nil,
		&fakeStage{name: "broken", run: func(ctx context.Context, state *State) error { return boom }},
		&fakeStage{name: "after", run: func(ctx context.Context, state *State) error { ran = true; return nil }},
	)

	err := r.Run(context.Background(), NewState())
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "stage broken failed")
	assert.False(t, ran, "stages after a failure must not run")
}

func TestRunnerHonorsCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ran := false
	r := NewRunner(nil, &fakeStage{name: "never", run: func(ctx context.Context, state *State) error {
		ran = true
		return nil
	}})

	err := r.Run(ctx, NewState())
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, ran)
}

func TestRunnerUniqueSessionIDs(t *testing.T) {
	a := NewRunner(nil)
	b := NewRunner(nil)
	if a.SessionID == b.SessionID {
		t.Errorf("expected distinct session ids, both were %s", a.SessionID)
	}
}
