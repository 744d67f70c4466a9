package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"postforge/internal/logging"
)

// Stage is one sequential step of the pipeline.
type Stage interface {
	Name() string
	Run(ctx context.Context, state *State) error
}

// Runner executes stages in order against a shared State. A stage error
// aborts the run; there is no cross-stage retry (retries live inside the
// asset stage, per work item).
type Runner struct {
	SessionID string

	stages []Stage
	logger *zap.Logger
}

// NewRunner creates a runner with a fresh session id.
func NewRunner(logger *zap.Logger, stages ...Stage) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		SessionID: uuid.NewString(),
		stages:    stages,
		logger:    logger,
	}
}

// Run executes every stage sequentially.
func (r *Runner) Run(ctx context.Context, state *State) error {
	r.logger.Info("pipeline starting",
		zap.String("session_id", r.SessionID),
		zap.Int("stages", len(r.stages)))
	logging.Pipeline("Session %s: starting %d stage(s)", r.SessionID, len(r.stages))

	for i, stage := range r.stages {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("pipeline canceled before stage %s: %w", stage.Name(), err)
		}

		start := time.Now()
		r.logger.Info("stage starting",
			zap.String("session_id", r.SessionID),
			zap.String("stage", stage.Name()),
			zap.Int("position", i+1))

		if err := stage.Run(ctx, state); err != nil {
			r.logger.Error("stage failed",
				zap.String("stage", stage.Name()),
				zap.Duration("elapsed", time.Since(start)),
				zap.Error(err))
			logging.Get(logging.CategoryPipeline).Error("Session %s: stage %s failed: %v", r.SessionID, stage.Name(), err)
			return fmt.Errorf("stage %s failed: %w", stage.Name(), err)
		}

		r.logger.Info("stage complete",
			zap.String("stage", stage.Name()),
			zap.Duration("elapsed", time.Since(start)))
		logging.Pipeline("Session %s: stage %s complete in %v", r.SessionID, stage.Name(), time.Since(start))
	}

	r.logger.Info("pipeline complete", zap.String("session_id", r.SessionID))
	return nil
}
