package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"postforge/internal/assets"
	"postforge/internal/catalog"
	"postforge/internal/ideation"
	"postforge/internal/pipeline"
)

// watchDebounce absorbs editor save bursts before re-running.
const watchDebounce = 500 * time.Millisecond

// watchCmd re-runs the pipeline whenever the mood board file changes.
var watchCmd = &cobra.Command{
	Use:   "watch [mood_board.md]",
	Short: "Re-run the pipeline when the mood board changes",
	Long: `Watches the mood board file and re-runs the full pipeline on every save.
Stop with Ctrl-C.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		moodBoard, err := filepath.Abs(args[0])
		if err != nil {
			return err
		}
		if _, err := os.Stat(moodBoard); err != nil {
			return fmt.Errorf("mood board not found: %w", err)
		}

		client, err := newGeminiClient(cmd)
		if err != nil {
			return err
		}
		ix, err := catalog.Open(cfg.Paths.IndexPath)
		if err != nil {
			return err
		}
		defer ix.Close()

		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			return fmt.Errorf("failed to create watcher: %w", err)
		}
		defer watcher.Close()

		// Watch the directory: editors replace files on save, which
		// drops a watch placed on the file itself.
		if err := watcher.Add(filepath.Dir(moodBoard)); err != nil {
			return fmt.Errorf("failed to watch %s: %w", filepath.Dir(moodBoard), err)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		runOnce := func() {
			runner := pipeline.NewRunner(logger,
				ideation.New(client, ix, moodBoard, cfg.Paths.OutputDir),
				assets.New(client, client, cfg.Paths.OutputDir, retryPolicy(cfg)),
			)
			if err := runner.Run(ctx, pipeline.NewState()); err != nil {
				logger.Error("pipeline run failed", zap.Error(err))
				fmt.Fprintf(os.Stderr, "Run failed: %v\n", err)
				return
			}
			fmt.Printf("Run complete. Output in %s/\n", cfg.Paths.OutputDir)
		}

		fmt.Printf("Watching %s (Ctrl-C to stop)\n", moodBoard)
		runOnce()

		var timer *time.Timer
		pending := make(chan struct{}, 1)
		for {
			select {
			case <-ctx.Done():
				return nil
			case event, ok := <-watcher.Events:
				if !ok {
					return nil
				}
				if event.Name != moodBoard {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				logger.Debug("mood board changed", zap.String("op", event.Op.String()))
				if timer != nil {
					timer.Stop()
				}
				timer = time.AfterFunc(watchDebounce, func() {
					select {
					case pending <- struct{}{}:
					default:
					}
				})
			case err, ok := <-watcher.Errors:
				if !ok {
					return nil
				}
				logger.Warn("watch error", zap.Error(err))
			case <-pending:
				runOnce()
			}
		}
	},
}
