package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"postforge/internal/assets"
	"postforge/internal/catalog"
	"postforge/internal/config"
	"postforge/internal/gemini"
	"postforge/internal/ideation"
	"postforge/internal/pipeline"
	"postforge/internal/retry"
)

// runCmd executes the full pipeline: ideation then asset generation.
var runCmd = &cobra.Command{
	Use:   "run [mood_board.md]",
	Short: "Run the full pipeline: ideation then image generation",
	Long: `Reads the mood board, searches the product catalog, generates post ideas,
and renders one image per idea variation. Requires GEMINI_API_KEY and a
built catalog index (see "postforge index").`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newGeminiClient(cmd)
		if err != nil {
			return err
		}
		ix, err := catalog.Open(cfg.Paths.IndexPath)
		if err != nil {
			return err
		}
		defer ix.Close()

		runner := pipeline.NewRunner(logger,
			ideation.New(client, ix, args[0], cfg.Paths.OutputDir),
			assets.New(client, client, cfg.Paths.OutputDir, retryPolicy(cfg)),
		)
		logger.Info("running pipeline", zap.String("mood_board", args[0]))
		if err := runner.Run(cmd.Context(), pipeline.NewState()); err != nil {
			return err
		}
		fmt.Printf("Pipeline complete. Output in %s/\n", cfg.Paths.OutputDir)
		return nil
	},
}

// ideateCmd runs the ideation stage only.
var ideateCmd = &cobra.Command{
	Use:   "ideate [mood_board.md]",
	Short: "Generate post ideas only (writes output/ideas.json)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newGeminiClient(cmd)
		if err != nil {
			return err
		}
		ix, err := catalog.Open(cfg.Paths.IndexPath)
		if err != nil {
			return err
		}
		defer ix.Close()

		runner := pipeline.NewRunner(logger,
			ideation.New(client, ix, args[0], cfg.Paths.OutputDir),
		)
		if err := runner.Run(cmd.Context(), pipeline.NewState()); err != nil {
			return err
		}
		fmt.Printf("Ideas written to %s/ideas.json\n", cfg.Paths.OutputDir)
		return nil
	},
}

// assetsCmd runs the asset stage against a previously written ideas.json.
var assetsCmd = &cobra.Command{
	Use:   "assets",
	Short: "Generate images for previously generated ideas",
	Long: `Loads ideas from <output>/ideas.json (written by "run" or "ideate") and
generates one image per idea variation with retry on failure.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newGeminiClient(cmd)
		if err != nil {
			return err
		}

		runner := pipeline.NewRunner(logger,
			assets.New(client, client, cfg.Paths.OutputDir, retryPolicy(cfg)),
		)
		if err := runner.Run(cmd.Context(), pipeline.NewState()); err != nil {
			return err
		}
		fmt.Printf("Assets written to %s/\n", cfg.Paths.OutputDir)
		return nil
	},
}

func newGeminiClient(cmd *cobra.Command) (*gemini.Client, error) {
	timeout, err := cfg.LLMTimeout()
	if err != nil {
		return nil, err
	}
	return gemini.NewClient(cmd.Context(), gemini.Config{
		APIKey:     cfg.LLM.APIKey,
		TextModel:  cfg.LLM.TextModel,
		ImageModel: cfg.LLM.ImageModel,
		Timeout:    timeout,
	})
}

func retryPolicy(c *config.Config) retry.Policy {
	base, _ := c.RetryBaseDelay()
	max, _ := c.RetryMaxDelay()
	return retry.Policy{
		MaxAttempts: c.Retry.MaxAttempts,
		BaseDelay:   base,
		MaxDelay:    max,
		Multiplier:  c.Retry.Multiplier,
		Jitter:      c.Retry.Jitter,
	}
}
