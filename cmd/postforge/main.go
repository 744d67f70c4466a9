// postforge turns a mood board document into Instagram post concepts and
// matching images for the On catalog, driven by Gemini text and image
// models.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"postforge/internal/config"
	"postforge/internal/logging"
)

// Version is stamped by the build.
var Version = "0.3.0"

var (
	// Global flags
	cfgPath   string
	verbose   bool
	outputDir string

	// Logger
	logger *zap.Logger

	// Loaded configuration, available to all subcommands
	cfg *config.Config
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "postforge",
	Short: "postforge - mood board to Instagram assets pipeline",
	Long: `postforge is a content-generation pipeline for the On catalog.

It reads a mood board markdown file, searches the scraped product catalog
for matching products, generates Instagram post ideas with Gemini, and
renders one square image per idea variation with the Gemini image model,
retrying failed generations with exponential backoff.

Typical flow:
  postforge index                        # build the catalog index once
  postforge run mood_boards/spring.md    # ideation + images`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// .env is optional; real env vars win either way
		_ = godotenv.Load()

		zapCfg := zap.NewProductionConfig()
		if verbose {
			zapCfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zapCfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		cfg, err = config.Load(cfgPath)
		if err != nil {
			return err
		}
		if outputDir != "" {
			cfg.Paths.OutputDir = outputDir
		}

		if err := logging.Initialize(cfg.Logging.LogDir, cfg.Logging.DebugMode || verbose, cfg.Logging.Level); err != nil {
			return err
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.CloseAll()
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the postforge version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("postforge %s\n", Version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "postforge.yaml", "Path to config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&outputDir, "output", "o", "", "Override output directory")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(ideateCmd)
	rootCmd.AddCommand(assetsCmd)
	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(previewCmd)
	rootCmd.AddCommand(watchCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
