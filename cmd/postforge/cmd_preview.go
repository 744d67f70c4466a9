package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"
)

// previewCmd renders a mood board in the terminal before running the
// pipeline against it.
var previewCmd = &cobra.Command{
	Use:   "preview [mood_board.md]",
	Short: "Render a mood board markdown file in the terminal",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read mood board %s: %w", args[0], err)
		}

		renderer, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(100),
		)
		if err != nil {
			return fmt.Errorf("failed to create renderer: %w", err)
		}

		out, err := renderer.Render(string(data))
		if err != nil {
			return fmt.Errorf("failed to render mood board: %w", err)
		}
		fmt.Print(out)
		return nil
	},
}
