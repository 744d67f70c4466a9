package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"postforge/internal/catalog"
)

// indexCmd builds the catalog index from scraped product data.
var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Build the product catalog index from scraped data",
	Long: `Parses every scraped product page under data/products/ and collection page
under data/collections/, flattening their JSON-LD structured data into the
SQLite catalog index that search and ideation run against.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ix, err := catalog.Open(cfg.Paths.IndexPath)
		if err != nil {
			return err
		}
		defer ix.Close()

		stats, err := ix.Build(cmd.Context(), cfg.Paths.ProductsDir, cfg.Paths.CollectionsDir)
		if err != nil {
			return err
		}

		logger.Info("index built",
			zap.Int("product_files", stats.ProductFiles),
			zap.Int("products", stats.Products),
			zap.Int("collections", stats.Collections),
			zap.Int("skus", stats.SKUs))
		fmt.Printf("Indexed %d products and %d collections (%d SKUs) from %d files into %s\n",
			stats.Products, stats.Collections, stats.SKUs, stats.ProductFiles, ix.Path())
		return nil
	},
}

var searchJSON bool

// searchCmd runs a catalog search from the terminal.
var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search the product catalog",
	Long: `Runs the same keyword search ideation uses: every keyword must appear in a
product's name, group, description, color, or category. When nothing
matches, related collection pages are shown instead.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ix, err := catalog.Open(cfg.Paths.IndexPath)
		if err != nil {
			return err
		}
		defer ix.Close()

		query := ""
		for i, a := range args {
			if i > 0 {
				query += " "
			}
			query += a
		}

		result, err := ix.Search(cmd.Context(), query)
		if err != nil {
			return err
		}

		if searchJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		}

		fmt.Printf("%d match(es) for %q\n", result.MatchCount, result.Query)
		for _, p := range result.Products {
			price := "-"
			if p.Price != nil {
				price = fmt.Sprintf("$%.2f", *p.Price)
			}
			fmt.Printf("  %-14s %-40s %-20s %s\n", p.SKU, p.Name, p.Color, price)
		}
		for _, c := range result.RelatedCollections {
			fmt.Printf("  [collection] %s - %s\n", c.Name, c.URL)
		}
		return nil
	},
}

func init() {
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "Print the raw search result JSON")
}
