// Package catalog indexes and searches scraped On product data. Product
// pages live as JSON files under data/products/ (one scraped page per
// file, with schema.org JSON-LD embedded); collection pages live under
// data/collections/. The index command flattens them into a SQLite
// database that search queries run against.
package catalog

// Product is one sellable variant flattened out of a scraped product page.
type Product struct {
	Name         string   `json:"name"`
	SKU          string   `json:"sku"`
	ProductGroup string   `json:"product_group"`
	Description  string   `json:"description"`
	Color        string   `json:"color"`
	Price        *float64 `json:"price"`
	ImageURL     string   `json:"image_url"`
	ProductURL   string   `json:"product_url"`
	Category     string   `json:"category"`
}

// Collection is a scraped collection/landing page, used as search fallback
// context when no product matches a query.
type Collection struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	URL         string `json:"url"`
	ImageURL    string `json:"image_url"`
}

// SearchResult is the JSON payload a catalog search produces.
type SearchResult struct {
	Query              string       `json:"query"`
	MatchCount         int          `json:"match_count"`
	Products           []Product    `json:"products"`
	RelatedCollections []Collection `json:"related_collections,omitempty"`
}

// BuildStats summarizes an index build.
type BuildStats struct {
	ProductFiles    int
	CollectionFiles int
	Products        int
	Collections     int
	SKUs            int
}
