package catalog

import (
	"context"
	"strings"

	"postforge/internal/logging"
)

const (
	maxProductMatches    = 20
	maxCollectionMatches = 5
)

// Search runs a keyword query against the index. Every whitespace-separated
// keyword must appear (case-insensitive substring) in a product's combined
// name, group, description, color, and category text. At most 20 products
// are returned. When nothing matches, collection pages whose title or
// description contains the raw query are attached as related context.
func (ix *Index) Search(ctx context.Context, query string) (*SearchResult, error) {
	products, err := ix.Products(ctx)
	if err != nil {
		return nil, err
	}

	queryLower := strings.ToLower(query)
	keywords := strings.Fields(queryLower)

	matches := []Product{}
	for _, p := range products {
		searchable := strings.ToLower(strings.Join([]string{
			p.Name, p.ProductGroup, p.Description, p.Color, p.Category,
		}, " "))

		ok := true
		for _, kw := range keywords {
			if !strings.Contains(searchable, kw) {
				ok = false
				break
			}
		}
		if ok {
			matches = append(matches, p)
		}
		if len(matches) >= maxProductMatches {
			break
		}
	}

	result := &SearchResult{
		Query:      query,
		MatchCount: len(matches),
		Products:   matches,
	}

	if len(matches) == 0 {
		collections, err := ix.Collections(ctx)
		if err != nil {
			return nil, err
		}
		for _, c := range collections {
			if strings.Contains(strings.ToLower(c.Name), queryLower) ||
				strings.Contains(strings.ToLower(c.Description), queryLower) {
				result.RelatedCollections = append(result.RelatedCollections, c)
			}
			if len(result.RelatedCollections) >= maxCollectionMatches {
				break
			}
		}
	}

	logging.Catalog("Search %q: %d products, %d related collections",
		query, result.MatchCount, len(result.RelatedCollections))
	return result, nil
}
