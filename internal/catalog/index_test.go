package catalog

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// productPage renders a minimal scraped product page with one variant.
func productPage(groupName, desc, sku, color, url string, price float64) string {
	return fmt.Sprintf(`{
		"url": %q,
		"structuredData": {"jsonLd": [{
			"@graph": [{
				"@type": "ProductGroup",
				"name": %q,
				"description": %q,
				"url": %q,
				"hasVariant": [{
					"name": %q,
					"sku": %q,
					"color": %q,
					"image": "https://img.example.com/p.png",
					"offers": {"url": %q, "price": %.2f}
				}]
			}]
		}]}
	}`, url, groupName, desc, url, groupName+" "+color, sku, color, url, price)
}

func collectionPage(title, desc, url string) string {
	return fmt.Sprintf(`{
		"url": %q,
		"metadata": {"openGraph": {"og:title": %q, "og:description": %q}},
		"content": {"title": %q}
	}`, url, title, desc, title)
}

// newTestIndex builds an index from synthetic scraped pages and returns it.
func newTestIndex(t *testing.T) *Index {
	t.Helper()
	root := t.TempDir()
	productsDir := filepath.Join(root, "products")
	collectionsDir := filepath.Join(root, "collections")
	require.NoError(t, os.MkdirAll(productsDir, 0755))
	require.NoError(t, os.MkdirAll(collectionsDir, 0755))

	writeFile(t, productsDir, "products-cloud-6-3ME10120485.json",
		productPage("Cloud 6", "Everyday cushioned road running shoe.", "3ME10120485", "Black",
			"https://www.example.com/en-us/shop/shoes/cloud-6", 169.99))
	writeFile(t, productsDir, "products-cloudmonster-3ME10141234.json",
		productPage("Cloudmonster", "Maximum cushioning for long road miles.", "3ME10141234", "White",
			"https://www.example.com/en-us/shop/shoes/cloudmonster", 179.99))
	writeFile(t, productsDir, "products-running-tee-1MD30440598.json",
		productPage("Performance Tee", "Lightweight breathable running tee.", "1MD30440598", "Navy",
			"https://www.example.com/en-us/shop/apparel/performance-tee", 59.99))

	writeFile(t, collectionsDir, "collections-road-running.json",
		collectionPage("Road Running", "Gear built for the road.",
			"https://www.example.com/en-us/shop/collections/road-running"))
	writeFile(t, collectionsDir, "collections-hiking.json",
		collectionPage("Hiking", "Trail-ready footwear and layers.",
			"https://www.example.com/en-us/shop/collections/hiking"))

	ix, err := Open(filepath.Join(root, "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { ix.Close() })

	stats, err := ix.Build(context.Background(), productsDir, collectionsDir)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.ProductFiles)
	assert.Equal(t, 3, stats.Products)
	assert.Equal(t, 2, stats.Collections)
	assert.Equal(t, 3, stats.SKUs)
	return ix
}

func TestBuildAndLoad(t *testing.T) {
	ix := newTestIndex(t)
	ctx := context.Background()

	products, err := ix.Products(ctx)
	require.NoError(t, err)
	require.Len(t, products, 3)

	// Loaded ordered by SKU.
	assert.Equal(t, "1MD30440598", products[0].SKU)
	assert.Equal(t, "apparel", products[0].Category)
	require.NotNil(t, products[0].Price)
	assert.Equal(t, 59.99, *products[0].Price)

	collections, err := ix.Collections(ctx)
	require.NoError(t, err)
	assert.Len(t, collections, 2)
}

func TestBuildDeduplicatesSKUs(t *testing.T) {
	root := t.TempDir()
	productsDir := filepath.Join(root, "products")
	require.NoError(t, os.MkdirAll(productsDir, 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "collections"), 0755))

	// Same SKU in two files; the lexicographically first file wins.
	writeFile(t, productsDir, "products-a.json",
		productPage("First Listing", "desc", "3ME10120485", "Black",
			"https://www.example.com/en-us/shop/shoes/a", 100))
	writeFile(t, productsDir, "products-b.json",
		productPage("Second Listing", "desc", "3ME10120485", "Black",
			"https://www.example.com/en-us/shop/shoes/b", 200))

	ix, err := Open(filepath.Join(root, "catalog.db"))
	require.NoError(t, err)
	defer ix.Close()

	stats, err := ix.Build(context.Background(), productsDir, filepath.Join(root, "collections"))
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Products)

	products, err := ix.Products(context.Background())
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "First Listing Black", products[0].Name)
}

func TestBuildInvalidatesCache(t *testing.T) {
	root := t.TempDir()
	productsDir := filepath.Join(root, "products")
	collectionsDir := filepath.Join(root, "collections")
	require.NoError(t, os.MkdirAll(productsDir, 0755))
	require.NoError(t, os.MkdirAll(collectionsDir, 0755))

	ix, err := Open(filepath.Join(root, "catalog.db"))
	require.NoError(t, err)
	defer ix.Close()

	_, err = ix.Build(context.Background(), productsDir, collectionsDir)
	require.NoError(t, err)
	products, err := ix.Products(context.Background())
	require.NoError(t, err)
	assert.Empty(t, products)

	writeFile(t, productsDir, "products-new-3ME10120485.json",
		productPage("New Shoe", "desc", "3ME10120485", "Black",
			"https://www.example.com/en-us/shop/shoes/new", 150))
	_, err = ix.Build(context.Background(), productsDir, collectionsDir)
	require.NoError(t, err)

	products, err = ix.Products(context.Background())
	require.NoError(t, err)
	assert.Len(t, products, 1, "rebuild must refresh the cached product list")
}

func TestSourceForSKU(t *testing.T) {
	ix := newTestIndex(t)
	ctx := context.Background()

	source, err := ix.SourceForSKU(ctx, "3ME10120485")
	require.NoError(t, err)
	assert.Contains(t, source, "products-cloud-6-3ME10120485.json")

	_, err = ix.SourceForSKU(ctx, "UNKNOWN99")
	assert.Error(t, err)
}

func TestSKUIndexFromFilenameWhenNoVariants(t *testing.T) {
	root := t.TempDir()
	productsDir := filepath.Join(root, "products")
	require.NoError(t, os.MkdirAll(productsDir, 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "collections"), 0755))

	// No structured data, no usable content: product extraction yields
	// nothing, but the filename still carries a SKU.
	writeFile(t, productsDir, "products-mystery-9ZZ99999999.json",
		`{"url": "https://www.example.com/en-us/shop", "content": {"name": ""}, "structuredData": {"jsonLd": []}}`)

	ix, err := Open(filepath.Join(root, "catalog.db"))
	require.NoError(t, err)
	defer ix.Close()

	stats, err := ix.Build(context.Background(), productsDir, filepath.Join(root, "collections"))
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Products)
	assert.Equal(t, 1, stats.SKUs)

	source, err := ix.SourceForSKU(context.Background(), "9ZZ99999999")
	require.NoError(t, err)
	assert.Contains(t, source, "products-mystery-9ZZ99999999.json")
}
