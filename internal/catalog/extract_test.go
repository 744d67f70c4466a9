package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

const productGroupPage = `{
	"url": "https://www.example.com/en-us/shop/shoes/cloud-6",
	"content": {"name": "Cloud 6", "sku": ""},
	"structuredData": {"jsonLd": [{
		"@graph": [{
			"@type": "ProductGroup",
			"name": "Cloud 6",
			"description": "Everyday cushioned running shoe.",
			"url": "https://www.example.com/en-us/shop/shoes/cloud-6",
			"hasVariant": [
				{
					"name": "Cloud 6 Black",
					"sku": "3ME10120485",
					"color": "Black",
					"image": "https://img.example.com/cloud6-black.png",
					"offers": {"url": "https://www.example.com/en-us/shop/shoes/cloud-6-black", "price": "169.99"}
				},
				{
					"name": "Cloud 6 White",
					"sku": "3ME10120486",
					"color": "White",
					"image": "https://img.example.com/cloud6-white.png",
					"offers": {"url": "", "price": 159.99}
				},
				{"name": "No SKU", "sku": "", "color": "Gray"}
			]
		}]
	}]}
}`

func TestExtractProductsFromProductGroup(t *testing.T) {
	path := writeFile(t, t.TempDir(), "products-cloud-6.json", productGroupPage)

	products, err := ExtractProducts(path)
	require.NoError(t, err)
	require.Len(t, products, 2, "variant without SKU is skipped")

	blackPrice := 169.99
	want := Product{
		Name:         "Cloud 6 Black",
		SKU:          "3ME10120485",
		ProductGroup: "Cloud 6",
		Description:  "Everyday cushioned running shoe.",
		Color:        "Black",
		Price:        &blackPrice,
		ImageURL:     "https://img.example.com/cloud6-black.png",
		ProductURL:   "https://www.example.com/en-us/shop/shoes/cloud-6-black",
		Category:     "shoes",
	}
	if diff := cmp.Diff(want, products[0]); diff != "" {
		t.Errorf("extracted product mismatch (-want +got):\n%s", diff)
	}

	// Numeric price and group URL fallback for the offer URL.
	white := products[1]
	require.NotNil(t, white.Price)
	assert.Equal(t, 159.99, *white.Price)
	assert.Equal(t, "https://www.example.com/en-us/shop/shoes/cloud-6", white.ProductURL)
}

func TestExtractProductsFromItemList(t *testing.T) {
	page := `{
		"url": "https://www.example.com/en-us/shop/apparel/running-tee",
		"structuredData": {"jsonLd": [{
			"@graph": [{
				"@type": "ItemList",
				"itemListElement": [{
					"item": {
						"@type": "ProductGroup",
						"name": "Running Tee",
						"url": "https://www.example.com/en-us/shop/apparel/running-tee",
						"hasVariant": [{"name": "Running Tee Navy", "sku": "1MD30440598", "color": "Navy"}]
					}
				}]
			}]
		}]}
	}`
	path := writeFile(t, t.TempDir(), "products-running-tee.json", page)

	products, err := ExtractProducts(path)
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "1MD30440598", products[0].SKU)
	assert.Equal(t, "Running Tee", products[0].ProductGroup)
	assert.Equal(t, "apparel", products[0].Category)
	assert.Nil(t, products[0].Price)
}

func TestExtractProductsFallback(t *testing.T) {
	page := `{
		"url": "https://www.example.com/en-us/shop/accessories/cap-3AD10042001",
		"content": {"name": "Lightweight Cap", "sku": "Price: $39.99 incl. tax"},
		"structuredData": {"jsonLd": []}
	}`
	path := writeFile(t, t.TempDir(), "products-cap-3AD10042001.json", page)

	products, err := ExtractProducts(path)
	require.NoError(t, err)
	require.Len(t, products, 1)

	p := products[0]
	assert.Equal(t, "Lightweight Cap", p.Name)
	assert.Equal(t, "3AD10042001", p.SKU)
	require.NotNil(t, p.Price)
	assert.Equal(t, 39.99, *p.Price)
	assert.Equal(t, "accessories", p.Category)
}

func TestExtractProductsSkipsShopAll(t *testing.T) {
	page := `{
		"url": "https://www.example.com/en-us/shop/shop-all-ABCDE",
		"content": {"name": "Shop all", "sku": ""},
		"structuredData": {"jsonLd": []}
	}`
	path := writeFile(t, t.TempDir(), "products-shop-all.json", page)

	products, err := ExtractProducts(path)
	require.NoError(t, err)
	assert.Empty(t, products)
}

func TestExtractProductsBadJSON(t *testing.T) {
	path := writeFile(t, t.TempDir(), "broken.json", "{not json")
	_, err := ExtractProducts(path)
	assert.Error(t, err)
}

func TestCategoryFromURL(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://x.com/en-us/shop/shoes/cloud-6", "shoes"},
		{"https://x.com/en-us/shop/SHOES/cloud-6", "shoes"},
		{"https://x.com/en-us/shop/apparel/tee", "apparel"},
		{"https://x.com/en-us/shop/accessories/cap", "accessories"},
		{"https://x.com/en-us/something-else", "other"},
		{"", "other"},
	}
	for _, tt := range tests {
		if got := categoryFromURL(tt.url); got != tt.want {
			t.Errorf("categoryFromURL(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}

func TestSKUFromFilename(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"products-cloud-6-3ME10120485.json", "3ME10120485"},
		{"products-cap-3ad10042001.json", "3ad10042001"},
		{"products-cloud-6.json", ""},
		{"products-x-AB12.json", ""},
		{"notjson-3ME10120485.txt", ""},
	}
	for _, tt := range tests {
		if got := SKUFromFilename(tt.name); got != tt.want {
			t.Errorf("SKUFromFilename(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestExtractCollection(t *testing.T) {
	page := `{
		"url": "https://www.example.com/en-us/shop/collections/road-running",
		"metadata": {
			"title": "Road Running | Example",
			"description": "Meta description",
			"openGraph": {
				"og:title": "Road Running Collection",
				"og:description": "Shoes and apparel built for the road.",
				"og:image": "https://img.example.com/road.png"
			}
		},
		"content": {"title": "Road Running"}
	}`
	path := writeFile(t, t.TempDir(), "collections-road-running.json", page)

	c, err := ExtractCollection(path)
	require.NoError(t, err)
	assert.Equal(t, "Road Running", c.Name)
	assert.Equal(t, "Shoes and apparel built for the road.", c.Description)
	assert.Equal(t, "https://www.example.com/en-us/shop/collections/road-running", c.URL)
	assert.Equal(t, "https://img.example.com/road.png", c.ImageURL)
}

func TestExtractCollectionTitleFallbacks(t *testing.T) {
	page := `{
		"url": "https://www.example.com/en-us/shop/collections/trail",
		"metadata": {"title": "Trail | Example", "description": "Meta only"},
		"content": {"title": ""}
	}`
	path := writeFile(t, t.TempDir(), "collections-trail.json", page)

	c, err := ExtractCollection(path)
	require.NoError(t, err)
	assert.Equal(t, "Trail | Example", c.Name)
	assert.Equal(t, "Meta only", c.Description)
	assert.Empty(t, c.ImageURL)
}
