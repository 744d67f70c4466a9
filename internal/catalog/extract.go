package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
)

// Scraped page shapes. Only the fields the extractor touches are declared;
// the scraper dumps far more.

type productFile struct {
	URL            string `json:"url"`
	Content        struct {
		Name string `json:"name"`
		SKU  string `json:"sku"`
	} `json:"content"`
	StructuredData struct {
		JSONLD []jsonLD `json:"jsonLd"`
	} `json:"structuredData"`
}

type jsonLD struct {
	Graph []graphNode `json:"@graph"`
}

type graphNode struct {
	Type            string     `json:"@type"`
	Name            string     `json:"name"`
	Description     string     `json:"description"`
	URL             string     `json:"url"`
	HasVariant      []variant  `json:"hasVariant"`
	ItemListElement []listItem `json:"itemListElement"`
}

type listItem struct {
	Item graphNode `json:"item"`
}

type variant struct {
	Name   string    `json:"name"`
	SKU    string    `json:"sku"`
	Color  string    `json:"color"`
	Image  string    `json:"image"`
	Offers offerInfo `json:"offers"`
}

type offerInfo struct {
	URL   string     `json:"url"`
	Price *flexPrice `json:"price"`
}

// flexPrice tolerates JSON-LD prices encoded as either a number or a string.
type flexPrice float64

func (p *flexPrice) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("unparseable price %s: %w", data, err)
	}
	*p = flexPrice(f)
	return nil
}

var (
	skuFromURLRe  = regexp.MustCompile(`(?i)-([A-Z0-9]{5,})$`)
	priceInTextRe = regexp.MustCompile(`\$(\d+(?:\.\d{2})?)`)
	skuFromFileRe = regexp.MustCompile(`(?i)-([A-Z0-9]{5,})\.json$`)
)

// categoryFromURL infers shoes/apparel/accessories from the product URL path.
func categoryFromURL(url string) string {
	lower := strings.ToLower(url)
	switch {
	case strings.Contains(lower, "shoes"):
		return "shoes"
	case strings.Contains(lower, "apparel"):
		return "apparel"
	case strings.Contains(lower, "accessories"):
		return "accessories"
	}
	return "other"
}

// ExtractProducts parses one scraped product page and flattens its JSON-LD
// product groups into variants. Pages without structured data fall back to
// the page content fields, recovering the SKU from the URL tail and the
// price from the scraped sku text.
func ExtractProducts(path string) ([]Product, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read product file: %w", err)
	}

	var pf productFile
	if err := json.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("failed to parse product file %s: %w", path, err)
	}

	var products []Product
	for _, ld := range pf.StructuredData.JSONLD {
		for _, node := range ld.Graph {
			var groups []graphNode
			switch node.Type {
			case "ProductGroup":
				groups = append(groups, node)
			case "ItemList":
				for _, li := range node.ItemListElement {
					if li.Item.Type == "ProductGroup" {
						groups = append(groups, li.Item)
					}
				}
			}

			for _, group := range groups {
				for _, v := range group.HasVariant {
					if v.SKU == "" {
						continue
					}
					productURL := v.Offers.URL
					if productURL == "" {
						productURL = group.URL
					}
					products = append(products, Product{
						Name:         v.Name,
						SKU:          v.SKU,
						ProductGroup: group.Name,
						Description:  group.Description,
						Color:        v.Color,
						Price:        (*float64)(v.Offers.Price),
						ImageURL:     v.Image,
						ProductURL:   productURL,
						Category:     categoryFromURL(productURL),
					})
				}
			}
		}
	}

	if len(products) == 0 {
		if p, ok := fallbackProduct(&pf); ok {
			products = append(products, p)
		}
	}
	return products, nil
}

// fallbackProduct recovers a single product from an unstructured page.
// "Shop all" landing pages are skipped.
func fallbackProduct(pf *productFile) (Product, bool) {
	name := pf.Content.Name
	if name == "" || name == "Shop all" {
		return Product{}, false
	}
	tail := pf.URL
	if i := strings.LastIndex(strings.TrimRight(tail, "/"), "/"); i >= 0 {
		tail = strings.TrimRight(tail, "/")[i+1:]
	}
	m := skuFromURLRe.FindStringSubmatch(tail)
	if m == nil {
		return Product{}, false
	}

	var price *float64
	if pm := priceInTextRe.FindStringSubmatch(pf.Content.SKU); pm != nil {
		if f, err := strconv.ParseFloat(pm[1], 64); err == nil {
			price = &f
		}
	}

	return Product{
		Name:       name,
		SKU:        m[1],
		Price:      price,
		ProductURL: pf.URL,
		Category:   categoryFromURL(pf.URL),
	}, true
}

// SKUFromFilename extracts the SKU embedded in a scraped product filename
// (products-...-SKU.json), used as a last resort for the sku index.
func SKUFromFilename(filename string) string {
	m := skuFromFileRe.FindStringSubmatch(filename)
	if m == nil {
		return ""
	}
	return m[1]
}

type collectionFile struct {
	URL      string `json:"url"`
	Metadata struct {
		Title       string            `json:"title"`
		Description string            `json:"description"`
		OpenGraph   map[string]string `json:"openGraph"`
	} `json:"metadata"`
	Content struct {
		Title string `json:"title"`
	} `json:"content"`
}

// ExtractCollection parses one scraped collection page.
func ExtractCollection(path string) (*Collection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read collection file: %w", err)
	}

	var cf collectionFile
	if err := json.Unmarshal(data, &cf); err != nil {
		return nil, fmt.Errorf("failed to parse collection file %s: %w", path, err)
	}

	og := cf.Metadata.OpenGraph
	title := cf.Content.Title
	if title == "" {
		title = og["og:title"]
	}
	if title == "" {
		title = cf.Metadata.Title
	}
	description := og["og:description"]
	if description == "" {
		description = cf.Metadata.Description
	}

	return &Collection{
		Name:        title,
		Description: description,
		URL:         cf.URL,
		ImageURL:    og["og:image"],
	}, nil
}
