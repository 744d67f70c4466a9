package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"
	_ "modernc.org/sqlite"

	"postforge/internal/logging"
)

// Index is the SQLite-backed product catalog index. Reads are served from
// an in-memory cache loaded on first use; Build repopulates the database
// and invalidates the cache.
type Index struct {
	db   *sql.DB
	mu   sync.RWMutex
	path string

	products    []Product
	collections []Collection
	loaded      bool
}

// Open opens (or creates) the index database at path.
func Open(path string) (*Index, error) {
	timer := logging.StartTimer(logging.CategoryCatalog, "catalog.Open")
	defer timer.Stop()

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create index directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open index database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logging.Get(logging.CategoryCatalog).Warn("failed to set busy_timeout: %v", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		logging.Get(logging.CategoryCatalog).Warn("failed to set journal_mode=WAL: %v", err)
	}

	ix := &Index{db: db, path: path}
	if err := ix.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return ix, nil
}

func (ix *Index) initialize() error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS products (
			sku           TEXT PRIMARY KEY,
			name          TEXT NOT NULL,
			product_group TEXT NOT NULL DEFAULT '',
			description   TEXT NOT NULL DEFAULT '',
			color         TEXT NOT NULL DEFAULT '',
			price         REAL,
			image_url     TEXT NOT NULL DEFAULT '',
			product_url   TEXT NOT NULL DEFAULT '',
			category      TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS collections (
			url         TEXT PRIMARY KEY,
			name        TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			image_url   TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS sku_index (
			sku         TEXT PRIMARY KEY,
			source_file TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_products_category ON products(category)`,
	}
	for _, stmt := range schema {
		if _, err := ix.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to initialize index schema: %w", err)
		}
	}
	return nil
}

// Close closes the underlying database.
func (ix *Index) Close() error {
	return ix.db.Close()
}

// Path returns the database file path.
func (ix *Index) Path() string {
	return ix.path
}

type extractedFile struct {
	path     string
	products []Product
}

// Build parses every scraped page under productsDir and collectionsDir and
// rewrites the index. Files are parsed in parallel; inserts happen in a
// single transaction. Duplicate SKUs keep the entry from the
// lexicographically first file.
func (ix *Index) Build(ctx context.Context, productsDir, collectionsDir string) (BuildStats, error) {
	timer := logging.StartTimer(logging.CategoryCatalog, "catalog.Build")
	defer timer.Stop()

	var stats BuildStats

	productPaths, err := filepath.Glob(filepath.Join(productsDir, "*.json"))
	if err != nil {
		return stats, fmt.Errorf("failed to list product files: %w", err)
	}
	sort.Strings(productPaths)
	stats.ProductFiles = len(productPaths)
	logging.Catalog("Building index from %d product files", len(productPaths))

	extracted := make([]extractedFile, len(productPaths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i, path := range productPaths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			products, err := ExtractProducts(path)
			if err != nil {
				return err
			}
			extracted[i] = extractedFile{path: path, products: products}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return stats, fmt.Errorf("product extraction failed: %w", err)
	}

	var collections []Collection
	collectionPaths, err := filepath.Glob(filepath.Join(collectionsDir, "*.json"))
	if err != nil {
		return stats, fmt.Errorf("failed to list collection files: %w", err)
	}
	sort.Strings(collectionPaths)
	stats.CollectionFiles = len(collectionPaths)
	for _, path := range collectionPaths {
		c, err := ExtractCollection(path)
		if err != nil {
			logging.Get(logging.CategoryCatalog).Warn("skipping collection %s: %v", path, err)
			continue
		}
		collections = append(collections, *c)
	}

	tx, err := ix.db.BeginTx(ctx, nil)
	if err != nil {
		return stats, fmt.Errorf("failed to begin index transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"products", "collections", "sku_index"} {
		if _, err := tx.Exec("DELETE FROM " + table); err != nil {
			return stats, fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	seen := make(map[string]bool)
	for _, ef := range extracted {
		skus := make(map[string]bool)
		for _, p := range ef.products {
			skus[p.SKU] = true
			if seen[p.SKU] {
				continue
			}
			seen[p.SKU] = true
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO products (sku, name, product_group, description, color, price, image_url, product_url, category)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				p.SKU, p.Name, p.ProductGroup, p.Description, p.Color, nullableFloat(p.Price), p.ImageURL, p.ProductURL, p.Category,
			); err != nil {
				return stats, fmt.Errorf("failed to insert product %s: %w", p.SKU, err)
			}
			stats.Products++
		}

		// Pages with no extractable variants still get a sku_index entry
		// when the filename carries a SKU.
		if len(skus) == 0 {
			if sku := SKUFromFilename(filepath.Base(ef.path)); sku != "" {
				skus[sku] = true
			}
		}
		for sku := range skus {
			if _, err := tx.ExecContext(ctx,
				`INSERT OR IGNORE INTO sku_index (sku, source_file) VALUES (?, ?)`,
				sku, ef.path,
			); err != nil {
				return stats, fmt.Errorf("failed to insert sku index entry %s: %w", sku, err)
			}
		}
	}

	for _, c := range collections {
		if c.URL == "" && c.Name == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO collections (url, name, description, image_url) VALUES (?, ?, ?, ?)`,
			c.URL, c.Name, c.Description, c.ImageURL,
		); err != nil {
			return stats, fmt.Errorf("failed to insert collection %s: %w", c.URL, err)
		}
		stats.Collections++
	}

	if err := tx.Commit(); err != nil {
		return stats, fmt.Errorf("failed to commit index: %w", err)
	}

	var skuCount int
	if err := ix.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sku_index`).Scan(&skuCount); err == nil {
		stats.SKUs = skuCount
	}

	ix.mu.Lock()
	ix.loaded = false
	ix.products = nil
	ix.collections = nil
	ix.mu.Unlock()

	logging.Catalog("Indexed %d products, %d collections, %d SKUs", stats.Products, stats.Collections, stats.SKUs)
	return stats, nil
}

func nullableFloat(f *float64) interface{} {
	if f == nil {
		return nil
	}
	return *f
}

// Products returns all indexed products, loading the cache on first use.
func (ix *Index) Products(ctx context.Context) ([]Product, error) {
	if err := ix.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.products, nil
}

// Collections returns all indexed collections.
func (ix *Index) Collections(ctx context.Context) ([]Collection, error) {
	if err := ix.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.collections, nil
}

// SourceForSKU returns the scraped file a SKU was extracted from.
func (ix *Index) SourceForSKU(ctx context.Context, sku string) (string, error) {
	var source string
	err := ix.db.QueryRowContext(ctx, `SELECT source_file FROM sku_index WHERE sku = ?`, sku).Scan(&source)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("sku %s not in index", sku)
	}
	if err != nil {
		return "", fmt.Errorf("sku lookup failed: %w", err)
	}
	return source, nil
}

func (ix *Index) ensureLoaded(ctx context.Context) error {
	ix.mu.RLock()
	if ix.loaded {
		ix.mu.RUnlock()
		return nil
	}
	ix.mu.RUnlock()

	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.loaded {
		return nil
	}

	rows, err := ix.db.QueryContext(ctx,
		`SELECT sku, name, product_group, description, color, price, image_url, product_url, category
		 FROM products ORDER BY sku`)
	if err != nil {
		return fmt.Errorf("failed to load products: %w", err)
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		var p Product
		var price sql.NullFloat64
		if err := rows.Scan(&p.SKU, &p.Name, &p.ProductGroup, &p.Description, &p.Color, &price, &p.ImageURL, &p.ProductURL, &p.Category); err != nil {
			return fmt.Errorf("failed to scan product: %w", err)
		}
		if price.Valid {
			v := price.Float64
			p.Price = &v
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("product scan failed: %w", err)
	}

	crows, err := ix.db.QueryContext(ctx, `SELECT url, name, description, image_url FROM collections ORDER BY url`)
	if err != nil {
		return fmt.Errorf("failed to load collections: %w", err)
	}
	defer crows.Close()

	var collections []Collection
	for crows.Next() {
		var c Collection
		if err := crows.Scan(&c.URL, &c.Name, &c.Description, &c.ImageURL); err != nil {
			return fmt.Errorf("failed to scan collection: %w", err)
		}
		collections = append(collections, c)
	}
	if err := crows.Err(); err != nil {
		return fmt.Errorf("collection scan failed: %w", err)
	}

	ix.products = products
	ix.collections = collections
	ix.loaded = true
	logging.Catalog("Loaded %d products, %d collections from index", len(products), len(collections))
	return nil
}
