package storekit

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

//go:embed defaults/catalog.yaml
var defaultCatalogYAML []byte

// catalogFile is the on-disk shape of the catalog.
// Prices are strings so they never pass through float64.
type catalogFile struct {
	Products []struct {
		ProductIdentifier string `yaml:"product_identifier"`
		Title             string `yaml:"title"`
		Description       string `yaml:"description"`
		Price             string `yaml:"price"`
		PriceLocale       string `yaml:"price_locale"`
		CurrencyCode      string `yaml:"currency_code"`
	} `yaml:"products"`
}

// Catalog is a static, YAML-defined product catalog.
type Catalog struct {
	order []string
	byID  map[string]Product
}

// NewCatalog builds a catalog from already-parsed products.
// Later duplicates replace earlier ones.
func NewCatalog(products ...Product) *Catalog {
	c := &Catalog{byID: make(map[string]Product, len(products))}
	for _, p := range products {
		if _, dup := c.byID[p.ProductIdentifier]; !dup {
			c.order = append(c.order, p.ProductIdentifier)
		}
		c.byID[p.ProductIdentifier] = p
	}
	return c
}

// ParseCatalog decodes catalog YAML.
func ParseCatalog(data []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("storekit: cannot parse catalog: %w", err)
	}

	products := make([]Product, 0, len(f.Products))
	for _, raw := range f.Products {
		if raw.ProductIdentifier == "" {
			return nil, fmt.Errorf("storekit: catalog entry without product_identifier")
		}
		price, err := decimal.NewFromString(raw.Price)
		if err != nil {
			return nil, fmt.Errorf("storekit: product %s has invalid price %q: %w", raw.ProductIdentifier, raw.Price, err)
		}
		if price.IsNegative() {
			return nil, fmt.Errorf("storekit: product %s has negative price", raw.ProductIdentifier)
		}
		products = append(products, Product{
			ProductIdentifier:    raw.ProductIdentifier,
			LocalizedTitle:       raw.Title,
			LocalizedDescription: raw.Description,
			Price:                price,
			PriceLocale:          raw.PriceLocale,
			CurrencyCode:         raw.CurrencyCode,
		})
	}
	return NewCatalog(products...), nil
}

// LoadCatalog loads the product catalog.
// Search order: customPath -> ~/.arcade/configs/catalog.yaml -> ./configs/catalog.yaml -> embedded default
func LoadCatalog(customPath string) (*Catalog, error) {
	if customPath != "" {
		data, err := os.ReadFile(customPath)
		if err != nil {
			return nil, fmt.Errorf("storekit: failed to read catalog %s: %w", customPath, err)
		}
		return ParseCatalog(data)
	}

	if home, err := os.UserHomeDir(); err == nil {
		if data, err := os.ReadFile(filepath.Join(home, ".arcade", "configs", "catalog.yaml")); err == nil {
			if c, err := ParseCatalog(data); err == nil {
				return c, nil
			}
		}
	}

	if data, err := os.ReadFile("configs/catalog.yaml"); err == nil {
		if c, err := ParseCatalog(data); err == nil {
			return c, nil
		}
	}

	return ParseCatalog(defaultCatalogYAML)
}

// FetchProducts returns the products matching ids, in request order.
func (c *Catalog) FetchProducts(ctx context.Context, ids []string) (ProductsResponse, error) {
	if err := ctx.Err(); err != nil {
		return ProductsResponse{}, err
	}

	var resp ProductsResponse
	for _, id := range ids {
		if p, ok := c.byID[id]; ok {
			resp.Products = append(resp.Products, p)
		} else {
			resp.InvalidProductIdentifiers = append(resp.InvalidProductIdentifiers, id)
		}
	}
	return resp, nil
}

// Product looks up a single product.
func (c *Catalog) Product(id string) (Product, bool) {
	p, ok := c.byID[id]
	return p, ok
}

// Products lists every product in file order.
func (c *Catalog) Products() []Product {
	out := make([]Product, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.byID[id])
	}
	return out
}
