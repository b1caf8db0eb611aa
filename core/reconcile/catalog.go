package reconcile

import (
	"fmt"
	"sort"

	"github.com/spf13/viper"
)

// Catalog maps product identifiers to their kind.
type Catalog interface {
	Lookup(productID string) (ProductKind, bool)
	ProductIDs() []string
}

// Product is one catalog entry.
type Product struct {
	ID   string      `mapstructure:"id" json:"id"`
	Kind ProductKind `mapstructure:"kind" json:"kind"`
}

// StaticCatalog is an immutable Catalog.
type StaticCatalog struct {
	kinds map[string]ProductKind
	ids   []string
}

// NewCatalog validates products and builds a catalog.
func NewCatalog(products ...Product) (*StaticCatalog, error) {
	c := &StaticCatalog{kinds: make(map[string]ProductKind, len(products))}
	for _, p := range products {
		if p.ID == "" {
			return nil, fmt.Errorf("catalog entry with empty id")
		}
		if !p.Kind.Valid() {
			return nil, fmt.Errorf("product %s: invalid kind %q", p.ID, p.Kind)
		}
		if _, dup := c.kinds[p.ID]; dup {
			return nil, fmt.Errorf("product %s: duplicate catalog entry", p.ID)
		}
		c.kinds[p.ID] = p.Kind
		c.ids = append(c.ids, p.ID)
	}
	sort.Strings(c.ids)
	return c, nil
}

// CatalogConfig locates the catalog file.
type CatalogConfig struct {
	// Path is a YAML, JSON or TOML file with a top-level products list.
	Path string `mapstructure:"path" default:"catalog.yaml"`
}

// LoadCatalog reads a catalog file (yaml, json or toml) with a top-level products list.
func LoadCatalog(path string) (*StaticCatalog, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read catalog %s: %w", path, err)
	}

	var products []Product
	if err := v.UnmarshalKey("products", &products); err != nil {
		return nil, fmt.Errorf("failed to parse catalog %s: %w", path, err)
	}
	return NewCatalog(products...)
}

// Lookup returns the kind of productID.
func (c *StaticCatalog) Lookup(productID string) (ProductKind, bool) {
	kind, ok := c.kinds[productID]
	return kind, ok
}

// ProductIDs returns the catalog identifiers in sorted order.
func (c *StaticCatalog) ProductIDs() []string {
	return append([]string(nil), c.ids...)
}

// Products returns the catalog entries in identifier order.
func (c *StaticCatalog) Products() []Product {
	products := make([]Product, 0, len(c.ids))
	for _, id := range c.ids {
		products = append(products, Product{ID: id, Kind: c.kinds[id]})
	}
	return products
}
