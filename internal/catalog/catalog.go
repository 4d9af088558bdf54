// Package catalog holds the store's product assortment. It is seeded once
// from a YAML file and afterwards owns all price mutation: the operator edits
// the shelf price through SetPrice while customer sessions read products
// concurrently. The base price of every product is fixed at load time and is
// the reference point for the decision engine's price-sensitivity scaling.
package catalog

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"store_sim/internal/models"
	"store_sim/internal/pkg/logger"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Predefined errors returned by catalog operations.
var (
	// ErrUnknownProduct indicates that the requested product name is not in the catalog.
	ErrUnknownProduct = errors.New("catalog: unknown product")
	// ErrInvalidPrice indicates a price edit with a non-positive value.
	ErrInvalidPrice = errors.New("catalog: price must be positive")
)

// seedFile mirrors the layout of the products YAML file.
type seedFile struct {
	Products []models.Product `yaml:"products"`
}

// Catalog is a thread-safe product registry keyed by product name.
type Catalog struct {
	mu       sync.RWMutex
	order    []string
	products map[string]*models.Product
	log      *logger.Logger
}

// New builds a catalog from an in-memory product slice. Every product's base
// price is pinned to its current price; products without a positive price are
// rejected. Duplicate names keep the first occurrence.
func New(products []models.Product, l *logger.Logger) (*Catalog, error) {
	c := &Catalog{products: make(map[string]*models.Product), log: l}
	for _, p := range products {
		if p.Name == "" {
			return nil, fmt.Errorf("catalog: product without a name")
		}
		if p.Price <= 0 {
			return nil, fmt.Errorf("catalog: product %q: %w", p.Name, ErrInvalidPrice)
		}
		if _, ok := c.products[p.Name]; ok {
			l.Sugar().Warnf("Duplicate product %q in seed, keeping the first one", p.Name)
			continue
		}
		item := p
		item.BasePrice = item.Price
		c.products[item.Name] = &item
		c.order = append(c.order, item.Name)
	}
	return c, nil
}

// Load reads the product seed file at the given path and builds the catalog.
func Load(path string, l *logger.Logger) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		l.Sugar().Errorf("Failed to read catalog seed %s: %s", path, err)
		return nil, err
	}

	var seed seedFile
	if err := yaml.Unmarshal(raw, &seed); err != nil {
		l.Sugar().Errorf("Failed to parse catalog seed %s: %s", path, err)
		return nil, err
	}

	c, err := New(seed.Products, l)
	if err != nil {
		return nil, err
	}
	l.Info("catalog loaded", zap.String("path", path), zap.Int("products", len(c.order)))
	return c, nil
}

// Get returns a copy of the named product. The copy carries the shelf price
// at the moment of the call; callers never observe later edits through it.
func (c *Catalog) Get(name string) (models.Product, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.products[name]
	if !ok {
		return models.Product{}, false
	}
	return *p, true
}

// List returns copies of all products in seed order.
func (c *Catalog) List() []models.Product {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]models.Product, 0, len(c.order))
	for _, name := range c.order {
		out = append(out, *c.products[name])
	}
	return out
}

// SetPrice updates the shelf price of the named product. The base price is
// left untouched, which is what lets discounts and markups shift customer
// decisions relative to the reference price.
func (c *Catalog) SetPrice(name string, price float64) error {
	if price <= 0 {
		return ErrInvalidPrice
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.products[name]
	if !ok {
		return ErrUnknownProduct
	}
	old := p.Price
	p.Price = price
	c.log.Info("price updated",
		zap.String("product", name),
		zap.Float64("old", old),
		zap.Float64("new", price),
		zap.Float64("base", p.BasePrice))
	return nil
}
