package catalog

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sync"
)

// Source defines how products are loaded into a Catalog.
type Source interface {
	Load(ctx context.Context) (map[string]Product, error)
}

// Catalog is an immutable, validated product lookup. Products are cached in
// memory after loading; catalog changes require reconstruction.
type Catalog struct {
	products map[string]Product
}

// New loads and validates products from the given source.
func New(ctx context.Context, src Source) (*Catalog, error) {
	if src == nil {
		panic("catalog: Source is required")
	}

	products, err := src.Load(ctx)
	if err != nil {
		return nil, errors.Join(ErrFailedToLoadCatalog, err)
	}

	if err := validateProducts(products); err != nil {
		return nil, err
	}

	return &Catalog{products: maps.Clone(products)}, nil
}

// Resolve returns the product for a provider product id.
// Returns ErrProductNotFound for unknown ids.
func (c *Catalog) Resolve(productID string) (Product, error) {
	p, ok := c.products[productID]
	if !ok {
		return Product{}, ErrProductNotFound
	}
	return p, nil
}

// AttractionLimit returns the credit capacity of a package product, or 0 with
// ErrProductNotFound for unknown ids. Unlimited products report 0.
func (c *Catalog) AttractionLimit(productID string) (int, error) {
	p, err := c.Resolve(productID)
	if err != nil {
		return 0, err
	}
	return p.AttractionLimit, nil
}

// validateProducts catches configuration mistakes early so a misconfigured
// catalog prevents startup rather than misclassifying purchases at runtime.
func validateProducts(products map[string]Product) error {
	for id, p := range products {
		if p.ID != id {
			return errors.Join(ErrInvalidProductConfig,
				fmt.Errorf("product id mismatch: map key %s != product.ID %s", id, p.ID))
		}

		switch p.Family {
		case FamilyUnlimited:
			switch p.Tier {
			case TierUnlimited, TierLegacyMonthly, TierLegacyYearly, TierLegacyLifetime:
			default:
				return errors.Join(ErrInvalidProductConfig,
					fmt.Errorf("unlimited product %s has invalid tier %q", id, p.Tier))
			}
		case FamilyPackage:
			if p.AttractionLimit <= 0 {
				return errors.Join(ErrInvalidProductConfig,
					fmt.Errorf("package product %s must have a positive attraction limit", id))
			}
		default:
			return errors.Join(ErrInvalidProductConfig,
				fmt.Errorf("product %s has unknown family %q", id, p.Family))
		}
	}
	return nil
}

// inMemSource implements Source over a static product map.
type inMemSource struct {
	mu       sync.RWMutex
	products map[string]Product
}

// NewInMemSource returns a Source backed by a copy of the given products.
func NewInMemSource(products ...Product) Source {
	m := make(map[string]Product, len(products))
	for _, p := range products {
		m[p.ID] = p
	}
	return &inMemSource{products: m}
}

func (s *inMemSource) Load(ctx context.Context) (map[string]Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.products), nil
}
