package catalog

import (
	"context"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// yamlFileSource loads the product catalog from a YAML file, so the catalog
// can be edited without recompiling.
//
// Expected format:
//
//	products:
//	  - id: guide_pack_10
//	    name: 10 Guide Pack
//	    family: package
//	    attraction_limit: 10
//	    price: { amount: 499, currency: USD }
//	  - id: unlimited_monthly
//	    name: Unlimited Monthly
//	    family: unlimited
//	    tier: unlimited
//	    price: { amount: 999, currency: USD }
type yamlFileSource struct {
	path string
}

// NewYAMLFileSource returns a Source that reads products from path on Load.
func NewYAMLFileSource(path string) Source {
	return &yamlFileSource{path: path}
}

func (s *yamlFileSource) Load(ctx context.Context) (map[string]Product, error) {
	if s.path == "" {
		return nil, ErrCatalogFileNotProvided
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, errors.Join(ErrFailedToLoadCatalog, err)
	}

	var doc struct {
		Products []Product `yaml:"products"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Join(ErrFailedToLoadCatalog, err)
	}

	products := make(map[string]Product, len(doc.Products))
	for _, p := range doc.Products {
		if _, exists := products[p.ID]; exists {
			return nil, errors.Join(ErrInvalidProductConfig,
				fmt.Errorf("duplicate product id %s in %s", p.ID, s.path))
		}
		products[p.ID] = p
	}
	return products, nil
}
