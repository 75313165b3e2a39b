package catalog

import "errors"

var (
	ErrProductNotFound        = errors.New("product not found in catalog")
	ErrInvalidProductConfig   = errors.New("invalid product configuration")
	ErrFailedToLoadCatalog    = errors.New("failed to load product catalog")
	ErrCatalogFileNotProvided = errors.New("catalog file path not provided")
)
