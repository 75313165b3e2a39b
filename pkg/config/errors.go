package config

import "errors"

var (
	ErrNilConfig           = errors.New("config target must not be nil")
	ErrFailedToParseConfig = errors.New("failed to parse config from environment")
)
