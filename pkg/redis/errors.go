package redis

import "errors"

var (
	ErrEmptyConnectionURL = errors.New("redis connection url is required")
	ErrFailedToParseURL   = errors.New("failed to parse redis connection url")
	ErrFailedToConnect    = errors.New("failed to connect to redis")
	ErrHealthcheckFailed  = errors.New("redis healthcheck failed")
)
