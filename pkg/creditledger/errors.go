package creditledger

import "errors"

var (
	ErrInvalidAmount = errors.New("credit amount must be a non-negative integer")
	ErrUnknownBucket = errors.New("unknown credit bucket")
)
