package access

import "errors"

var (
	ErrSnapshotNotCached = errors.New("entitlement snapshot not cached")
	ErrInvalidAmount     = errors.New("amount must be a positive integer")
	ErrMissingAccountID  = errors.New("account id must be a valid uuid")
)
