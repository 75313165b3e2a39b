package entitlement

import "errors"

var (
	ErrSubscriptionQueryFailed = errors.New("subscription status query failed")
	ErrSubscriptionNotFound    = errors.New("subscription not found")
	ErrFailedToListPackages    = errors.New("failed to list owned packages")
)
