package reconciler

import (
	"context"

	"github.com/google/uuid"

	"github.com/wanderaudio/guidekit/pkg/creditledger"
	"github.com/wanderaudio/guidekit/pkg/entitlement"
)

// SubscriptionStore persists subscription records.
type SubscriptionStore interface {
	// Get returns the subscription record for an account.
	// Returns entitlement.ErrSubscriptionNotFound if none exists.
	Get(ctx context.Context, accountID uuid.UUID) (*entitlement.SubscriptionRecord, error)

	// GetByOriginalTransactionID looks a record up by the provider's stable
	// transaction id, used for product changes that arrive without a user
	// action. Returns entitlement.ErrSubscriptionNotFound if none matches.
	GetByOriginalTransactionID(ctx context.Context, originalTransactionID string) (*entitlement.SubscriptionRecord, error)

	// Save creates or updates a record keyed by account id.
	Save(ctx context.Context, record *entitlement.SubscriptionRecord) error
}

// PackageStore records package ownership rows. Multiple purchases of the
// same package id are all recorded, but each billing transaction id maps to
// at most one row.
type PackageStore interface {
	// InsertOwnedPackage records one purchase. Returns
	// ErrPackageAlreadyRecorded when the transaction id was inserted before,
	// which must be enforced by a persisted uniqueness constraint.
	InsertOwnedPackage(ctx context.Context, pkg entitlement.OwnedPackage) error
}

// ProcessedEventStore is the persisted set of already-applied transaction
// identifiers. Must be backed by a uniqueness constraint, not an in-memory
// cache, because the service runs as multiple stateless instances.
type ProcessedEventStore interface {
	// IsProcessed reports whether the transaction id was applied before.
	IsProcessed(ctx context.Context, transactionID string) (bool, error)

	// MarkProcessed records the transaction id. Returns
	// ErrEventAlreadyProcessed when another instance got there first.
	MarkProcessed(ctx context.Context, transactionID string) error
}

// CreditGranter materializes purchased package capacity into the account's
// ledger, at most once per idempotency key. Satisfied by the consumption
// service.
type CreditGranter interface {
	Grant(ctx context.Context, accountID uuid.UUID, bucket creditledger.BucketKind, amount int, idempotencyKey string) (creditledger.Ledger, error)
}
