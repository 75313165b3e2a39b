package entitlement

import (
	"time"

	"github.com/google/uuid"
)

// SubscriptionType identifies which product tier a subscription record was
// created from. Legacy types are grandfathered identifiers that must keep
// behaving exactly like the current unlimited type.
type SubscriptionType string

const (
	TypeFree           SubscriptionType = "free"
	TypeUnlimited      SubscriptionType = "unlimited"
	TypeLegacyMonthly  SubscriptionType = "legacy_monthly"
	TypeLegacyYearly   SubscriptionType = "legacy_yearly"
	TypeLegacyLifetime SubscriptionType = "legacy_lifetime"
)

// SubscriptionRecord is the persisted subscription state for an account,
// written by the purchase reconciler and read by the resolver.
type SubscriptionRecord struct {
	AccountID             uuid.UUID
	Type                  SubscriptionType
	ProductID             string
	OriginalTransactionID string // provider's first transaction id, stable across renewals
	IsActive              bool
	AutoRenew             bool
	ExpiresAt             *time.Time // nil for lifetime purchases
	UpdatedAt             time.Time
}

// GrantsUnlimited reports whether this record grants unlimited access at the
// given time. Any non-free type qualifies while active and unexpired; the
// record itself does not distinguish legacy tiers from the current one.
func (r *SubscriptionRecord) GrantsUnlimited(now time.Time) bool {
	if r == nil || r.Type == TypeFree || !r.IsActive {
		return false
	}
	if r.ExpiresAt != nil && !r.ExpiresAt.After(now) {
		return false
	}
	return true
}

// OwnedPackage is one recorded purchase of a consumable guide package.
// Packages are not unique per account; buying the same package twice yields
// two rows.
type OwnedPackage struct {
	AccountID     uuid.UUID
	ProductID     string
	TransactionID string
	PurchasedAt   time.Time
	ExpiresAt     *time.Time // nil for packages that never expire
}

// IsActive reports whether the package purchase still counts toward the
// credit limit at the given time.
func (p OwnedPackage) IsActive(now time.Time) bool {
	return p.ExpiresAt == nil || p.ExpiresAt.After(now)
}
