package reconciler

import (
	"time"

	"github.com/google/uuid"
)

// EventType enumerates the purchase lifecycle notifications delivered by the
// payment provider.
type EventType string

const (
	EventInitialPurchase     EventType = "initial_purchase"
	EventRenewal             EventType = "renewal"
	EventNonRenewingPurchase EventType = "non_renewing_purchase"
	EventCancellation        EventType = "cancellation"
	EventExpiration          EventType = "expiration"
	EventBillingIssue        EventType = "billing_issue"
	EventProductChange       EventType = "product_change"
)

// LifecycleEvent is a normalized provider notification. TransactionID is
// unique per delivery attempt group and drives idempotent replay;
// OriginalTransactionID stays stable across renewals of the same
// subscription.
type LifecycleEvent struct {
	Type                  EventType
	AccountID             uuid.UUID
	ProductID             string
	TransactionID         string
	OriginalTransactionID string
	PurchasedAt           time.Time
	ExpiresAt             *time.Time
}
