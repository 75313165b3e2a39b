package reconciler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/wanderaudio/guidekit/pkg/catalog"
	"github.com/wanderaudio/guidekit/pkg/creditledger"
	"github.com/wanderaudio/guidekit/pkg/entitlement"
)

// Reconciler applies externally-delivered purchase lifecycle events to
// persisted subscription and ledger state, at most once per transaction id.
type Reconciler struct {
	subscriptions SubscriptionStore
	packages      PackageStore
	processed     ProcessedEventStore
	granter       CreditGranter
	catalog       *catalog.Catalog
	log           *slog.Logger
	now           func() time.Time
}

// Option configures optional reconciler settings.
type Option func(*Reconciler)

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(log *slog.Logger) Option {
	return func(r *Reconciler) {
		if log != nil {
			r.log = log
		}
	}
}

// WithClock overrides time.Now for tests with fixed time values.
func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) {
		if now != nil {
			r.now = now
		}
	}
}

// New creates a reconciler.
// Panics if any required dependency is nil to fail fast during initialization.
func New(subscriptions SubscriptionStore, packages PackageStore, processed ProcessedEventStore, granter CreditGranter, cat *catalog.Catalog, opts ...Option) *Reconciler {
	if subscriptions == nil {
		panic("reconciler: SubscriptionStore is required")
	}
	if packages == nil {
		panic("reconciler: PackageStore is required")
	}
	if processed == nil {
		panic("reconciler: ProcessedEventStore is required")
	}
	if granter == nil {
		panic("reconciler: CreditGranter is required")
	}
	if cat == nil {
		panic("reconciler: catalog is required")
	}

	r := &Reconciler{
		subscriptions: subscriptions,
		packages:      packages,
		processed:     processed,
		granter:       granter,
		catalog:       cat,
		log:           slog.Default(),
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Apply handles one lifecycle event. Replays of an already-processed
// transaction id return nil without touching state. Errors are meant for the
// delivery mechanism's retry loop, never for the end user.
func (r *Reconciler) Apply(ctx context.Context, event LifecycleEvent) error {
	if err := validateEvent(event); err != nil {
		return err
	}

	done, err := r.processed.IsProcessed(ctx, event.TransactionID)
	if err != nil {
		return errors.Join(ErrFailedToApplyEvent, err)
	}
	if done {
		r.log.DebugContext(ctx, "lifecycle event replayed, skipping",
			"transaction_id", event.TransactionID,
			"event_type", string(event.Type),
		)
		return nil
	}

	switch event.Type {
	case EventInitialPurchase, EventRenewal, EventNonRenewingPurchase:
		err = r.applyPurchase(ctx, event)
	case EventCancellation:
		err = r.applyCancellation(ctx, event)
	case EventExpiration:
		err = r.applyExpiration(ctx, event)
	case EventBillingIssue:
		// Observability only; grace-period handling is a product decision
		// outside this core.
		r.log.WarnContext(ctx, "billing issue reported",
			"account_id", event.AccountID,
			"product_id", event.ProductID,
			"transaction_id", event.TransactionID,
		)
	case EventProductChange:
		err = r.applyProductChange(ctx, event)
	default:
		return errors.Join(ErrUnknownEventType, fmt.Errorf("event type %q", event.Type))
	}
	if err != nil {
		return err
	}

	if err := r.processed.MarkProcessed(ctx, event.TransactionID); err != nil {
		if errors.Is(err, ErrEventAlreadyProcessed) {
			// A concurrent delivery applied the same event; both ran the
			// same idempotent upserts, so this is still a success.
			return nil
		}
		return errors.Join(ErrFailedToApplyEvent, err)
	}
	return nil
}

func (r *Reconciler) applyPurchase(ctx context.Context, event LifecycleEvent) error {
	product, err := r.catalog.Resolve(event.ProductID)
	if err != nil {
		return errors.Join(ErrFailedToApplyEvent,
			fmt.Errorf("product %s: %w", event.ProductID, err))
	}

	switch product.Family {
	case catalog.FamilyUnlimited:
		return r.upsertSubscription(ctx, event, product)
	case catalog.FamilyPackage:
		return r.recordPackagePurchase(ctx, event, product)
	}
	return errors.Join(ErrFailedToApplyEvent,
		fmt.Errorf("product %s has unexpected family %q", product.ID, product.Family))
}

// upsertSubscription creates or extends the subscription record. An
// out-of-order or duplicate delivery must never shorten a valid entitlement,
// so the expiration only moves forward.
func (r *Reconciler) upsertSubscription(ctx context.Context, event LifecycleEvent, product catalog.Product) error {
	record, err := r.subscriptions.Get(ctx, event.AccountID)
	switch {
	case errors.Is(err, entitlement.ErrSubscriptionNotFound):
		record = &entitlement.SubscriptionRecord{AccountID: event.AccountID}
	case err != nil:
		return errors.Join(ErrFailedToApplyEvent, err)
	default:
		if !expiresLater(event.ExpiresAt, record.ExpiresAt) {
			r.log.DebugContext(ctx, "stale subscription event, keeping later expiration",
				"account_id", event.AccountID,
				"transaction_id", event.TransactionID,
			)
			return nil
		}
	}

	record.Type = tierToType(product.Tier)
	record.ProductID = product.ID
	record.IsActive = true
	record.AutoRenew = event.Type != EventNonRenewingPurchase
	record.ExpiresAt = event.ExpiresAt
	record.UpdatedAt = r.now().UTC()
	if record.OriginalTransactionID == "" {
		record.OriginalTransactionID = event.OriginalTransactionID
	}

	if err := r.subscriptions.Save(ctx, record); err != nil {
		return errors.Join(ErrFailedToApplyEvent, err)
	}

	r.log.InfoContext(ctx, "subscription upserted",
		"account_id", event.AccountID,
		"product_id", product.ID,
		"type", string(record.Type),
		"auto_renew", record.AutoRenew,
	)
	return nil
}

// recordPackagePurchase inserts an ownership row and materializes the
// package's credit capacity into the purchased bucket. Both steps are keyed
// by the billing transaction id, so a redelivery after a partial failure
// finishes the application instead of repeating it.
func (r *Reconciler) recordPackagePurchase(ctx context.Context, event LifecycleEvent, product catalog.Product) error {
	pkg := entitlement.OwnedPackage{
		AccountID:     event.AccountID,
		ProductID:     product.ID,
		TransactionID: event.TransactionID,
		PurchasedAt:   event.PurchasedAt,
		ExpiresAt:     event.ExpiresAt,
	}
	err := r.packages.InsertOwnedPackage(ctx, pkg)
	switch {
	case errors.Is(err, ErrPackageAlreadyRecorded):
		r.log.DebugContext(ctx, "package ownership already recorded",
			"account_id", event.AccountID,
			"transaction_id", event.TransactionID,
		)
	case err != nil:
		return errors.Join(ErrFailedToApplyEvent, err)
	}

	if _, err := r.granter.Grant(ctx, event.AccountID, creditledger.BucketPurchased, product.AttractionLimit, grantKey(event.TransactionID)); err != nil {
		return errors.Join(ErrFailedToApplyEvent, err)
	}

	r.log.InfoContext(ctx, "package purchase recorded",
		"account_id", event.AccountID,
		"product_id", product.ID,
		"attraction_limit", product.AttractionLimit,
	)
	return nil
}

// applyCancellation clears the auto-renew flag only. Access continues until
// the already-recorded expiration.
func (r *Reconciler) applyCancellation(ctx context.Context, event LifecycleEvent) error {
	record, err := r.subscriptions.Get(ctx, event.AccountID)
	if err != nil {
		if errors.Is(err, entitlement.ErrSubscriptionNotFound) {
			r.log.WarnContext(ctx, "cancellation for unknown subscription",
				"account_id", event.AccountID,
				"transaction_id", event.TransactionID,
			)
			return nil
		}
		return errors.Join(ErrFailedToApplyEvent, err)
	}

	record.AutoRenew = false
	record.UpdatedAt = r.now().UTC()
	if err := r.subscriptions.Save(ctx, record); err != nil {
		return errors.Join(ErrFailedToApplyEvent, err)
	}

	r.log.InfoContext(ctx, "subscription auto-renew cleared",
		"account_id", event.AccountID,
	)
	return nil
}

func (r *Reconciler) applyExpiration(ctx context.Context, event LifecycleEvent) error {
	record, err := r.subscriptions.Get(ctx, event.AccountID)
	if err != nil {
		if errors.Is(err, entitlement.ErrSubscriptionNotFound) {
			return nil
		}
		return errors.Join(ErrFailedToApplyEvent, err)
	}

	record.IsActive = false
	record.UpdatedAt = r.now().UTC()
	if err := r.subscriptions.Save(ctx, record); err != nil {
		return errors.Join(ErrFailedToApplyEvent, err)
	}

	r.log.InfoContext(ctx, "subscription expired",
		"account_id", event.AccountID,
	)
	return nil
}

// applyProductChange updates the subscription's product keyed by the
// provider's original transaction id, not by user action.
func (r *Reconciler) applyProductChange(ctx context.Context, event LifecycleEvent) error {
	if event.OriginalTransactionID == "" {
		return errors.Join(ErrInvalidEvent, errors.New("product_change requires original transaction id"))
	}

	record, err := r.subscriptions.GetByOriginalTransactionID(ctx, event.OriginalTransactionID)
	if err != nil {
		return errors.Join(ErrFailedToApplyEvent, err)
	}

	product, err := r.catalog.Resolve(event.ProductID)
	if err != nil {
		return errors.Join(ErrFailedToApplyEvent,
			fmt.Errorf("product %s: %w", event.ProductID, err))
	}
	if product.Family != catalog.FamilyUnlimited {
		return errors.Join(ErrFailedToApplyEvent,
			fmt.Errorf("product_change to non-subscription product %s", product.ID))
	}

	record.Type = tierToType(product.Tier)
	record.ProductID = product.ID
	record.UpdatedAt = r.now().UTC()
	if err := r.subscriptions.Save(ctx, record); err != nil {
		return errors.Join(ErrFailedToApplyEvent, err)
	}

	r.log.InfoContext(ctx, "subscription product changed",
		"account_id", record.AccountID,
		"product_id", product.ID,
	)
	return nil
}

func validateEvent(event LifecycleEvent) error {
	if event.TransactionID == "" {
		return errors.Join(ErrInvalidEvent, errors.New("transaction id is required"))
	}
	if event.AccountID == uuid.Nil {
		return errors.Join(ErrInvalidEvent, errors.New("account id is required"))
	}
	return nil
}

// grantKey derives the ledger idempotency key for a package grant. Prefixed
// so a billing transaction id can never collide with a client consume key.
func grantKey(transactionID string) string {
	return "grant:" + transactionID
}

// expiresLater reports whether candidate extends the entitlement beyond
// current. A nil expiration means lifetime and is never beaten.
func expiresLater(candidate, current *time.Time) bool {
	if current == nil {
		return false
	}
	if candidate == nil {
		return true
	}
	return candidate.After(*current)
}

func tierToType(tier catalog.Tier) entitlement.SubscriptionType {
	switch tier {
	case catalog.TierLegacyMonthly:
		return entitlement.TypeLegacyMonthly
	case catalog.TierLegacyYearly:
		return entitlement.TypeLegacyYearly
	case catalog.TierLegacyLifetime:
		return entitlement.TypeLegacyLifetime
	default:
		return entitlement.TypeUnlimited
	}
}
