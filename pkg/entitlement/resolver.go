package entitlement

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/wanderaudio/guidekit/pkg/catalog"
	"github.com/wanderaudio/guidekit/pkg/consumption"
	"github.com/wanderaudio/guidekit/pkg/creditledger"
)

// StatusProvider reports the current subscription state of an account.
// Returns ErrSubscriptionNotFound when the account never subscribed.
type StatusProvider interface {
	GetSubscriptionStatus(ctx context.Context, accountID uuid.UUID) (*SubscriptionRecord, error)
}

// PackageStore lists recorded package purchases for an account.
type PackageStore interface {
	ListOwnedPackages(ctx context.Context, accountID uuid.UUID) ([]OwnedPackage, error)
}

// LedgerReader returns the current credit ledger for an account.
// Satisfied by the consumption service.
type LedgerReader interface {
	GetLedger(ctx context.Context, accountID uuid.UUID) (creditledger.Ledger, error)
}

// Resolver computes the entitlement snapshot consulted by every
// access-control decision point in the app.
type Resolver struct {
	status   StatusProvider
	packages PackageStore
	ledger   LedgerReader
	catalog  *catalog.Catalog
	log      *slog.Logger
	baseline int
	now      func() time.Time
}

// ResolverOption configures optional resolver settings.
type ResolverOption func(*Resolver)

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(log *slog.Logger) ResolverOption {
	return func(r *Resolver) {
		if log != nil {
			r.log = log
		}
	}
}

// WithBaselineAllotment overrides the free-tier credit baseline. It must
// match the trial allotment granted to fresh ledgers or limits drift from
// ledger capacity.
func WithBaselineAllotment(n int) ResolverOption {
	return func(r *Resolver) {
		if n >= 0 {
			r.baseline = n
		}
	}
}

// WithClock overrides time.Now for tests with fixed time values.
func WithClock(now func() time.Time) ResolverOption {
	return func(r *Resolver) {
		if now != nil {
			r.now = now
		}
	}
}

// NewResolver creates a resolver over the given collaborators.
// Panics if any required dependency is nil to fail fast during initialization.
func NewResolver(status StatusProvider, packages PackageStore, ledger LedgerReader, cat *catalog.Catalog, opts ...ResolverOption) *Resolver {
	if status == nil {
		panic("entitlement: StatusProvider is required")
	}
	if packages == nil {
		panic("entitlement: PackageStore is required")
	}
	if ledger == nil {
		panic("entitlement: LedgerReader is required")
	}
	if cat == nil {
		panic("entitlement: catalog is required")
	}

	r := &Resolver{
		status:   status,
		packages: packages,
		ledger:   ledger,
		catalog:  cat,
		log:      slog.Default(),
		baseline: 2,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve computes the entitlement snapshot for an account.
//
// A failing subscription query never grants access: the account is treated as
// free tier and the failure is logged. Unlimited subscribers (current and
// legacy types alike) get the sentinel limit; everyone else gets the baseline
// allotment plus the limits of their active packages, minus ledger usage.
func (r *Resolver) Resolve(ctx context.Context, accountID uuid.UUID) (Snapshot, error) {
	now := r.now().UTC()

	sub, err := r.status.GetSubscriptionStatus(ctx, accountID)
	if err != nil && !errors.Is(err, ErrSubscriptionNotFound) {
		// Fail safe: assume free tier, never unlimited, on an error path.
		r.log.WarnContext(ctx, "subscription status query failed, assuming free tier",
			"account_id", accountID,
			"error", err,
		)
		sub = nil
	}

	if sub.GrantsUnlimited(now) {
		return Snapshot{
			HasUnlimitedAccess: true,
			TotalLimit:         UnlimitedLimit,
			Remaining:          UnlimitedLimit,
			OwnedPackageIDs:    []string{},
		}, nil
	}

	owned, err := r.packages.ListOwnedPackages(ctx, accountID)
	if err != nil {
		return Snapshot{}, errors.Join(ErrFailedToListPackages, err)
	}

	totalLimit := r.baseline
	ids := make([]string, 0, len(owned))
	for _, pkg := range owned {
		if !pkg.IsActive(now) {
			continue
		}
		limit, err := r.catalog.AttractionLimit(pkg.ProductID)
		if err != nil {
			// A stale ownership row for a delisted product must not break
			// entitlement reads for the rest of the account.
			r.log.WarnContext(ctx, "owned package missing from catalog",
				"account_id", accountID,
				"product_id", pkg.ProductID,
			)
			continue
		}
		totalLimit += limit
		if !slices.Contains(ids, pkg.ProductID) {
			ids = append(ids, pkg.ProductID)
		}
	}
	slices.Sort(ids)

	used := 0
	ledger, err := r.ledger.GetLedger(ctx, accountID)
	switch {
	case err == nil:
		used = ledger.TotalUsed()
	case errors.Is(err, consumption.ErrLedgerNotFound):
		// No ledger yet means nothing was ever consumed.
	default:
		return Snapshot{}, err
	}

	return Snapshot{
		HasUnlimitedAccess: false,
		TotalLimit:         totalLimit,
		Used:               used,
		Remaining:          max(0, totalLimit-used),
		OwnedPackageIDs:    ids,
	}, nil
}
