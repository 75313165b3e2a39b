package access

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/wanderaudio/guidekit/pkg/billing"
	"github.com/wanderaudio/guidekit/pkg/consumption"
	"github.com/wanderaudio/guidekit/pkg/entitlement"
	"github.com/wanderaudio/guidekit/pkg/logger"
	"github.com/wanderaudio/guidekit/pkg/reconciler"
)

// Service is the application-facing facade over the entitlement core. It
// decides per request whether an attraction guide is covered by an unlimited
// subscription or must be paid from the credit ledger, and it routes billing
// webhooks into the reconciler.
type Service struct {
	consumer   *consumption.Service
	resolver   *entitlement.Resolver
	reconciler *reconciler.Reconciler
	provider   billing.Provider
	cache      SnapshotCache
	log        *slog.Logger
}

// ServiceOption configures optional service settings.
type ServiceOption func(*Service)

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(log *slog.Logger) ServiceOption {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

// WithSnapshotCache enables advisory caching of entitlement snapshots.
func WithSnapshotCache(cache SnapshotCache) ServiceOption {
	return func(s *Service) {
		s.cache = cache
	}
}

// NewService creates the access service.
// Panics if any required dependency is nil to fail fast during initialization.
func NewService(
	consumer *consumption.Service,
	resolver *entitlement.Resolver,
	rec *reconciler.Reconciler,
	provider billing.Provider,
	opts ...ServiceOption,
) *Service {
	if consumer == nil {
		panic("access: consumption service is required")
	}
	if resolver == nil {
		panic("access: entitlement resolver is required")
	}
	if rec == nil {
		panic("access: reconciler is required")
	}
	if provider == nil {
		panic("access: billing provider is required")
	}

	s := &Service{
		consumer:   consumer,
		resolver:   resolver,
		reconciler: rec,
		provider:   provider,
		log:        slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ConsumeResult reports how an attraction guide request was covered.
type ConsumeResult struct {
	Unlimited     bool `json:"unlimited"`
	FromTrial     int  `json:"from_trial"`
	FromPurchased int  `json:"from_purchased"`
	Remaining     int  `json:"remaining"`
	Replayed      bool `json:"replayed"`
}

// ConsumeAttraction charges an account for a narrated guide. Unlimited
// subscribers pass without touching the ledger; everyone else goes through
// the all-or-nothing idempotent consume.
func (s *Service) ConsumeAttraction(ctx context.Context, accountID uuid.UUID, attractionID string, amount int, idempotencyKey string) (ConsumeResult, error) {
	snapshot, err := s.resolver.Resolve(ctx, accountID)
	if err != nil {
		return ConsumeResult{}, err
	}
	if snapshot.HasUnlimitedAccess {
		s.log.InfoContext(ctx, "attraction covered by subscription",
			logger.AccountID(accountID),
			slog.String("attraction_id", attractionID),
		)
		return ConsumeResult{Unlimited: true, Remaining: entitlement.UnlimitedLimit}, nil
	}

	outcome, err := s.consumer.TryConsume(ctx, accountID, amount, idempotencyKey)
	if err != nil {
		return ConsumeResult{}, err
	}
	if !outcome.Replayed {
		s.log.InfoContext(ctx, "attraction charged",
			logger.AccountID(accountID),
			slog.String("attraction_id", attractionID),
			logger.IdempotencyKey(idempotencyKey),
		)
		s.invalidateSnapshot(ctx, accountID)
	}

	return ConsumeResult{
		FromTrial:     outcome.FromTrial,
		FromPurchased: outcome.FromPurchased,
		Remaining:     outcome.Remaining,
		Replayed:      outcome.Replayed,
	}, nil
}

// RefundAttraction compensates a guide that was charged but never delivered.
func (s *Service) RefundAttraction(ctx context.Context, accountID uuid.UUID, amount int, reason string) error {
	if _, err := s.consumer.Refund(ctx, accountID, amount, reason); err != nil {
		return err
	}
	s.invalidateSnapshot(ctx, accountID)
	return nil
}

// Entitlement returns the account's snapshot, serving from the advisory
// cache when one is configured.
func (s *Service) Entitlement(ctx context.Context, accountID uuid.UUID) (entitlement.Snapshot, error) {
	if s.cache != nil {
		if snapshot, err := s.cache.Get(ctx, accountID); err == nil {
			return snapshot, nil
		} else if !errors.Is(err, ErrSnapshotNotCached) {
			// A broken cache degrades to a resolver read, nothing more.
			s.log.WarnContext(ctx, "snapshot cache read failed",
				logger.AccountID(accountID),
				logger.Error(err),
			)
		}
	}

	snapshot, err := s.resolver.Resolve(ctx, accountID)
	if err != nil {
		return entitlement.Snapshot{}, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, accountID, snapshot); err != nil {
			s.log.WarnContext(ctx, "snapshot cache write failed",
				logger.AccountID(accountID),
				logger.Error(err),
			)
		}
	}
	return snapshot, nil
}

// HandleWebhook verifies, parses, and reconciles one billing delivery.
// Unsupported event types are acknowledged without action so the provider
// stops redelivering them.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	event, err := s.provider.ParseWebhook(ctx, payload, signature)
	if err != nil {
		if errors.Is(err, billing.ErrUnsupportedEvent) {
			s.log.DebugContext(ctx, "ignoring unsupported billing event")
			return nil
		}
		return err
	}

	if err := s.reconciler.Apply(ctx, *event); err != nil {
		return err
	}

	s.log.InfoContext(ctx, "billing event reconciled",
		logger.AccountID(event.AccountID),
		logger.EventType(string(event.Type)),
		logger.ProductID(event.ProductID),
		logger.TransactionID(event.TransactionID),
	)
	s.invalidateSnapshot(ctx, event.AccountID)
	return nil
}

func (s *Service) invalidateSnapshot(ctx context.Context, accountID uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, accountID); err != nil {
		s.log.WarnContext(ctx, "snapshot cache invalidation failed",
			logger.AccountID(accountID),
			logger.Error(err),
		)
	}
}
