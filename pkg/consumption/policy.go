package consumption

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/wanderaudio/guidekit/pkg/creditledger"
)

const (
	// defaultMaxAttempts bounds optimistic-concurrency retries. No operation
	// here blocks indefinitely; after exhaustion the caller gets
	// ErrLedgerConflict and maps it to a generic "try again".
	defaultMaxAttempts = 5

	// defaultTrialAllotment is the promotional credit grant for a fresh
	// account ledger.
	defaultTrialAllotment = 2
)

// ConsumeOutcome reports how a committed consume was split across buckets and
// how many credits remain. Replayed is true when the outcome was answered
// from a previously committed transaction record.
type ConsumeOutcome struct {
	FromTrial     int
	FromPurchased int
	Remaining     int
	Replayed      bool
}

// Service turns the saturating ledger primitive into all-or-nothing,
// idempotent product transactions over a versioned store.
type Service struct {
	store          LedgerStore
	log            *slog.Logger
	maxAttempts    int
	trialAllotment int
}

// Option configures the consumption service.
type Option func(*Service)

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(log *slog.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

// WithMaxAttempts overrides the bounded retry count for version conflicts.
func WithMaxAttempts(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

// WithTrialAllotment overrides the promotional credits granted to new ledgers.
func WithTrialAllotment(n int) Option {
	return func(s *Service) {
		if n >= 0 {
			s.trialAllotment = n
		}
	}
}

// NewService creates a consumption service.
// Panics if store is nil to fail fast during initialization.
func NewService(store LedgerStore, opts ...Option) *Service {
	if store == nil {
		panic("consumption: LedgerStore is required")
	}

	s := &Service{
		store:          store,
		log:            slog.Default(),
		maxAttempts:    defaultMaxAttempts,
		trialAllotment: defaultTrialAllotment,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// EnsureLedger returns the account's ledger, creating it with the trial
// allotment on first use. Safe to call concurrently from multiple devices;
// the loser of a create race re-reads the winner's ledger.
func (s *Service) EnsureLedger(ctx context.Context, accountID uuid.UUID) (creditledger.Ledger, error) {
	vl, err := s.store.Get(ctx, accountID)
	if err == nil {
		return vl.Ledger, nil
	}
	if !errors.Is(err, ErrLedgerNotFound) {
		return creditledger.Ledger{}, errors.Join(ErrFailedToFetchLedger, err)
	}

	fresh, err := creditledger.New(s.trialAllotment, 0, 0, 0)
	if err != nil {
		return creditledger.Ledger{}, err
	}

	if err := s.store.Create(ctx, accountID, fresh); err != nil {
		if errors.Is(err, ErrLedgerAlreadyExists) {
			vl, err := s.store.Get(ctx, accountID)
			if err != nil {
				return creditledger.Ledger{}, errors.Join(ErrFailedToFetchLedger, err)
			}
			return vl.Ledger, nil
		}
		return creditledger.Ledger{}, errors.Join(ErrFailedToPersistLedger, err)
	}

	s.log.InfoContext(ctx, "credit ledger created",
		"account_id", accountID,
		"trial_allotment", s.trialAllotment,
	)
	return fresh, nil
}

// TryConsume applies an all-or-nothing consume of amount credits, at most
// once per idempotency key. A replay returns the previously committed outcome
// without re-mutating state. Fails with ErrInsufficientCredits when the
// account cannot cover the full amount, creditledger.ErrInvalidAmount for a
// non-positive amount, and ErrLedgerConflict after retry exhaustion.
func (s *Service) TryConsume(ctx context.Context, accountID uuid.UUID, amount int, idempotencyKey string) (ConsumeOutcome, error) {
	if amount <= 0 {
		return ConsumeOutcome{}, creditledger.ErrInvalidAmount
	}
	if idempotencyKey == "" {
		return ConsumeOutcome{}, ErrMissingIdempotencyKey
	}

	// Fast path for retried requests: answer from the committed record.
	if prior, err := s.store.GetTransaction(ctx, accountID, idempotencyKey); err == nil {
		return replayOutcome(prior), nil
	} else if !errors.Is(err, ErrTransactionNotFound) {
		return ConsumeOutcome{}, errors.Join(ErrFailedToFetchLedger, err)
	}

	for attempt := 0; attempt < s.maxAttempts; attempt++ {
		vl, err := s.store.Get(ctx, accountID)
		if err != nil {
			if errors.Is(err, ErrLedgerNotFound) {
				// First feature use on this instance; bootstrap the trial ledger.
				if _, err := s.EnsureLedger(ctx, accountID); err != nil {
					return ConsumeOutcome{}, err
				}
				continue
			}
			return ConsumeOutcome{}, errors.Join(ErrFailedToFetchLedger, err)
		}

		// Strict rejection at the policy layer; the primitive's saturating
		// behavior is not exposed here.
		if amount > vl.Ledger.Available() {
			return ConsumeOutcome{}, ErrInsufficientCredits
		}

		res := vl.Ledger.ConsumeSaturating(amount)
		txn := Transaction{
			AccountID:      accountID,
			IdempotencyKey: idempotencyKey,
			Amount:         amount,
			FromTrial:      res.FromTrial,
			FromPurchased:  res.FromPurchased,
			Remaining:      res.Ledger.Available(),
			CreatedAt:      time.Now().UTC(),
		}

		err = s.store.SaveWithTransaction(ctx, accountID, res.Ledger, vl.Version, txn)
		switch {
		case err == nil:
			s.log.InfoContext(ctx, "credits consumed",
				"account_id", accountID,
				"idempotency_key", idempotencyKey,
				"from_trial", res.FromTrial,
				"from_purchased", res.FromPurchased,
				"remaining", txn.Remaining,
			)
			return ConsumeOutcome{
				FromTrial:     res.FromTrial,
				FromPurchased: res.FromPurchased,
				Remaining:     txn.Remaining,
			}, nil

		case errors.Is(err, ErrDuplicateTransaction):
			// A concurrent request with the same key won the race. Its
			// outcome is the canonical one.
			prior, err := s.store.GetTransaction(ctx, accountID, idempotencyKey)
			if err != nil {
				return ConsumeOutcome{}, errors.Join(ErrFailedToFetchLedger, err)
			}
			return replayOutcome(prior), nil

		case errors.Is(err, ErrVersionConflict):
			continue

		default:
			return ConsumeOutcome{}, errors.Join(ErrFailedToPersistLedger, err)
		}
	}

	s.log.WarnContext(ctx, "ledger conflict retries exhausted",
		"account_id", accountID,
		"idempotency_key", idempotencyKey,
		"attempts", s.maxAttempts,
	)
	return ConsumeOutcome{}, ErrLedgerConflict
}

// Refund compensates a failed downstream operation by returning amount
// credits to the ledger, purchased bucket first. Excess beyond historical
// usage is discarded by the primitive, so Refund always succeeds for an
// existing ledger.
func (s *Service) Refund(ctx context.Context, accountID uuid.UUID, amount int, reason string) (creditledger.Ledger, error) {
	if amount < 0 {
		return creditledger.Ledger{}, creditledger.ErrInvalidAmount
	}

	for attempt := 0; attempt < s.maxAttempts; attempt++ {
		vl, err := s.store.Get(ctx, accountID)
		if err != nil {
			if errors.Is(err, ErrLedgerNotFound) {
				return creditledger.Ledger{}, ErrLedgerNotFound
			}
			return creditledger.Ledger{}, errors.Join(ErrFailedToFetchLedger, err)
		}

		refunded := vl.Ledger.RefundSaturating(amount)

		err = s.store.Save(ctx, accountID, refunded, vl.Version)
		if errors.Is(err, ErrVersionConflict) {
			continue
		}
		if err != nil {
			return creditledger.Ledger{}, errors.Join(ErrFailedToPersistLedger, err)
		}

		s.log.InfoContext(ctx, "credits refunded",
			"account_id", accountID,
			"amount", amount,
			"reason", reason,
		)
		return refunded, nil
	}

	return creditledger.Ledger{}, ErrLedgerConflict
}

// Grant adds credit capacity to an account's ledger, creating the ledger
// first if needed, at most once per idempotency key. The purchase reconciler
// keys grants by the billing transaction id so a redelivered purchase event
// cannot double-grant after a partial failure.
func (s *Service) Grant(ctx context.Context, accountID uuid.UUID, bucket creditledger.BucketKind, amount int, idempotencyKey string) (creditledger.Ledger, error) {
	if amount < 0 {
		return creditledger.Ledger{}, creditledger.ErrInvalidAmount
	}
	if idempotencyKey == "" {
		return creditledger.Ledger{}, ErrMissingIdempotencyKey
	}

	// Fast path for redelivered grants: the capacity is already in the ledger.
	if _, err := s.store.GetTransaction(ctx, accountID, idempotencyKey); err == nil {
		return s.GetLedger(ctx, accountID)
	} else if !errors.Is(err, ErrTransactionNotFound) {
		return creditledger.Ledger{}, errors.Join(ErrFailedToFetchLedger, err)
	}

	for attempt := 0; attempt < s.maxAttempts; attempt++ {
		vl, err := s.store.Get(ctx, accountID)
		if err != nil {
			if errors.Is(err, ErrLedgerNotFound) {
				if _, err := s.EnsureLedger(ctx, accountID); err != nil {
					return creditledger.Ledger{}, err
				}
				continue
			}
			return creditledger.Ledger{}, errors.Join(ErrFailedToFetchLedger, err)
		}

		granted, err := vl.Ledger.Grant(bucket, amount)
		if err != nil {
			return creditledger.Ledger{}, err
		}

		txn := Transaction{
			AccountID:      accountID,
			IdempotencyKey: idempotencyKey,
			Amount:         amount,
			Remaining:      granted.Available(),
			CreatedAt:      time.Now().UTC(),
		}

		err = s.store.SaveWithTransaction(ctx, accountID, granted, vl.Version, txn)
		switch {
		case err == nil:
			s.log.InfoContext(ctx, "credits granted",
				"account_id", accountID,
				"bucket", string(bucket),
				"amount", amount,
				"idempotency_key", idempotencyKey,
			)
			return granted, nil

		case errors.Is(err, ErrDuplicateTransaction):
			// A concurrent delivery of the same grant won the race.
			return s.GetLedger(ctx, accountID)

		case errors.Is(err, ErrVersionConflict):
			continue

		default:
			return creditledger.Ledger{}, errors.Join(ErrFailedToPersistLedger, err)
		}
	}

	return creditledger.Ledger{}, ErrLedgerConflict
}

// GetLedger returns the current ledger for an account.
func (s *Service) GetLedger(ctx context.Context, accountID uuid.UUID) (creditledger.Ledger, error) {
	vl, err := s.store.Get(ctx, accountID)
	if err != nil {
		if errors.Is(err, ErrLedgerNotFound) {
			return creditledger.Ledger{}, ErrLedgerNotFound
		}
		return creditledger.Ledger{}, errors.Join(ErrFailedToFetchLedger, err)
	}
	return vl.Ledger, nil
}

func replayOutcome(txn *Transaction) ConsumeOutcome {
	return ConsumeOutcome{
		FromTrial:     txn.FromTrial,
		FromPurchased: txn.FromPurchased,
		Remaining:     txn.Remaining,
		Replayed:      true,
	}
}
