package consumption_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wanderaudio/guidekit/pkg/consumption"
	"github.com/wanderaudio/guidekit/pkg/creditledger"
)

func seedLedger(t *testing.T, store consumption.LedgerStore, accountID uuid.UUID, trialAvail, trialUsed, purchasedAvail, purchasedUsed int) {
	t.Helper()
	l, err := creditledger.New(trialAvail, trialUsed, purchasedAvail, purchasedUsed)
	require.NoError(t, err)
	require.NoError(t, store.Create(context.Background(), accountID, l))
}

func TestService_TryConsume(t *testing.T) {
	t.Parallel()

	t.Run("consumes trial credits first", func(t *testing.T) {
		t.Parallel()
		store := consumption.NewMemoryStore()
		accountID := uuid.New()
		seedLedger(t, store, accountID, 2, 0, 195, 8)

		svc := consumption.NewService(store)
		out, err := svc.TryConsume(context.Background(), accountID, 1, "attraction-eiffel")
		require.NoError(t, err)

		assert.Equal(t, 1, out.FromTrial)
		assert.Equal(t, 0, out.FromPurchased)
		assert.Equal(t, 196, out.Remaining)
		assert.False(t, out.Replayed)
	})

	t.Run("rejects insufficient credits without mutation", func(t *testing.T) {
		t.Parallel()
		store := consumption.NewMemoryStore()
		accountID := uuid.New()
		seedLedger(t, store, accountID, 1, 0, 1, 0)

		svc := consumption.NewService(store)
		_, err := svc.TryConsume(context.Background(), accountID, 3, "attraction-louvre")
		assert.ErrorIs(t, err, consumption.ErrInsufficientCredits)

		vl, err := store.Get(context.Background(), accountID)
		require.NoError(t, err)
		assert.Equal(t, creditledger.Bucket{Available: 1, Used: 0}, vl.Ledger.Trial)
		assert.Equal(t, creditledger.Bucket{Available: 1, Used: 0}, vl.Ledger.Purchased)
		assert.EqualValues(t, 1, vl.Version)
	})

	t.Run("replay returns the committed outcome", func(t *testing.T) {
		t.Parallel()
		store := consumption.NewMemoryStore()
		accountID := uuid.New()
		seedLedger(t, store, accountID, 2, 0, 3, 0)

		svc := consumption.NewService(store)
		first, err := svc.TryConsume(context.Background(), accountID, 1, "attraction-prado")
		require.NoError(t, err)

		second, err := svc.TryConsume(context.Background(), accountID, 1, "attraction-prado")
		require.NoError(t, err)

		assert.Equal(t, first.Remaining, second.Remaining)
		assert.Equal(t, first.FromTrial, second.FromTrial)
		assert.True(t, second.Replayed)

		// The ledger was decremented exactly once.
		vl, err := store.Get(context.Background(), accountID)
		require.NoError(t, err)
		assert.Equal(t, 4, vl.Ledger.Available())
	})

	t.Run("rejects non-positive amounts", func(t *testing.T) {
		t.Parallel()
		svc := consumption.NewService(consumption.NewMemoryStore())
		_, err := svc.TryConsume(context.Background(), uuid.New(), 0, "key")
		assert.ErrorIs(t, err, creditledger.ErrInvalidAmount)

		_, err = svc.TryConsume(context.Background(), uuid.New(), -1, "key")
		assert.ErrorIs(t, err, creditledger.ErrInvalidAmount)
	})

	t.Run("rejects missing idempotency key", func(t *testing.T) {
		t.Parallel()
		svc := consumption.NewService(consumption.NewMemoryStore())
		_, err := svc.TryConsume(context.Background(), uuid.New(), 1, "")
		assert.ErrorIs(t, err, consumption.ErrMissingIdempotencyKey)
	})

	t.Run("bootstraps trial ledger on first use", func(t *testing.T) {
		t.Parallel()
		store := consumption.NewMemoryStore()
		svc := consumption.NewService(store, consumption.WithTrialAllotment(2))

		out, err := svc.TryConsume(context.Background(), uuid.New(), 1, "attraction-alhambra")
		require.NoError(t, err)
		assert.Equal(t, 1, out.FromTrial)
		assert.Equal(t, 1, out.Remaining)
	})

	t.Run("surfaces conflict after bounded retries", func(t *testing.T) {
		t.Parallel()
		store := &conflictingStore{
			LedgerStore: consumption.NewMemoryStore(),
			conflicts:   100,
		}
		accountID := uuid.New()
		seedLedger(t, store.LedgerStore, accountID, 2, 0, 0, 0)

		svc := consumption.NewService(store, consumption.WithMaxAttempts(3))
		_, err := svc.TryConsume(context.Background(), accountID, 1, "attraction-colosseum")
		assert.ErrorIs(t, err, consumption.ErrLedgerConflict)
		assert.EqualValues(t, 3, store.saveCalls.Load())
	})

	t.Run("recovers from transient conflicts", func(t *testing.T) {
		t.Parallel()
		store := &conflictingStore{
			LedgerStore: consumption.NewMemoryStore(),
			conflicts:   2,
		}
		accountID := uuid.New()
		seedLedger(t, store.LedgerStore, accountID, 2, 0, 0, 0)

		svc := consumption.NewService(store)
		out, err := svc.TryConsume(context.Background(), accountID, 1, "attraction-sagrada")
		require.NoError(t, err)
		assert.Equal(t, 1, out.Remaining)
	})
}

func TestService_TryConsume_Concurrent(t *testing.T) {
	t.Parallel()

	store := consumption.NewMemoryStore()
	accountID := uuid.New()
	seedLedger(t, store, accountID, 2, 0, 3, 0) // 5 available

	svc := consumption.NewService(store, consumption.WithMaxAttempts(100))

	const workers = 10
	var wg sync.WaitGroup
	var succeeded, insufficient atomic.Int64

	for i := range workers {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := svc.TryConsume(context.Background(), accountID, 1, uuid.NewString())
			switch {
			case err == nil:
				succeeded.Add(1)
			case errors.Is(err, consumption.ErrInsufficientCredits):
				insufficient.Add(1)
			default:
				t.Errorf("worker %d: unexpected error: %v", n, err)
			}
		}(i)
	}
	wg.Wait()

	assert.EqualValues(t, 5, succeeded.Load())
	assert.EqualValues(t, workers-5, insufficient.Load())

	vl, err := store.Get(context.Background(), accountID)
	require.NoError(t, err)
	assert.Zero(t, vl.Ledger.Available())
	assert.Equal(t, 5, vl.Ledger.TotalUsed())
	assert.Equal(t, 5, vl.Ledger.Total())
}

func TestService_Refund(t *testing.T) {
	t.Parallel()

	t.Run("restores purchased credits first", func(t *testing.T) {
		t.Parallel()
		store := consumption.NewMemoryStore()
		accountID := uuid.New()
		seedLedger(t, store, accountID, 0, 2, 192, 11)

		svc := consumption.NewService(store)
		l, err := svc.Refund(context.Background(), accountID, 3, "guide generation failed")
		require.NoError(t, err)

		assert.Equal(t, creditledger.Bucket{Available: 195, Used: 8}, l.Purchased)
		assert.Equal(t, creditledger.Bucket{Available: 0, Used: 2}, l.Trial)
	})

	t.Run("missing ledger", func(t *testing.T) {
		t.Parallel()
		svc := consumption.NewService(consumption.NewMemoryStore())
		_, err := svc.Refund(context.Background(), uuid.New(), 1, "whatever")
		assert.ErrorIs(t, err, consumption.ErrLedgerNotFound)
	})
}

func TestService_EnsureLedger(t *testing.T) {
	t.Parallel()

	t.Run("creates with trial allotment once", func(t *testing.T) {
		t.Parallel()
		store := consumption.NewMemoryStore()
		svc := consumption.NewService(store, consumption.WithTrialAllotment(2))
		accountID := uuid.New()

		l, err := svc.EnsureLedger(context.Background(), accountID)
		require.NoError(t, err)
		assert.Equal(t, 2, l.Trial.Available)

		// Second call returns the existing ledger unchanged.
		_, err = svc.TryConsume(context.Background(), accountID, 1, "attraction-pantheon")
		require.NoError(t, err)
		l, err = svc.EnsureLedger(context.Background(), accountID)
		require.NoError(t, err)
		assert.Equal(t, 1, l.Available())
	})
}

func TestService_Grant(t *testing.T) {
	t.Parallel()

	t.Run("adds purchased capacity", func(t *testing.T) {
		t.Parallel()
		store := consumption.NewMemoryStore()
		accountID := uuid.New()
		seedLedger(t, store, accountID, 2, 0, 0, 0)

		svc := consumption.NewService(store)
		l, err := svc.Grant(context.Background(), accountID, creditledger.BucketPurchased, 10, "grant:tx-1")
		require.NoError(t, err)
		assert.Equal(t, 12, l.Available())
		assert.Equal(t, 12, l.Total())
	})

	t.Run("bootstraps missing ledger before granting", func(t *testing.T) {
		t.Parallel()
		svc := consumption.NewService(consumption.NewMemoryStore(), consumption.WithTrialAllotment(2))
		l, err := svc.Grant(context.Background(), uuid.New(), creditledger.BucketPurchased, 5, "grant:tx-1")
		require.NoError(t, err)
		assert.Equal(t, 7, l.Available())
	})

	t.Run("replayed grant key adds capacity once", func(t *testing.T) {
		t.Parallel()
		store := consumption.NewMemoryStore()
		accountID := uuid.New()
		seedLedger(t, store, accountID, 2, 0, 0, 0)

		svc := consumption.NewService(store)
		_, err := svc.Grant(context.Background(), accountID, creditledger.BucketPurchased, 10, "grant:tx-1")
		require.NoError(t, err)

		l, err := svc.Grant(context.Background(), accountID, creditledger.BucketPurchased, 10, "grant:tx-1")
		require.NoError(t, err)
		assert.Equal(t, 12, l.Available())
		assert.Equal(t, 12, l.Total())
	})

	t.Run("missing idempotency key is rejected", func(t *testing.T) {
		t.Parallel()
		svc := consumption.NewService(consumption.NewMemoryStore())
		_, err := svc.Grant(context.Background(), uuid.New(), creditledger.BucketPurchased, 5, "")
		assert.ErrorIs(t, err, consumption.ErrMissingIdempotencyKey)
	})
}

// conflictingStore wraps a LedgerStore and fails the first N conditional
// writes with a version conflict.
type conflictingStore struct {
	consumption.LedgerStore
	conflicts int64
	saveCalls atomic.Int64
}

func (s *conflictingStore) SaveWithTransaction(ctx context.Context, accountID uuid.UUID, ledger creditledger.Ledger, expectedVersion int64, txn consumption.Transaction) error {
	if s.saveCalls.Add(1) <= s.conflicts {
		return consumption.ErrVersionConflict
	}
	return s.LedgerStore.SaveWithTransaction(ctx, accountID, ledger, expectedVersion, txn)
}
