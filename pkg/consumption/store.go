package consumption

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/wanderaudio/guidekit/pkg/creditledger"
)

// VersionedLedger is a ledger snapshot together with the persistence version
// used for conflict detection on writes.
type VersionedLedger struct {
	AccountID uuid.UUID
	Ledger    creditledger.Ledger
	Version   int64
}

// Transaction records a committed ledger mutation, either a consume or a
// purchase grant. The idempotency key is unique per account; a replayed
// request is answered from this record without touching the ledger again.
// Grants carry zero bucket splits and record the granted amount.
type Transaction struct {
	AccountID      uuid.UUID
	IdempotencyKey string
	Amount         int
	FromTrial      int
	FromPurchased  int
	Remaining      int
	CreatedAt      time.Time
}

// LedgerStore persists versioned ledgers and their transaction records. The
// service may run as multiple stateless instances, so idempotency-key
// uniqueness must be enforced by the store, not an in-memory cache.
type LedgerStore interface {
	// Get returns the current ledger and its version.
	// Returns ErrLedgerNotFound if no ledger exists for the account.
	Get(ctx context.Context, accountID uuid.UUID) (*VersionedLedger, error)

	// Create inserts a new ledger at version 1.
	// Returns ErrLedgerAlreadyExists if the account already has one.
	Create(ctx context.Context, accountID uuid.UUID, ledger creditledger.Ledger) error

	// Save writes the ledger conditionally on the stored version matching
	// expectedVersion, incrementing it. Returns ErrVersionConflict when a
	// concurrent writer got there first.
	Save(ctx context.Context, accountID uuid.UUID, ledger creditledger.Ledger, expectedVersion int64) error

	// SaveWithTransaction is Save plus an atomic insert of the transaction
	// record. Returns ErrVersionConflict on a stale version and
	// ErrDuplicateTransaction when the idempotency key was already committed
	// by a concurrent request.
	SaveWithTransaction(ctx context.Context, accountID uuid.UUID, ledger creditledger.Ledger, expectedVersion int64, txn Transaction) error

	// GetTransaction returns a previously committed transaction record.
	// Returns ErrTransactionNotFound if the key has not been used.
	GetTransaction(ctx context.Context, accountID uuid.UUID, idempotencyKey string) (*Transaction, error)
}
