package access

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wanderaudio/guidekit/pkg/consumption"
	"github.com/wanderaudio/guidekit/pkg/creditledger"
	"github.com/wanderaudio/guidekit/pkg/entitlement"
	"github.com/wanderaudio/guidekit/pkg/pg"
	"github.com/wanderaudio/guidekit/pkg/reconciler"
)

// PGLedgerStore is the PostgreSQL implementation of the consumption ledger
// store. The version column on credit_ledgers carries the optimistic
// concurrency check; idempotency keys are enforced by a unique index on
// ledger_transactions.
type PGLedgerStore struct {
	pool *pgxpool.Pool
}

// NewPGLedgerStore creates the ledger store.
// Panics if pool is nil to fail fast during initialization.
func NewPGLedgerStore(pool *pgxpool.Pool) *PGLedgerStore {
	if pool == nil {
		panic("access: pgx pool is required")
	}
	return &PGLedgerStore{pool: pool}
}

var _ consumption.LedgerStore = (*PGLedgerStore)(nil)

func (s *PGLedgerStore) Get(ctx context.Context, accountID uuid.UUID) (*consumption.VersionedLedger, error) {
	const query = `
		SELECT trial_available, trial_used, purchased_available, purchased_used, version
		FROM credit_ledgers
		WHERE account_id = $1`

	var (
		trialAvailable, trialUsed         int
		purchasedAvailable, purchasedUsed int
		version                           int64
	)
	err := s.pool.QueryRow(ctx, query, accountID).Scan(
		&trialAvailable, &trialUsed, &purchasedAvailable, &purchasedUsed, &version,
	)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, consumption.ErrLedgerNotFound
		}
		return nil, err
	}

	ledger, err := creditledger.New(trialAvailable, trialUsed, purchasedAvailable, purchasedUsed)
	if err != nil {
		return nil, err
	}
	return &consumption.VersionedLedger{
		AccountID: accountID,
		Ledger:    ledger,
		Version:   version,
	}, nil
}

func (s *PGLedgerStore) Create(ctx context.Context, accountID uuid.UUID, ledger creditledger.Ledger) error {
	const query = `
		INSERT INTO credit_ledgers (
			account_id, trial_available, trial_used,
			purchased_available, purchased_used, version, updated_at
		) VALUES ($1, $2, $3, $4, $5, 1, now())`

	_, err := s.pool.Exec(ctx, query,
		accountID,
		ledger.Trial.Available, ledger.Trial.Used,
		ledger.Purchased.Available, ledger.Purchased.Used,
	)
	if err != nil {
		if pg.IsDuplicateKeyError(err) {
			return consumption.ErrLedgerAlreadyExists
		}
		return err
	}
	return nil
}

// Save writes the ledger conditionally on the version column. Zero rows
// updated means a concurrent writer won the race.
func (s *PGLedgerStore) Save(ctx context.Context, accountID uuid.UUID, ledger creditledger.Ledger, expectedVersion int64) error {
	const query = `
		UPDATE credit_ledgers
		SET trial_available = $2, trial_used = $3,
			purchased_available = $4, purchased_used = $5,
			version = version + 1, updated_at = now()
		WHERE account_id = $1 AND version = $6`

	tag, err := s.pool.Exec(ctx, query,
		accountID,
		ledger.Trial.Available, ledger.Trial.Used,
		ledger.Purchased.Available, ledger.Purchased.Used,
		expectedVersion,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return consumption.ErrVersionConflict
	}
	return nil
}

// SaveWithTransaction commits the ledger update and the transaction record
// atomically so a crash between them cannot leave a consumed credit without
// its idempotency record.
func (s *PGLedgerStore) SaveWithTransaction(ctx context.Context, accountID uuid.UUID, ledger creditledger.Ledger, expectedVersion int64, txn consumption.Transaction) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const updateQuery = `
		UPDATE credit_ledgers
		SET trial_available = $2, trial_used = $3,
			purchased_available = $4, purchased_used = $5,
			version = version + 1, updated_at = now()
		WHERE account_id = $1 AND version = $6`

	tag, err := tx.Exec(ctx, updateQuery,
		accountID,
		ledger.Trial.Available, ledger.Trial.Used,
		ledger.Purchased.Available, ledger.Purchased.Used,
		expectedVersion,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return consumption.ErrVersionConflict
	}

	const insertQuery = `
		INSERT INTO ledger_transactions (
			account_id, idempotency_key, amount,
			from_trial, from_purchased, remaining, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err = tx.Exec(ctx, insertQuery,
		txn.AccountID, txn.IdempotencyKey, txn.Amount,
		txn.FromTrial, txn.FromPurchased, txn.Remaining, txn.CreatedAt,
	)
	if err != nil {
		if pg.IsDuplicateKeyError(err) {
			return consumption.ErrDuplicateTransaction
		}
		return err
	}

	return tx.Commit(ctx)
}

func (s *PGLedgerStore) GetTransaction(ctx context.Context, accountID uuid.UUID, idempotencyKey string) (*consumption.Transaction, error) {
	const query = `
		SELECT amount, from_trial, from_purchased, remaining, created_at
		FROM ledger_transactions
		WHERE account_id = $1 AND idempotency_key = $2`

	txn := consumption.Transaction{
		AccountID:      accountID,
		IdempotencyKey: idempotencyKey,
	}
	err := s.pool.QueryRow(ctx, query, accountID, idempotencyKey).Scan(
		&txn.Amount, &txn.FromTrial, &txn.FromPurchased, &txn.Remaining, &txn.CreatedAt,
	)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, consumption.ErrTransactionNotFound
		}
		return nil, err
	}
	return &txn, nil
}

// PGBillingStore is the PostgreSQL persistence for subscription state,
// package ownership, and the processed-event set. It also serves the
// entitlement resolver's read interfaces so reconciler writes and resolver
// reads share one schema.
type PGBillingStore struct {
	pool *pgxpool.Pool
}

// NewPGBillingStore creates the billing-state store.
// Panics if pool is nil to fail fast during initialization.
func NewPGBillingStore(pool *pgxpool.Pool) *PGBillingStore {
	if pool == nil {
		panic("access: pgx pool is required")
	}
	return &PGBillingStore{pool: pool}
}

var (
	_ reconciler.SubscriptionStore   = (*PGBillingStore)(nil)
	_ reconciler.PackageStore        = (*PGBillingStore)(nil)
	_ reconciler.ProcessedEventStore = (*PGBillingStore)(nil)
	_ entitlement.StatusProvider     = (*PGBillingStore)(nil)
	_ entitlement.PackageStore       = (*PGBillingStore)(nil)
)

const subscriptionColumns = `
	account_id, type, product_id, original_transaction_id,
	is_active, auto_renew, expires_at, updated_at`

// Get implements reconciler.SubscriptionStore.
func (s *PGBillingStore) Get(ctx context.Context, accountID uuid.UUID) (*entitlement.SubscriptionRecord, error) {
	return s.querySubscription(ctx,
		`SELECT`+subscriptionColumns+` FROM subscriptions WHERE account_id = $1`, accountID)
}

// GetSubscriptionStatus implements entitlement.StatusProvider.
func (s *PGBillingStore) GetSubscriptionStatus(ctx context.Context, accountID uuid.UUID) (*entitlement.SubscriptionRecord, error) {
	record, err := s.Get(ctx, accountID)
	if err != nil {
		if errors.Is(err, entitlement.ErrSubscriptionNotFound) {
			return nil, err
		}
		return nil, errors.Join(entitlement.ErrSubscriptionQueryFailed, err)
	}
	return record, nil
}

// GetByOriginalTransactionID implements reconciler.SubscriptionStore.
func (s *PGBillingStore) GetByOriginalTransactionID(ctx context.Context, originalTransactionID string) (*entitlement.SubscriptionRecord, error) {
	return s.querySubscription(ctx,
		`SELECT`+subscriptionColumns+` FROM subscriptions WHERE original_transaction_id = $1`, originalTransactionID)
}

func (s *PGBillingStore) querySubscription(ctx context.Context, query string, arg any) (*entitlement.SubscriptionRecord, error) {
	var (
		record    entitlement.SubscriptionRecord
		subType   string
		expiresAt *time.Time
	)
	err := s.pool.QueryRow(ctx, query, arg).Scan(
		&record.AccountID, &subType, &record.ProductID, &record.OriginalTransactionID,
		&record.IsActive, &record.AutoRenew, &expiresAt, &record.UpdatedAt,
	)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, entitlement.ErrSubscriptionNotFound
		}
		return nil, err
	}
	record.Type = entitlement.SubscriptionType(subType)
	record.ExpiresAt = expiresAt
	return &record, nil
}

// Save implements reconciler.SubscriptionStore as an upsert keyed by account.
func (s *PGBillingStore) Save(ctx context.Context, record *entitlement.SubscriptionRecord) error {
	const query = `
		INSERT INTO subscriptions (
			account_id, type, product_id, original_transaction_id,
			is_active, auto_renew, expires_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (account_id) DO UPDATE SET
			type = EXCLUDED.type,
			product_id = EXCLUDED.product_id,
			original_transaction_id = EXCLUDED.original_transaction_id,
			is_active = EXCLUDED.is_active,
			auto_renew = EXCLUDED.auto_renew,
			expires_at = EXCLUDED.expires_at,
			updated_at = EXCLUDED.updated_at`

	_, err := s.pool.Exec(ctx, query,
		record.AccountID, string(record.Type), record.ProductID, record.OriginalTransactionID,
		record.IsActive, record.AutoRenew, record.ExpiresAt, record.UpdatedAt,
	)
	return err
}

// InsertOwnedPackage implements reconciler.PackageStore. The unique index on
// transaction_id turns a redelivered insert into ErrPackageAlreadyRecorded.
func (s *PGBillingStore) InsertOwnedPackage(ctx context.Context, pkg entitlement.OwnedPackage) error {
	const query = `
		INSERT INTO owned_packages (
			account_id, product_id, transaction_id, purchased_at, expires_at
		) VALUES ($1, $2, $3, $4, $5)`

	_, err := s.pool.Exec(ctx, query,
		pkg.AccountID, pkg.ProductID, pkg.TransactionID, pkg.PurchasedAt, pkg.ExpiresAt,
	)
	if err != nil {
		if pg.IsDuplicateKeyError(err) {
			return reconciler.ErrPackageAlreadyRecorded
		}
		return err
	}
	return nil
}

// ListOwnedPackages implements entitlement.PackageStore.
func (s *PGBillingStore) ListOwnedPackages(ctx context.Context, accountID uuid.UUID) ([]entitlement.OwnedPackage, error) {
	const query = `
		SELECT account_id, product_id, transaction_id, purchased_at, expires_at
		FROM owned_packages
		WHERE account_id = $1
		ORDER BY purchased_at`

	rows, err := s.pool.Query(ctx, query, accountID)
	if err != nil {
		return nil, errors.Join(entitlement.ErrFailedToListPackages, err)
	}
	defer rows.Close()

	var packages []entitlement.OwnedPackage
	for rows.Next() {
		var pkg entitlement.OwnedPackage
		if err := rows.Scan(&pkg.AccountID, &pkg.ProductID, &pkg.TransactionID, &pkg.PurchasedAt, &pkg.ExpiresAt); err != nil {
			return nil, err
		}
		packages = append(packages, pkg)
	}
	return packages, rows.Err()
}

// IsProcessed implements reconciler.ProcessedEventStore.
func (s *PGBillingStore) IsProcessed(ctx context.Context, transactionID string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM processed_events WHERE transaction_id = $1)`

	var exists bool
	if err := s.pool.QueryRow(ctx, query, transactionID).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// MarkProcessed implements reconciler.ProcessedEventStore.
func (s *PGBillingStore) MarkProcessed(ctx context.Context, transactionID string) error {
	const query = `INSERT INTO processed_events (transaction_id, processed_at) VALUES ($1, now())`

	_, err := s.pool.Exec(ctx, query, transactionID)
	if err != nil {
		if pg.IsDuplicateKeyError(err) {
			return reconciler.ErrEventAlreadyProcessed
		}
		return err
	}
	return nil
}
