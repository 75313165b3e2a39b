package consumption

import "errors"

var (
	ErrInsufficientCredits    = errors.New("insufficient credits")
	ErrMissingIdempotencyKey  = errors.New("idempotency key is required")
	ErrLedgerNotFound         = errors.New("credit ledger not found")
	ErrLedgerAlreadyExists    = errors.New("credit ledger already exists")
	ErrVersionConflict        = errors.New("ledger version conflict")
	ErrDuplicateTransaction   = errors.New("transaction already recorded")
	ErrTransactionNotFound    = errors.New("transaction not found")
	ErrLedgerConflict         = errors.New("ledger conflict retries exhausted")
	ErrFailedToPersistLedger  = errors.New("failed to persist ledger")
	ErrFailedToFetchLedger    = errors.New("failed to fetch ledger")
)
