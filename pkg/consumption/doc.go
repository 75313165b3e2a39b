// Package consumption wraps the pure credit-ledger arithmetic with the
// transactional discipline the product needs: all-or-nothing consumption,
// at-most-once application per idempotency key, and optimistic concurrency
// across devices.
//
// The ledger is a durable, multi-writer resource. Every mutation goes through
// a read-modify-write cycle conditional on the stored version; conflicts are
// retried a bounded number of times before surfacing ErrLedgerConflict.
// Idempotency keys are enforced by a persisted uniqueness constraint in the
// store because the service runs as multiple stateless instances.
//
// A replayed TryConsume is answered from the committed transaction record and
// reports the same split and remaining balance as the original call; it is a
// success to the caller, never an error.
package consumption
