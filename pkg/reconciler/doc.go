// Package reconciler applies payment-provider lifecycle events to persisted
// subscription and ledger state.
//
// Deliveries arrive possibly duplicated and out of order, so every event
// carries a unique transaction identifier checked against a persisted
// processed set before anything is applied. Subscription expirations only
// move forward; a stale delivery can never shorten a valid entitlement.
// Consumable package purchases insert an ownership row and materialize their
// credit capacity into the account's purchased bucket through the
// consumption service's versioned write path.
package reconciler
