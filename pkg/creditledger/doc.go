// Package creditledger implements the two-bucket credit arithmetic behind the
// narrated-guide freemium model.
//
// A ledger splits credits by origin: promotional trial credits and purchased
// credits. Consumption drains trial credits first, refunds restore purchased
// credits first. Both operations saturate at their boundary instead of
// failing, which makes them safe building blocks for corrective flows where
// partial application is the desired behavior.
//
// All functions are pure and operate on immutable values; no I/O, no global
// state. Cross-device safety is the responsibility of the persistence layer
// (see the consumption package).
//
// Note that consume followed by refund of the same amount is not idempotent
// at the bucket level because of the opposing priority orders, even though
// Available and Total are restored. That asymmetry is intentional.
package creditledger
