// Package entitlement computes the single snapshot of what an account may do:
// unlimited access from a subscription, or a credit limit derived from the
// free baseline plus owned guide packages.
//
// The snapshot is advisory-but-authoritative for UI purposes only. It can be
// stale relative to a concurrent transaction on another device, so the
// binding double-spend check lives in the consumption policy, not here.
//
// The resolver fails safe: if the subscription status cannot be determined it
// proceeds as if the account were on the free tier. No error path ever grants
// unlimited access.
package entitlement
