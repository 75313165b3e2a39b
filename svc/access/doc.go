// Package access exposes the entitlement core over HTTP: per-attraction
// credit consumption, entitlement snapshot reads, and the billing webhook
// endpoint. It also provides the PostgreSQL persistence layer and an
// advisory Redis cache for snapshots.
package access
