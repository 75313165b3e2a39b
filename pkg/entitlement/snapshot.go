package entitlement

import "math"

// UnlimitedLimit is the sentinel reported as TotalLimit and Remaining for
// unlimited subscribers. Effectively unbounded for a feature that produces
// one guide per attraction.
const UnlimitedLimit = math.MaxInt32

// Snapshot is the computed, read-only view of what an account may currently
// do. It is recomputed on demand and never a source of truth: the binding
// double-spend check happens in the consumption policy at the moment of use,
// because a snapshot can be stale relative to a concurrent transaction on
// another device.
type Snapshot struct {
	HasUnlimitedAccess bool     `json:"has_unlimited_access"`
	TotalLimit         int      `json:"total_limit"`
	Used               int      `json:"used"`
	Remaining          int      `json:"remaining"`
	OwnedPackageIDs    []string `json:"owned_package_ids"`
}
