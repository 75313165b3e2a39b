// Package catalog maps payment-provider product identifiers to their product
// family and credit capacity.
//
// The family tag (unlimited subscription vs consumable package) is resolved
// exactly once, when an event is ingested, and carried structurally from then
// on. Legacy product tiers are first-class catalog entries so grandfathered
// subscribers keep unlimited access without string matching on product ids.
package catalog
