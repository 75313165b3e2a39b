package catalog

// Family classifies a product once at ingestion time. Lifecycle handling
// branches on this tag instead of re-deriving the family from product id
// substrings.
type Family string

const (
	// FamilyUnlimited marks subscription products that bypass the credit
	// ledger entirely while active.
	FamilyUnlimited Family = "unlimited"
	// FamilyPackage marks consumable packages that add guide credits.
	FamilyPackage Family = "package"
)

// Tier is the subscription tier an unlimited-family product grants. Legacy
// tiers exist only for backward compatibility with historical product ids and
// must behave identically to the current unlimited tier.
type Tier string

const (
	TierUnlimited      Tier = "unlimited"
	TierLegacyMonthly  Tier = "legacy_monthly"
	TierLegacyYearly   Tier = "legacy_yearly"
	TierLegacyLifetime Tier = "legacy_lifetime"
)

// Money represents a monetary amount in the smallest currency unit.
// For example, $4.99 USD would be Amount: 499, Currency: "USD".
type Money struct {
	Amount   int64  `yaml:"amount"`
	Currency string `yaml:"currency"`
}

// Product describes a purchasable item as the payment provider knows it.
// The ID must match the provider's product/price identifier so lifecycle
// events can be resolved without guessing.
type Product struct {
	ID              string `yaml:"id"`
	Name            string `yaml:"name"`
	Family          Family `yaml:"family"`
	Tier            Tier   `yaml:"tier,omitempty"`             // unlimited family only
	AttractionLimit int    `yaml:"attraction_limit,omitempty"` // package family only
	Price           Money  `yaml:"price"`
}

// IsLegacy reports whether the product grants one of the grandfathered tiers.
func (p Product) IsLegacy() bool {
	switch p.Tier {
	case TierLegacyMonthly, TierLegacyYearly, TierLegacyLifetime:
		return true
	}
	return false
}
