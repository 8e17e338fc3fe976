package models

// Tier represents an agent capability tier, ordered from cheapest to deepest.
type Tier string

const (
	// TierCheap is for fast, inexpensive work.
	TierCheap Tier = "cheap"
	// TierStandard is for typical implementation work.
	TierStandard Tier = "standard"
	// TierDeep is for complex work requiring the most capable backend.
	TierDeep Tier = "deep"
)

// Valid returns true if the tier is a known value.
func (t Tier) Valid() bool {
	switch t {
	case TierCheap, TierStandard, TierDeep:
		return true
	default:
		return false
	}
}

// Rank returns the ordinal position of the tier, cheapest first.
// Unknown tiers rank after every known tier.
func (t Tier) Rank() int {
	switch t {
	case TierCheap:
		return 0
	case TierStandard:
		return 1
	case TierDeep:
		return 2
	default:
		return 3
	}
}
