package referral

import "solstice/core/fixedpoint"

// Tier names, lowest to highest.
const (
	TierSeed   = "Seed"
	TierGrow   = "Grow"
	TierScale  = "Scale"
	TierLegend = "Legend"
)

// Tier couples a share percentage with the minimum active referral count
// required to hold it.
type Tier struct {
	Name      string
	Percent   uint64
	MinActive uint64
}

// tierTable is ordered by descending threshold; the first match wins.
var tierTable = []Tier{
	{Name: TierLegend, Percent: 20, MinActive: 7},
	{Name: TierScale, Percent: 15, MinActive: 4},
	{Name: TierGrow, Percent: 10, MinActive: 2},
	{Name: TierSeed, Percent: 5, MinActive: 1},
}

// NextTier describes how far a referrer is from the next bracket.
type NextTier struct {
	Name             string
	AdditionalActive uint64
}

// TierStatus is the resolved bracket for a referrer, with progression info
// when the referrer is eligible to advance.
type TierStatus struct {
	Name    string
	Percent uint64
	Next    *NextTier
}

// TierFor resolves a referrer's share bracket from their active referral
// count. A referrer whose own base points for the window are not strictly
// positive is pinned to the lowest tier at zero percent no matter how large
// their network is.
func TierFor(activeCount uint64, referrerBase fixedpoint.Dec6) TierStatus {
	if referrerBase.Sign() <= 0 {
		return TierStatus{Name: TierSeed, Percent: 0}
	}
	for i, tier := range tierTable {
		if activeCount >= tier.MinActive {
			status := TierStatus{Name: tier.Name, Percent: tier.Percent}
			if i > 0 {
				next := tierTable[i-1]
				status.Next = &NextTier{Name: next.Name, AdditionalActive: next.MinActive - activeCount}
			}
			return status
		}
	}
	// Zero active referrals: lowest tier in name only, no share.
	return TierStatus{Name: TierSeed, Percent: 0, Next: &NextTier{Name: TierSeed, AdditionalActive: 1}}
}

// ReferrerShare computes the referrer's cut of a referee's weekly base
// points: basePoints * percent / 100, truncating.
func ReferrerShare(refereeBase fixedpoint.Dec6, activeCount uint64, referrerBase fixedpoint.Dec6) fixedpoint.Dec6 {
	return refereeBase.MulPercent(TierFor(activeCount, referrerBase).Percent)
}
