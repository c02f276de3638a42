package referral

import (
	"github.com/ethereum/go-ethereum/common"

	"solstice/core/fixedpoint"
)

// ActivationInput is one pending referral considered for activation at the
// end of a week.
type ActivationInput struct {
	Referee   common.Address
	Status    Status
	Awarded   bool
	StartWeek int64
}

// ActivationCandidates returns the referees whose cumulative base points
// since their activation start week (the week they linked) have reached the
// threshold. Only pending referrals that have not yet been awarded their
// bonus qualify; each candidate is awarded exactly once by the caller.
//
// historical must cover finalized weeks in [StartWeek, endWeek) and thisWeek
// the live projection for endWeek; points earned before the link week never
// count toward activation.
func ActivationCandidates(
	referrals []ActivationInput,
	thisWeek map[common.Address]fixedpoint.Dec6,
	historical map[common.Address]fixedpoint.Dec6,
	endWeek int64,
	threshold fixedpoint.Dec6,
) []common.Address {
	candidates := make([]common.Address, 0)
	for _, ref := range referrals {
		if ref.Status != StatusPending || ref.Awarded {
			continue
		}
		if ref.StartWeek > endWeek {
			continue
		}
		total := historical[ref.Referee].Add(thisWeek[ref.Referee])
		if total.Cmp(threshold) >= 0 {
			candidates = append(candidates, ref.Referee)
		}
	}
	return candidates
}
