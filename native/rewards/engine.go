package rewards

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"solstice/core/fixedpoint"
	"solstice/core/merkle"
)

// Compute derives the full weekly distribution for a snapshot: per-wallet
// proportional splits of both pools, the commitment root, and one inclusion
// proof per wallet. The function is pure; persistence and external lookups
// live with the caller.
func Compute(snapshot Snapshot, pools Pools) (*Outcome, error) {
	if len(snapshot.Entries) == 0 {
		return nil, ErrEmptySnapshot
	}
	poolA := normalize(pools.A)
	poolB := normalize(pools.B)

	totalA := big.NewInt(0)
	totalB := big.NewInt(0)
	for _, entry := range snapshot.Entries {
		if (entry.WeightA != nil && entry.WeightA.Sign() < 0) || (entry.WeightB != nil && entry.WeightB.Sign() < 0) {
			return nil, fmt.Errorf("%w: wallet %s", ErrNegativeWeight, entry.Wallet.Hex())
		}
		totalA.Add(totalA, normalize(entry.WeightA))
		totalB.Add(totalB, normalize(entry.WeightB))
	}

	outcome := &Outcome{
		Week:         snapshot.Week,
		TotalWeightA: totalA,
		TotalWeightB: totalB,
		TotalPaidA:   big.NewInt(0),
		TotalPaidB:   big.NewInt(0),
		Payouts:      make([]Payout, 0, len(snapshot.Entries)),
	}

	leaves := make([]common.Hash, 0, len(snapshot.Entries))
	for i, entry := range snapshot.Entries {
		weightA := normalize(entry.WeightA)
		weightB := normalize(entry.WeightB)
		leafA, overflow := uint256.FromBig(weightA)
		if overflow {
			return nil, fmt.Errorf("%w: wallet %s weightA", ErrWeightOverflow, entry.Wallet.Hex())
		}
		leafB, overflow := uint256.FromBig(weightB)
		if overflow {
			return nil, fmt.Errorf("%w: wallet %s weightB", ErrWeightOverflow, entry.Wallet.Hex())
		}
		leaves = append(leaves, merkle.Leaf(entry.Wallet, leafA, leafB))

		rewardA := fixedpoint.ProportionalSplit(weightA, totalA, poolA)
		rewardB := fixedpoint.ProportionalSplit(weightB, totalB, poolB)
		outcome.TotalPaidA.Add(outcome.TotalPaidA, rewardA)
		outcome.TotalPaidB.Add(outcome.TotalPaidB, rewardB)
		outcome.Payouts = append(outcome.Payouts, Payout{
			Wallet:    entry.Wallet,
			WeightA:   weightA,
			WeightB:   weightB,
			RewardA:   rewardA,
			RewardB:   rewardB,
			LeafIndex: i,
		})
	}

	if outcome.TotalPaidA.Cmp(poolA) > 0 {
		return nil, fmt.Errorf("%w: pool A paid %s budget %s", ErrPoolExceeded, outcome.TotalPaidA, poolA)
	}
	if outcome.TotalPaidB.Cmp(poolB) > 0 {
		return nil, fmt.Errorf("%w: pool B paid %s budget %s", ErrPoolExceeded, outcome.TotalPaidB, poolB)
	}
	outcome.RemainderA = new(big.Int).Sub(poolA, outcome.TotalPaidA)
	outcome.RemainderB = new(big.Int).Sub(poolB, outcome.TotalPaidB)

	tree, err := merkle.NewTree(leaves)
	if err != nil {
		return nil, err
	}
	outcome.Root = tree.Root()
	for i := range outcome.Payouts {
		proof, err := tree.Proof(i)
		if err != nil {
			return nil, err
		}
		outcome.Payouts[i].Proof = proof
	}
	return outcome, nil
}

func normalize(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
