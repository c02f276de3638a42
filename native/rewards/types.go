package rewards

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Entry is one wallet's weighted position in a weekly snapshot. WeightA is
// the primary-token share basis and WeightB the stable-pool share basis; the
// two pools split independently.
type Entry struct {
	Wallet  common.Address
	WeightA *big.Int
	WeightB *big.Int
}

// Snapshot carries the full participant set used to settle one week.
// Entries are consumed once and never mutated.
type Snapshot struct {
	Week    int64
	Entries []Entry
}

// Pools holds the two reward budgets for a week, in scale-6 token units.
type Pools struct {
	A *big.Int
	B *big.Int
}

// Payout is the computed allocation for a single wallet, together with the
// inclusion proof that lets the wallet claim against the external verifier.
type Payout struct {
	Wallet    common.Address
	WeightA   *big.Int
	WeightB   *big.Int
	RewardA   *big.Int
	RewardB   *big.Int
	LeafIndex int
	Proof     []common.Hash
}

// Outcome summarises a full weekly distribution run.
type Outcome struct {
	Week         int64
	Root         common.Hash
	TotalWeightA *big.Int
	TotalWeightB *big.Int
	TotalPaidA   *big.Int
	TotalPaidB   *big.Int
	RemainderA   *big.Int
	RemainderB   *big.Int
	Payouts      []Payout
}
