package rewards

import (
	"errors"
	"math/big"
	"math/rand"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"solstice/core/merkle"
)

func wallet(i byte) common.Address {
	return common.BytesToAddress([]byte{i})
}

func TestComputeProportionalSplit(t *testing.T) {
	snapshot := Snapshot{
		Week: 12,
		Entries: []Entry{
			{Wallet: wallet(1), WeightA: big.NewInt(100), WeightB: big.NewInt(0)},
			{Wallet: wallet(2), WeightA: big.NewInt(300), WeightB: big.NewInt(50)},
		},
	}
	pools := Pools{A: big.NewInt(1_000_000), B: big.NewInt(500_000)}

	outcome, err := Compute(snapshot, pools)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if outcome.Payouts[0].RewardA.Int64() != 250_000 {
		t.Fatalf("wallet 1 rewardA = %s, want 250000", outcome.Payouts[0].RewardA)
	}
	if outcome.Payouts[1].RewardA.Int64() != 750_000 {
		t.Fatalf("wallet 2 rewardA = %s, want 750000", outcome.Payouts[1].RewardA)
	}
	if outcome.Payouts[0].RewardB.Sign() != 0 {
		t.Fatalf("wallet 1 rewardB = %s, want 0", outcome.Payouts[0].RewardB)
	}
	if outcome.Payouts[1].RewardB.Int64() != 500_000 {
		t.Fatalf("wallet 2 rewardB = %s, want 500000", outcome.Payouts[1].RewardB)
	}
	if outcome.TotalPaidA.Int64() != 1_000_000 || outcome.RemainderA.Sign() != 0 {
		t.Fatalf("pool A accounting mismatch: paid %s remainder %s", outcome.TotalPaidA, outcome.RemainderA)
	}
}

func TestComputeZeroTotalWeight(t *testing.T) {
	snapshot := Snapshot{
		Week: 3,
		Entries: []Entry{
			{Wallet: wallet(1), WeightA: big.NewInt(0), WeightB: big.NewInt(10)},
			{Wallet: wallet(2), WeightA: big.NewInt(0), WeightB: big.NewInt(30)},
		},
	}
	outcome, err := Compute(snapshot, Pools{A: big.NewInt(1_000_000), B: big.NewInt(0)})
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	for _, payout := range outcome.Payouts {
		if payout.RewardA.Sign() != 0 {
			t.Fatalf("rewardA must be zero when total weight A is zero, got %s", payout.RewardA)
		}
		if payout.RewardB.Sign() != 0 {
			t.Fatalf("rewardB must be zero when pool B is zero, got %s", payout.RewardB)
		}
	}
}

func TestComputeTruncationNeverExceedsPool(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for iter := 0; iter < 100; iter++ {
		n := 1 + rng.Intn(25)
		entries := make([]Entry, n)
		for i := range entries {
			entries[i] = Entry{
				Wallet:  common.BytesToAddress([]byte{byte(iter), byte(i + 1)}),
				WeightA: big.NewInt(rng.Int63n(1_000_000)),
				WeightB: big.NewInt(rng.Int63n(1_000_000)),
			}
		}
		pools := Pools{A: big.NewInt(rng.Int63n(10_000_000_000)), B: big.NewInt(rng.Int63n(10_000_000_000))}
		outcome, err := Compute(Snapshot{Week: int64(iter), Entries: entries}, pools)
		if err != nil {
			t.Fatalf("iteration %d: %v", iter, err)
		}
		if outcome.TotalPaidA.Cmp(pools.A) > 0 {
			t.Fatalf("iteration %d: paid A %s exceeds pool %s", iter, outcome.TotalPaidA, pools.A)
		}
		if outcome.TotalPaidB.Cmp(pools.B) > 0 {
			t.Fatalf("iteration %d: paid B %s exceeds pool %s", iter, outcome.TotalPaidB, pools.B)
		}
	}
}

func TestComputeProofsVerify(t *testing.T) {
	entries := make([]Entry, 5)
	for i := range entries {
		entries[i] = Entry{
			Wallet:  wallet(byte(i + 1)),
			WeightA: big.NewInt(int64(i+1) * 10),
			WeightB: big.NewInt(int64(i+1) * 3),
		}
	}
	outcome, err := Compute(Snapshot{Week: 1, Entries: entries}, Pools{A: big.NewInt(100), B: big.NewInt(100)})
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	for _, payout := range outcome.Payouts {
		leafA, _ := uint256.FromBig(payout.WeightA)
		leafB, _ := uint256.FromBig(payout.WeightB)
		leaf := merkle.Leaf(payout.Wallet, leafA, leafB)
		if !merkle.Verify(outcome.Root, leaf, payout.Proof) {
			t.Fatalf("proof for wallet %s does not verify", payout.Wallet.Hex())
		}
	}
}

func TestComputeRejectsEmptyAndNegative(t *testing.T) {
	if _, err := Compute(Snapshot{}, Pools{}); !errors.Is(err, ErrEmptySnapshot) {
		t.Fatalf("expected ErrEmptySnapshot, got %v", err)
	}
	snapshot := Snapshot{Entries: []Entry{{Wallet: wallet(1), WeightA: big.NewInt(-1)}}}
	if _, err := Compute(snapshot, Pools{}); !errors.Is(err, ErrNegativeWeight) {
		t.Fatalf("expected ErrNegativeWeight, got %v", err)
	}
}
