package distributor

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"solstice/core/epoch"
	"solstice/native/rewards"
	"solstice/services/settlement/models"
	"solstice/services/settlement/snapshot"
	"solstice/services/settlement/store"
)

type stubSnapshots struct {
	snaps map[int64]rewards.Snapshot
	err   error
	calls int
}

func (s *stubSnapshots) Get(ctx context.Context, week int64) (rewards.Snapshot, error) {
	s.calls++
	if s.err != nil {
		return rewards.Snapshot{}, s.err
	}
	snap, ok := s.snaps[week]
	if !ok {
		return rewards.Snapshot{}, snapshot.ErrNotReady
	}
	return snap, nil
}

type stubPoolB struct {
	balance *big.Int
	err     error
}

func (s *stubPoolB) Balance(ctx context.Context, week int64) (*big.Int, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.balance, nil
}

func setupStore(t *testing.T) *store.Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("sqlite open: %v", err)
	}
	if err := models.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return store.New(db, epoch.NewClock(1_000_000))
}

func wallet(i byte) common.Address {
	return common.BytesToAddress([]byte{i})
}

func twoEntrySnapshot(week int64) rewards.Snapshot {
	return rewards.Snapshot{
		Week: week,
		Entries: []rewards.Entry{
			{Wallet: wallet(1), WeightA: big.NewInt(100), WeightB: big.NewInt(10)},
			{Wallet: wallet(2), WeightA: big.NewInt(300), WeightB: big.NewInt(30)},
		},
	}
}

func newDistributor(t *testing.T, st *store.Store, snaps SnapshotSource, poolB PoolBSource) *Distributor {
	t.Helper()
	d, err := New(Config{
		Store:     st,
		Snapshots: snaps,
		PoolB:     poolB,
		PoolA:     big.NewInt(1_000_000),
		Clock:     epoch.NewClock(1_000_000),
	})
	if err != nil {
		t.Fatalf("new distributor: %v", err)
	}
	return d
}

func TestRunDistributesAndIsIdempotent(t *testing.T) {
	st := setupStore(t)
	snaps := &stubSnapshots{snaps: map[int64]rewards.Snapshot{4: twoEntrySnapshot(4)}}
	d := newDistributor(t, st, snaps, &stubPoolB{balance: big.NewInt(40_000)})

	ctx := context.Background()
	res, err := d.Run(ctx, 5)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !res.Advanced {
		t.Fatalf("first run should advance, skipped: %q", res.Skipped)
	}
	if res.Outcome.Week != 5 {
		t.Fatalf("outcome week = %d, want 5", res.Outcome.Week)
	}
	if got := res.Outcome.Payouts[0].RewardA.String(); got != "250000" {
		t.Fatalf("payout A = %s, want 250000", got)
	}

	res, err = d.Run(ctx, 5)
	if err != nil {
		t.Fatalf("re-run: %v", err)
	}
	if res.Advanced {
		t.Fatal("re-running a processed week must not advance")
	}
	if snaps.calls != 1 {
		t.Fatalf("snapshot fetched %d times, guard should stop the second run before it", snaps.calls)
	}
	rows, err := st.WalletRewards(ctx, wallet(1))
	if err != nil {
		t.Fatalf("wallet rewards: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("wallet has %d reward rows, want 1", len(rows))
	}
}

func TestRunFetchesSnapshotForPreviousWeek(t *testing.T) {
	st := setupStore(t)
	snaps := &stubSnapshots{snaps: map[int64]rewards.Snapshot{7: twoEntrySnapshot(7)}}
	d := newDistributor(t, st, snaps, &stubPoolB{balance: big.NewInt(0)})

	res, err := d.Run(context.Background(), 8)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !res.Advanced {
		t.Fatalf("run skipped: %q", res.Skipped)
	}
	if res.Outcome.Week != 8 {
		t.Fatalf("outcome recorded for week %d, want 8", res.Outcome.Week)
	}
}

func TestRunSkipsWhenSnapshotNotReady(t *testing.T) {
	st := setupStore(t)
	d := newDistributor(t, st, &stubSnapshots{snaps: map[int64]rewards.Snapshot{}}, &stubPoolB{balance: big.NewInt(0)})

	res, err := d.Run(context.Background(), 3)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Advanced || res.Skipped != SkipNotReady {
		t.Fatalf("unexpected result: %+v", res)
	}
	processed, err := st.WeekProcessed(context.Background(), 3)
	if err != nil {
		t.Fatalf("week processed: %v", err)
	}
	if processed {
		t.Fatal("skipped week must remain unprocessed so a later run can settle it")
	}
}

func TestRunPropagatesSnapshotErrors(t *testing.T) {
	st := setupStore(t)
	d := newDistributor(t, st, &stubSnapshots{err: errors.New("boom")}, &stubPoolB{balance: big.NewInt(0)})

	if _, err := d.Run(context.Background(), 3); err == nil {
		t.Fatal("expected error for non-retryable snapshot failure")
	}
}

func TestRunSkipsEmptySnapshot(t *testing.T) {
	st := setupStore(t)
	snaps := &stubSnapshots{snaps: map[int64]rewards.Snapshot{1: {Week: 1}}}
	d := newDistributor(t, st, snaps, &stubPoolB{balance: big.NewInt(0)})

	res, err := d.Run(context.Background(), 2)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Advanced || res.Skipped != SkipEmptySnapshot {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestRunDegradesPoolBToZeroOnOracleFailure(t *testing.T) {
	st := setupStore(t)
	snaps := &stubSnapshots{snaps: map[int64]rewards.Snapshot{4: twoEntrySnapshot(4)}}
	d := newDistributor(t, st, snaps, &stubPoolB{err: errors.New("rpc timeout")})

	res, err := d.Run(context.Background(), 5)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !res.Advanced {
		t.Fatalf("oracle failure must not block settlement, skipped: %q", res.Skipped)
	}
	if res.Outcome.TotalPaidB.Sign() != 0 {
		t.Fatalf("pool B paid %s, want 0 after oracle failure", res.Outcome.TotalPaidB)
	}
	if res.Outcome.TotalPaidA.Sign() <= 0 {
		t.Fatal("pool A must still pay out")
	}
}

func TestRunWeekSatisfiesRunner(t *testing.T) {
	st := setupStore(t)
	snaps := &stubSnapshots{snaps: map[int64]rewards.Snapshot{4: twoEntrySnapshot(4)}}
	d := newDistributor(t, st, snaps, &stubPoolB{balance: big.NewInt(0)})

	var r Runner = d
	ctx := context.Background()

	if _, ok, err := r.LastSettledWeek(ctx); err != nil || ok {
		t.Fatalf("fresh store: last settled = (%v, %v), want none", ok, err)
	}

	advanced, err := r.RunWeek(ctx, 5)
	if err != nil {
		t.Fatalf("run week: %v", err)
	}
	if !advanced {
		t.Fatal("settled week should report advanced")
	}
	last, ok, err := r.LastSettledWeek(ctx)
	if err != nil || !ok || last != 5 {
		t.Fatalf("last settled = (%d, %v, %v), want (5, true, nil)", last, ok, err)
	}

	// Week 6 has no snapshot yet; the runner must report it unsettleable
	// rather than succeed or error, so the scheduler retries it later.
	advanced, err = r.RunWeek(ctx, 6)
	if err != nil {
		t.Fatalf("run week 6: %v", err)
	}
	if advanced {
		t.Fatal("week without a snapshot must not report advanced")
	}
}
