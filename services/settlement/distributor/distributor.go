package distributor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"

	"solstice/core/epoch"
	"solstice/native/rewards"
	"solstice/observability/metrics"
	"solstice/services/settlement/snapshot"
	"solstice/services/settlement/store"
)

// SnapshotSource supplies the weighted participant set for a week.
type SnapshotSource interface {
	Get(ctx context.Context, week int64) (rewards.Snapshot, error)
}

// PoolBSource supplies the stable-pool budget for a week.
type PoolBSource interface {
	Balance(ctx context.Context, week int64) (*big.Int, error)
}

// Skip reasons reported in Result.Skipped.
const (
	SkipAlreadyProcessed = "already processed"
	SkipNotReady         = "snapshot not ready"
	SkipEmptySnapshot    = "empty snapshot"
)

// Config captures the dependencies required to construct a Distributor.
type Config struct {
	Store     *store.Store
	Snapshots SnapshotSource
	PoolB     PoolBSource
	PoolA     *big.Int
	Clock     epoch.Clock
	Logger    *slog.Logger
}

// Distributor settles one week of rewards: snapshot, pool split, commitment
// proofs, and a single atomic persistence step.
type Distributor struct {
	store     *store.Store
	snapshots SnapshotSource
	poolB     PoolBSource
	poolA     *big.Int
	clock     epoch.Clock
	logger    *slog.Logger
}

// Result reports what a run did. Advanced is false when the idempotency
// guard short-circuited or the run was skipped.
type Result struct {
	Advanced bool
	Skipped  string
	Outcome  *rewards.Outcome
}

// New builds a configured distributor.
func New(cfg Config) (*Distributor, error) {
	if cfg.Store == nil {
		return nil, errors.New("distributor: store is required")
	}
	if cfg.Snapshots == nil {
		return nil, errors.New("distributor: snapshot source is required")
	}
	if cfg.PoolB == nil {
		return nil, errors.New("distributor: pool B source is required")
	}
	if cfg.PoolA == nil || cfg.PoolA.Sign() < 0 {
		return nil, errors.New("distributor: pool A budget is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Distributor{
		store:     cfg.Store,
		snapshots: cfg.Snapshots,
		poolB:     cfg.PoolB,
		poolA:     new(big.Int).Set(cfg.PoolA),
		clock:     cfg.Clock,
		logger:    logger,
	}, nil
}

// Run executes the weekly distribution for the supplied week. Re-running a
// processed week returns Advanced=false with zero writes. The snapshot for
// week N reflects activity completed in week N-1; that one-week reporting
// lag is a protocol constant.
func (d *Distributor) Run(ctx context.Context, week int64) (Result, error) {
	m := metrics.Settlement()

	processed, err := d.store.WeekProcessed(ctx, week)
	if err != nil {
		return Result{}, fmt.Errorf("distributor: idempotency check: %w", err)
	}
	if processed {
		d.logger.Info("week already processed", "week", week)
		m.ObserveDistributorRun("noop")
		return Result{Advanced: false, Skipped: SkipAlreadyProcessed}, nil
	}

	snap, err := d.snapshots.Get(ctx, week-1)
	if err != nil {
		if errors.Is(err, snapshot.ErrNotReady) {
			d.logger.Warn("snapshot not ready, skipping run", "week", week)
			m.ObserveSnapshotSkip()
			m.ObserveDistributorRun("skipped")
			return Result{Advanced: false, Skipped: SkipNotReady}, nil
		}
		m.ObserveDistributorRun("error")
		return Result{}, fmt.Errorf("distributor: fetch snapshot: %w", err)
	}
	if len(snap.Entries) == 0 {
		d.logger.Info("empty snapshot, nothing to distribute", "week", week)
		m.ObserveDistributorRun("empty")
		return Result{Advanced: false, Skipped: SkipEmptySnapshot}, nil
	}
	snap.Week = week

	poolB, err := d.poolB.Balance(ctx, week)
	if err != nil {
		// Reward computation never blocks on a transient RPC fault; the
		// stable pool degrades to zero for this run.
		d.logger.Error("pool B oracle failed, treating as zero", "week", week, "err", err)
		m.ObserveOracleFailure()
		poolB = big.NewInt(0)
	}

	outcome, err := rewards.Compute(snap, rewards.Pools{A: d.poolA, B: poolB})
	if err != nil {
		if errors.Is(err, rewards.ErrPoolExceeded) {
			m.ObserveInvariantAbort()
			m.ObserveDistributorRun("invariant_abort")
			return Result{}, fmt.Errorf("distributor: aborting week %d: %w", week, err)
		}
		m.ObserveDistributorRun("error")
		return Result{}, fmt.Errorf("distributor: compute week %d: %w", week, err)
	}

	if err := d.store.SaveWeek(ctx, outcome); err != nil {
		m.ObserveDistributorRun("error")
		return Result{}, fmt.Errorf("distributor: persist week %d: %w", week, err)
	}

	m.AddRewardRows(len(outcome.Payouts))
	m.ObserveDistributorRun("ok")
	remA, _ := new(big.Float).SetInt(outcome.RemainderA).Float64()
	remB, _ := new(big.Float).SetInt(outcome.RemainderB).Float64()
	m.SetWeeklyRemainder("a", remA)
	m.SetWeeklyRemainder("b", remB)

	d.logger.Info("week distributed",
		"week", week,
		"wallets", len(outcome.Payouts),
		"root", outcome.Root.Hex(),
		"paidA", outcome.TotalPaidA.String(),
		"paidB", outcome.TotalPaidB.String(),
	)
	return Result{Advanced: true, Outcome: outcome}, nil
}

// RunWeek adapts Run to the scheduler's Runner interface. A week whose
// snapshot has not been published reports false so the scheduler retries it
// before settling any later week; already-processed and genuinely empty
// weeks count as settled.
func (d *Distributor) RunWeek(ctx context.Context, week int64) (bool, error) {
	res, err := d.Run(ctx, week)
	if err != nil {
		return false, err
	}
	if res.Skipped == SkipNotReady {
		return false, nil
	}
	return true, nil
}

// LastSettledWeek reports the most recent week with persisted reward rows.
func (d *Distributor) LastSettledWeek(ctx context.Context) (int64, bool, error) {
	return d.store.LastRewardWeek(ctx)
}
