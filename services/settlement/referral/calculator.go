package referral

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/alitto/pond/v2"
	"github.com/ethereum/go-ethereum/common"

	"solstice/core/epoch"
	"solstice/core/fixedpoint"
	rules "solstice/native/referral"
	"solstice/observability/metrics"
	"solstice/services/settlement/models"
	"solstice/services/settlement/store"
)

// PointsSource supplies a wallet's weekly base points.
type PointsSource interface {
	BasePoints(ctx context.Context, week int64, wallet common.Address) (fixedpoint.Dec6, error)
}

// Config captures the dependencies required to construct a Calculator.
type Config struct {
	Store  *store.Store
	Points PointsSource
	Clock  epoch.Clock
	// Parallelism bounds the concurrent base point fetches per run.
	Parallelism int
	Logger      *slog.Logger
}

// Calculator settles one week of referral points: per-referral proration,
// tier shares, referee bonuses, and activations, persisted in one
// transaction per week.
type Calculator struct {
	store  *store.Store
	points PointsSource
	clock  epoch.Clock
	pool   pond.ResultPool[walletPoints]
	logger *slog.Logger
}

type walletPoints struct {
	wallet common.Address
	points fixedpoint.Dec6
}

// New builds a configured calculator.
func New(cfg Config) (*Calculator, error) {
	if cfg.Store == nil {
		return nil, errors.New("referral: store is required")
	}
	if cfg.Points == nil {
		return nil, errors.New("referral: points source is required")
	}
	parallelism := cfg.Parallelism
	if parallelism <= 0 {
		parallelism = 8
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Calculator{
		store:  cfg.Store,
		points: cfg.Points,
		clock:  cfg.Clock,
		pool:   pond.NewResultPool[walletPoints](parallelism),
		logger: logger,
	}, nil
}

// RunWeek settles referral points for the supplied week. Ledger rows
// conflicting with an earlier run are left untouched, so a re-run after a
// partial failure completes the week without double counting. The week
// should already be closed when this runs; base points for an open week are
// still moving. It reports true whenever the week is settled, including the
// trivial no-referrals case.
func (c *Calculator) RunWeek(ctx context.Context, week int64) (bool, error) {
	m := metrics.Settlement()

	referrals, err := c.store.Referrals(ctx)
	if err != nil {
		return false, fmt.Errorf("referral: load referrals: %w", err)
	}
	live := referrals[:0]
	for _, ref := range referrals {
		if ref.Status != models.StatusInactive {
			live = append(live, ref)
		}
	}
	if len(live) == 0 {
		c.logger.Info("no live referrals, nothing to settle", "week", week)
		return true, nil
	}

	counts, err := c.store.ActiveReferralCounts(ctx)
	if err != nil {
		return false, fmt.Errorf("referral: count actives: %w", err)
	}

	base, err := c.fetchBasePoints(ctx, week, live)
	if err != nil {
		return false, err
	}

	historical, err := c.historicalBase(ctx, week, live)
	if err != nil {
		return false, err
	}

	weekStart, _ := c.clock.Bounds(week)
	rows := make([]store.PointsRow, 0, len(live))
	rowIndex := make(map[common.Address]int, len(live))
	thisWeek := make(map[common.Address]fixedpoint.Dec6, len(live))
	inputs := make([]rules.ActivationInput, 0, len(live))

	for _, ref := range live {
		referrer := common.HexToAddress(ref.Referrer)
		referee := common.HexToAddress(ref.Referee)

		prorated := rules.Prorate(base[referee], ref.LinkedAt, week, c.clock)
		earned := rules.ReferrerShare(prorated, counts[ref.Referrer], base[referrer])
		// The bonus rides on the same post-link base that lands in the
		// ledger, so a mid-week link earns it on the prorated share only.
		bonus := rules.RefereeBonus(prorated, weekStart, ref.BonusEndsAt)

		thisWeek[referee] = prorated
		inputs = append(inputs, rules.ActivationInput{
			Referee:   referee,
			Status:    rules.Status(ref.Status),
			Awarded:   ref.ActivationAwarded,
			StartWeek: ref.StartWeek,
		})

		if prorated.IsZero() && earned.IsZero() && bonus.IsZero() {
			continue
		}
		rowIndex[referee] = len(rows)
		rows = append(rows, store.PointsRow{
			Week:                 week,
			Referrer:             referrer,
			Referee:              referee,
			RefereeBaseUnits:     prorated.Units(),
			ReferrerEarnedUnits:  earned.Units(),
			RefereeBonusUnits:    bonus.Units(),
			ActivationBonusUnits: big.NewInt(0),
		})
	}

	activations := rules.ActivationCandidates(inputs, thisWeek, historical, week, rules.ActivationThreshold())
	for _, referee := range activations {
		idx, ok := rowIndex[referee]
		if !ok {
			// Activation can trip on historical points alone; the week still
			// gets a ledger row carrying the one-time bonus.
			idx = len(rows)
			rows = append(rows, store.PointsRow{
				Week:                 week,
				Referrer:             referrerOf(live, referee),
				Referee:              referee,
				RefereeBaseUnits:     big.NewInt(0),
				ReferrerEarnedUnits:  big.NewInt(0),
				RefereeBonusUnits:    big.NewInt(0),
				ActivationBonusUnits: big.NewInt(0),
			})
		}
		rows[idx].ActivationBonusUnits = rules.ActivationBonus().Units()
	}

	inserted, err := c.store.SaveWeeklyPoints(ctx, rows, activations)
	if err != nil {
		return false, fmt.Errorf("referral: persist week %d: %w", week, err)
	}

	m.AddReferralRows(inserted)
	m.AddActivations(len(activations))
	c.logger.Info("referral week settled",
		"week", week,
		"referrals", len(live),
		"rows", inserted,
		"activations", len(activations),
	)
	return true, nil
}

// LastSettledWeek reports the most recent week with persisted ledger rows.
func (c *Calculator) LastSettledWeek(ctx context.Context) (int64, bool, error) {
	return c.store.LastPointsWeek(ctx)
}

// fetchBasePoints loads weekly base points for every wallet a referral
// touches. A wallet whose fetch fails is degraded to zero for this run and
// picked up again next week; one flaky wallet never stalls the batch.
func (c *Calculator) fetchBasePoints(ctx context.Context, week int64, referrals []models.Referral) (map[common.Address]fixedpoint.Dec6, error) {
	wallets := make(map[common.Address]struct{}, len(referrals)*2)
	for _, ref := range referrals {
		wallets[common.HexToAddress(ref.Referee)] = struct{}{}
		wallets[common.HexToAddress(ref.Referrer)] = struct{}{}
	}

	m := metrics.Settlement()
	group := c.pool.NewGroupContext(ctx)
	for wallet := range wallets {
		wallet := wallet
		group.SubmitErr(func() (walletPoints, error) {
			points, err := c.points.BasePoints(ctx, week, wallet)
			if err != nil {
				c.logger.Warn("base points unavailable, degrading wallet to zero",
					"week", week, "wallet", wallet.Hex(), "err", err)
				m.ObserveReferralDegraded()
				return walletPoints{wallet: wallet, points: fixedpoint.Zero()}, nil
			}
			return walletPoints{wallet: wallet, points: points}, nil
		})
	}
	results, err := group.Wait()
	if err != nil {
		return nil, fmt.Errorf("referral: fetch base points: %w", err)
	}

	out := make(map[common.Address]fixedpoint.Dec6, len(results))
	for _, res := range results {
		out[res.wallet] = res.points
	}
	return out, nil
}

// historicalBase sums each referee's settled base credits from their start
// week up to (excluding) the supplied week.
func (c *Calculator) historicalBase(ctx context.Context, week int64, referrals []models.Referral) (map[common.Address]fixedpoint.Dec6, error) {
	history, err := c.store.RefereeBaseHistory(ctx, week)
	if err != nil {
		return nil, fmt.Errorf("referral: load base history: %w", err)
	}
	startWeeks := make(map[string]int64, len(referrals))
	for _, ref := range referrals {
		startWeeks[ref.Referee] = ref.StartWeek
	}
	totals := make(map[common.Address]fixedpoint.Dec6)
	for _, row := range history {
		start, ok := startWeeks[row.Referee]
		if !ok || row.Week < start {
			continue
		}
		units, ok := new(big.Int).SetString(row.Units, 10)
		if !ok {
			return nil, fmt.Errorf("referral: corrupt ledger units %q for %s", row.Units, row.Referee)
		}
		referee := common.HexToAddress(row.Referee)
		totals[referee] = totals[referee].Add(fixedpoint.FromUnits(units))
	}
	return totals, nil
}

func referrerOf(referrals []models.Referral, referee common.Address) common.Address {
	hex := referee.Hex()
	for _, ref := range referrals {
		if ref.Referee == hex {
			return common.HexToAddress(ref.Referrer)
		}
	}
	return common.Address{}
}
