package store

import (
	"context"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"solstice/core/epoch"
	"solstice/native/referral"
	"solstice/native/rewards"
	"solstice/services/settlement/models"
)

// Store wraps all settlement persistence behind transactional write paths.
// The distributor and the referral job are the only writers; read access for
// display or claim tooling goes through the query helpers.
type Store struct {
	db    *gorm.DB
	clock epoch.Clock
}

// New constructs a store over an opened gorm handle.
func New(db *gorm.DB, clock epoch.Clock) *Store {
	return &Store{db: db, clock: clock}
}

// WeekProcessed reports whether the distributor has already committed
// records for the supplied week. This is the idempotency guard: a re-fired
// scheduler sees true and returns without recomputation.
func (s *Store) WeekProcessed(ctx context.Context, week int64) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.WeeklyReward{}).Where("week = ?", week).Count(&count).Error; err != nil {
		return false, fmt.Errorf("store: count weekly rewards: %w", err)
	}
	return count > 0, nil
}

// LastRewardWeek reports the most recent week with persisted reward rows,
// false when no week has been distributed yet.
func (s *Store) LastRewardWeek(ctx context.Context) (int64, bool, error) {
	var week sql.NullInt64
	err := s.db.WithContext(ctx).Model(&models.WeeklyReward{}).Select("max(week)").Scan(&week).Error
	if err != nil {
		return 0, false, fmt.Errorf("store: last reward week: %w", err)
	}
	return week.Int64, week.Valid, nil
}

// LastPointsWeek reports the most recent week with persisted referral ledger
// rows, false when the referral job has never written.
func (s *Store) LastPointsWeek(ctx context.Context) (int64, bool, error) {
	var week sql.NullInt64
	err := s.db.WithContext(ctx).Model(&models.ReferralWeeklyPoints{}).Select("max(week)").Scan(&week).Error
	if err != nil {
		return 0, false, fmt.Errorf("store: last points week: %w", err)
	}
	return week.Int64, week.Valid, nil
}

// SaveWeek persists a full distribution outcome as one atomic unit: every
// wallet's reward record plus the additive lifetime aggregate updates. A
// crash mid-run leaves either zero or all rows for the week.
func (s *Store) SaveWeek(ctx context.Context, outcome *rewards.Outcome) error {
	if outcome == nil || len(outcome.Payouts) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, payout := range outcome.Payouts {
			proof, err := encodeProof(payout.Proof)
			if err != nil {
				return err
			}
			record := models.WeeklyReward{
				ID:        uuid.New(),
				Wallet:    payout.Wallet.Hex(),
				Week:      outcome.Week,
				WeightA:   payout.WeightA.String(),
				WeightB:   payout.WeightB.String(),
				RewardA:   payout.RewardA.String(),
				RewardB:   payout.RewardB.String(),
				LeafIndex: payout.LeafIndex,
				Root:      outcome.Root.Hex(),
				Proof:     proof,
			}
			if err := tx.Create(&record).Error; err != nil {
				return fmt.Errorf("store: create weekly reward: %w", err)
			}
			if err := bumpLifetime(tx, payout.Wallet.Hex(), payout.RewardA, payout.RewardB); err != nil {
				return err
			}
		}
		return nil
	})
}

// WalletRewards returns all persisted reward records for a wallet, oldest
// week first, for settlement/display consumers.
func (s *Store) WalletRewards(ctx context.Context, wallet common.Address) ([]models.WeeklyReward, error) {
	var records []models.WeeklyReward
	if err := s.db.WithContext(ctx).Where("wallet = ?", wallet.Hex()).Order("week asc").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("store: load wallet rewards: %w", err)
	}
	return records, nil
}

// Lifetime returns the additive lifetime aggregate for a wallet, zero-valued
// when the wallet has never appeared in a snapshot.
func (s *Store) Lifetime(ctx context.Context, wallet common.Address) (*big.Int, *big.Int, error) {
	var row models.WalletLifetime
	err := s.db.WithContext(ctx).First(&row, "wallet = ?", wallet.Hex()).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return big.NewInt(0), big.NewInt(0), nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("store: load lifetime: %w", err)
	}
	return parseUnits(row.TotalRewardA), parseUnits(row.TotalRewardB), nil
}

// EnsureCode returns the wallet's referral code, minting one on first use.
// Codes are deterministic so repeated calls agree without coordination.
func (s *Store) EnsureCode(ctx context.Context, wallet common.Address) (string, error) {
	code := CodeFor(wallet)
	row := models.ReferralCode{Code: code, Wallet: wallet.Hex()}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error
	if err != nil {
		return "", fmt.Errorf("store: ensure code: %w", err)
	}
	return code, nil
}

// CodeFor derives the shareable referral code for a wallet.
func CodeFor(wallet common.Address) string {
	digest := ethcrypto.Keccak256(wallet.Bytes())
	return strings.ToUpper(hex.EncodeToString(digest[:5]))
}

// Link attaches a referee to the referrer owning the supplied code. The
// presented nonce must equal the referee's stored counter, which increments
// by exactly one inside the same transaction on success. A referee with an
// existing pending referral inside its grace period has that row updated;
// anything else is rejected with a typed reason.
func (s *Store) Link(ctx context.Context, referee common.Address, code string, nonce uint64, now int64) (*models.Referral, error) {
	var result *models.Referral
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var codeRow models.ReferralCode
		err := tx.First(&codeRow, "code = ?", strings.ToUpper(strings.TrimSpace(code))).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return referral.ErrUnknownCode
		}
		if err != nil {
			return fmt.Errorf("store: resolve code: %w", err)
		}
		referrer := common.HexToAddress(codeRow.Wallet)
		if referrer == referee {
			return referral.ErrSelfReferral
		}

		var nonceRow models.ReferralNonce
		err = tx.First(&nonceRow, "wallet = ?", referee.Hex()).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			nonceRow = models.ReferralNonce{Wallet: referee.Hex(), Nonce: 0}
		} else if err != nil {
			return fmt.Errorf("store: load nonce: %w", err)
		}
		if err := referral.ValidateNonce(nonce, nonceRow.Nonce); err != nil {
			return err
		}

		var existing models.Referral
		err = tx.First(&existing, "referee = ?", referee.Hex()).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			link, err := referral.NewLink(referrer, referee, now)
			if err != nil {
				return err
			}
			row := models.Referral{
				ID:          uuid.New(),
				Referrer:    link.Referrer.Hex(),
				Referee:     link.Referee.Hex(),
				Status:      models.StatusPending,
				LinkedAt:    link.LinkedAt,
				GraceEndsAt: link.GraceEndsAt,
				BonusEndsAt: link.BonusEndsAt,
				StartWeek:   s.clock.WeekAt(now),
			}
			if err := tx.Create(&row).Error; err != nil {
				return fmt.Errorf("store: create referral: %w", err)
			}
			result = &row
		case err != nil:
			return fmt.Errorf("store: load referral: %w", err)
		default:
			link := toDomain(&existing)
			if err := link.ChangeReferrer(referrer, now); err != nil {
				return err
			}
			prev := existing.Referrer
			existing.Referrer = link.Referrer.Hex()
			existing.PreviousReferrer = &prev
			if err := tx.Save(&existing).Error; err != nil {
				return fmt.Errorf("store: update referral: %w", err)
			}
			result = &existing
		}

		nonceRow.Nonce++
		nonceRow.UpdatedAt = time.Now().UTC()
		if err := tx.Save(&nonceRow).Error; err != nil {
			return fmt.Errorf("store: bump nonce: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// CurrentNonce reads the referee's stored replay counter.
func (s *Store) CurrentNonce(ctx context.Context, wallet common.Address) (uint64, error) {
	var row models.ReferralNonce
	err := s.db.WithContext(ctx).First(&row, "wallet = ?", wallet.Hex()).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("store: load nonce: %w", err)
	}
	return row.Nonce, nil
}

// Referrals loads every referral row for the weekly points job.
func (s *Store) Referrals(ctx context.Context) ([]models.Referral, error) {
	var rows []models.Referral
	if err := s.db.WithContext(ctx).Order("created_at asc").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("store: load referrals: %w", err)
	}
	return rows, nil
}

// ActiveReferralCounts returns, per referrer wallet, how many of their
// referrals are active.
func (s *Store) ActiveReferralCounts(ctx context.Context) (map[string]uint64, error) {
	type countRow struct {
		Referrer string
		Total    int64
	}
	var counts []countRow
	err := s.db.WithContext(ctx).Model(&models.Referral{}).
		Select("referrer, count(*) as total").
		Where("status = ?", models.StatusActive).
		Group("referrer").
		Scan(&counts).Error
	if err != nil {
		return nil, fmt.Errorf("store: count active referrals: %w", err)
	}
	out := make(map[string]uint64, len(counts))
	for _, row := range counts {
		out[row.Referrer] = uint64(row.Total)
	}
	return out, nil
}

// PointsRow is one computed ledger row pending persistence.
type PointsRow struct {
	Week                 int64
	Referrer             common.Address
	Referee              common.Address
	RefereeBaseUnits     *big.Int
	ReferrerEarnedUnits  *big.Int
	RefereeBonusUnits    *big.Int
	ActivationBonusUnits *big.Int
}

// SaveWeeklyPoints commits the week's referral ledger rows and activation
// transitions in one transaction. Rows conflicting on (week, referrer,
// referee) are left untouched, making a re-run after partial failure safe.
// The one exception is the activation bonus: a row that crosses the
// activation threshold only on a later run still books the bonus onto the
// existing ledger row, exactly once, so the status flip below never
// outpaces the credit. It returns the number of rows actually inserted.
func (s *Store) SaveWeeklyPoints(ctx context.Context, rows []PointsRow, activations []common.Address) (int, error) {
	inserted := 0
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, row := range rows {
			record := models.ReferralWeeklyPoints{
				ID:                   uuid.New(),
				Week:                 row.Week,
				Referrer:             row.Referrer.Hex(),
				Referee:              row.Referee.Hex(),
				RefereeBaseUnits:     unitsText(row.RefereeBaseUnits),
				ReferrerEarnedUnits:  unitsText(row.ReferrerEarnedUnits),
				RefereeBonusUnits:    unitsText(row.RefereeBonusUnits),
				ActivationBonusUnits: unitsText(row.ActivationBonusUnits),
			}
			res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&record)
			if res.Error != nil {
				return fmt.Errorf("store: create points row: %w", res.Error)
			}
			inserted += int(res.RowsAffected)
			if res.RowsAffected == 0 && row.ActivationBonusUnits != nil && row.ActivationBonusUnits.Sign() > 0 {
				upd := tx.Model(&models.ReferralWeeklyPoints{}).
					Where("week = ? AND referrer = ? AND referee = ? AND activation_bonus_units = ?",
						row.Week, row.Referrer.Hex(), row.Referee.Hex(), "0").
					Update("activation_bonus_units", unitsText(row.ActivationBonusUnits))
				if upd.Error != nil {
					return fmt.Errorf("store: book activation bonus: %w", upd.Error)
				}
			}
		}
		for _, referee := range activations {
			res := tx.Model(&models.Referral{}).
				Where("referee = ? AND status = ? AND activation_awarded = ?", referee.Hex(), models.StatusPending, false).
				Updates(map[string]any{"status": models.StatusActive, "activation_awarded": true})
			if res.Error != nil {
				return fmt.Errorf("store: activate referral: %w", res.Error)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

// BaseHistoryRow is one referee's post-link base credit settled in a past
// week.
type BaseHistoryRow struct {
	Referee string
	Week    int64
	Units   string
}

// RefereeBaseHistory loads the per-week base credits of every referee for
// weeks strictly before the supplied week. The activation check sums these
// from each referral's start week onward.
func (s *Store) RefereeBaseHistory(ctx context.Context, beforeWeek int64) ([]BaseHistoryRow, error) {
	var rows []BaseHistoryRow
	err := s.db.WithContext(ctx).Model(&models.ReferralWeeklyPoints{}).
		Select("referee, week, referee_base_units as units").
		Where("week < ?", beforeWeek).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("store: load base history: %w", err)
	}
	return rows, nil
}

// PointsForWeek loads the persisted ledger rows for one week.
func (s *Store) PointsForWeek(ctx context.Context, week int64) ([]models.ReferralWeeklyPoints, error) {
	var rows []models.ReferralWeeklyPoints
	if err := s.db.WithContext(ctx).Where("week = ?", week).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("store: load points: %w", err)
	}
	return rows, nil
}

func bumpLifetime(tx *gorm.DB, wallet string, rewardA, rewardB *big.Int) error {
	var row models.WalletLifetime
	err := tx.First(&row, "wallet = ?", wallet).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		row = models.WalletLifetime{Wallet: wallet, TotalRewardA: "0", TotalRewardB: "0"}
	} else if err != nil {
		return fmt.Errorf("store: load lifetime: %w", err)
	}
	totalA := parseUnits(row.TotalRewardA)
	totalB := parseUnits(row.TotalRewardB)
	totalA.Add(totalA, rewardA)
	totalB.Add(totalB, rewardB)
	row.TotalRewardA = totalA.String()
	row.TotalRewardB = totalB.String()
	row.UpdatedAt = time.Now().UTC()
	if err := tx.Save(&row).Error; err != nil {
		return fmt.Errorf("store: save lifetime: %w", err)
	}
	return nil
}

func encodeProof(proof []common.Hash) (string, error) {
	hexes := make([]string, len(proof))
	for i, h := range proof {
		hexes[i] = h.Hex()
	}
	encoded, err := json.Marshal(hexes)
	if err != nil {
		return "", fmt.Errorf("store: encode proof: %w", err)
	}
	return string(encoded), nil
}

// DecodeProof restores the ordered sibling path from its stored form.
func DecodeProof(encoded string) ([]common.Hash, error) {
	var hexes []string
	if err := json.Unmarshal([]byte(encoded), &hexes); err != nil {
		return nil, fmt.Errorf("store: decode proof: %w", err)
	}
	proof := make([]common.Hash, len(hexes))
	for i, h := range hexes {
		proof[i] = common.HexToHash(h)
	}
	return proof, nil
}

func toDomain(row *models.Referral) referral.Referral {
	link := referral.Referral{
		Referrer:          common.HexToAddress(row.Referrer),
		Referee:           common.HexToAddress(row.Referee),
		Status:            referral.Status(row.Status),
		LinkedAt:          row.LinkedAt,
		GraceEndsAt:       row.GraceEndsAt,
		BonusEndsAt:       row.BonusEndsAt,
		ActivationAwarded: row.ActivationAwarded,
	}
	if row.PreviousReferrer != nil {
		prev := common.HexToAddress(*row.PreviousReferrer)
		link.PreviousReferrer = &prev
	}
	return link
}

func parseUnits(text string) *big.Int {
	v, ok := new(big.Int).SetString(strings.TrimSpace(text), 10)
	if !ok {
		return big.NewInt(0)
	}
	return v
}

func unitsText(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
