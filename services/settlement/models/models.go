package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Referral lifecycle states as persisted.
const (
	StatusPending  = "pending"
	StatusActive   = "active"
	StatusInactive = "inactive"
)

// WeeklyReward is one wallet's allocation for one week, together with the
// inclusion proof it presents to the external verifier. Rows are append-only
// and never mutated after the weekly run commits.
type WeeklyReward struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	Wallet    string    `gorm:"size:42;uniqueIndex:idx_reward_wallet_week;index"`
	Week      int64     `gorm:"uniqueIndex:idx_reward_wallet_week;index"`
	WeightA   string    `gorm:"size:80;not null"`
	WeightB   string    `gorm:"size:80;not null"`
	RewardA   string    `gorm:"size:80;not null"`
	RewardB   string    `gorm:"size:80;not null"`
	LeafIndex int       `gorm:"not null"`
	Root      string    `gorm:"size:66;index"`
	Proof     string    `gorm:"type:text"`
	CreatedAt time.Time
}

// WalletLifetime aggregates a wallet's rewards across all weeks. Totals only
// ever grow; they are never reset or decremented.
type WalletLifetime struct {
	Wallet       string `gorm:"size:42;primaryKey"`
	TotalRewardA string `gorm:"size:80;not null"`
	TotalRewardB string `gorm:"size:80;not null"`
	UpdatedAt    time.Time
}

// Referral is the single current referrer relationship for a referee. The
// referee column is unique: re-links during the grace period update this row
// rather than inserting a second one.
type Referral struct {
	ID                uuid.UUID `gorm:"type:uuid;primaryKey"`
	Referrer          string    `gorm:"size:42;index"`
	Referee           string    `gorm:"size:42;uniqueIndex"`
	Status            string    `gorm:"size:16;index"`
	LinkedAt          int64     `gorm:"not null"`
	GraceEndsAt       int64     `gorm:"not null"`
	BonusEndsAt       int64     `gorm:"not null"`
	StartWeek         int64     `gorm:"not null"`
	ActivationAwarded bool      `gorm:"not null;default:false"`
	PreviousReferrer  *string   `gorm:"size:42"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// ReferralCode maps a shareable code to the referrer wallet that owns it.
type ReferralCode struct {
	Code      string `gorm:"size:24;primaryKey"`
	Wallet    string `gorm:"size:42;uniqueIndex"`
	CreatedAt time.Time
}

// ReferralNonce is the per-referee replay counter. Each successful link or
// referrer change increments it by exactly one inside the same transaction
// that mutates the referral row.
type ReferralNonce struct {
	Wallet    string `gorm:"size:42;primaryKey"`
	Nonce     uint64 `gorm:"not null;default:0"`
	UpdatedAt time.Time
}

// ReferralWeeklyPoints is the append-only ledger row for one referral pair
// and week. Point amounts are stored as exact scale-6 integer unit counts in
// decimal text; floats never touch this table.
type ReferralWeeklyPoints struct {
	ID                   uuid.UUID `gorm:"type:uuid;primaryKey"`
	Week                 int64     `gorm:"uniqueIndex:idx_points_week_pair;index"`
	Referrer             string    `gorm:"size:42;uniqueIndex:idx_points_week_pair"`
	Referee              string    `gorm:"size:42;uniqueIndex:idx_points_week_pair"`
	RefereeBaseUnits     string    `gorm:"size:80;not null"`
	ReferrerEarnedUnits  string    `gorm:"size:80;not null"`
	RefereeBonusUnits    string    `gorm:"size:80;not null"`
	ActivationBonusUnits string    `gorm:"size:80;not null"`
	CreatedAt            time.Time
}

// AutoMigrate creates or updates the settlement schema.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&WeeklyReward{},
		&WalletLifetime{},
		&Referral{},
		&ReferralCode{},
		&ReferralNonce{},
		&ReferralWeeklyPoints{},
	)
}
