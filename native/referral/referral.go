package referral

import (
	"github.com/ethereum/go-ethereum/common"

	"solstice/core/epoch"
	"solstice/core/fixedpoint"
)

const (
	// GracePeriodSeconds is the window after linking in which a referee may
	// still switch referrers.
	GracePeriodSeconds int64 = 7 * 24 * 60 * 60
	// BonusWindowWeeks is the span of the referee's 10% bonus after linking.
	BonusWindowWeeks int64 = 12
	// RefereeBonusPercent is applied to the referee's own weekly base points
	// while the bonus window is open.
	RefereeBonusPercent uint64 = 10
)

// ActivationBonus is the flat one-time award granted when a referee's
// cumulative post-link points cross the activation threshold.
func ActivationBonus() fixedpoint.Dec6 {
	return fixedpoint.FromInt(100)
}

// ActivationThreshold is the cumulative base point total a referee must
// accrue after linking before the referral activates.
func ActivationThreshold() fixedpoint.Dec6 {
	return fixedpoint.FromInt(100)
}

// Status is a referral's lifecycle state.
type Status string

const (
	StatusPending  Status = "pending"
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// Referral is the relationship between one referee and their current
// referrer. A referee holds at most one referral; re-links during the grace
// period update the same record.
type Referral struct {
	Referrer          common.Address
	Referee           common.Address
	Status            Status
	LinkedAt          int64
	GraceEndsAt       int64
	BonusEndsAt       int64
	ActivationAwarded bool
	PreviousReferrer  *common.Address
}

// NewLink creates a pending referral at the supplied link time. The grace
// period and referee bonus window both anchor to the link timestamp.
func NewLink(referrer, referee common.Address, linkedAt int64) (Referral, error) {
	if referrer == referee {
		return Referral{}, ErrSelfReferral
	}
	return Referral{
		Referrer:    referrer,
		Referee:     referee,
		Status:      StatusPending,
		LinkedAt:    linkedAt,
		GraceEndsAt: linkedAt + GracePeriodSeconds,
		BonusEndsAt: linkedAt + BonusWindowWeeks*epoch.WeekSeconds,
	}, nil
}

// ChangeReferrer replaces the referrer while the original link is still
// pending and inside its grace period. The referee identity never changes.
func (r *Referral) ChangeReferrer(newReferrer common.Address, now int64) error {
	if newReferrer == r.Referee {
		return ErrSelfReferral
	}
	if r.Status == StatusActive {
		return ErrAlreadyActive
	}
	if now >= r.GraceEndsAt {
		return ErrGraceExpired
	}
	prev := r.Referrer
	r.PreviousReferrer = &prev
	r.Referrer = newReferrer
	return nil
}

// Activate transitions a pending referral to active and marks the one-time
// bonus as awarded. The transition is one-way.
func (r *Referral) Activate() error {
	if r.Status != StatusPending {
		return ErrNotPending
	}
	if r.ActivationAwarded {
		return ErrBonusAlreadyAwarded
	}
	r.Status = StatusActive
	r.ActivationAwarded = true
	return nil
}

// ValidateNonce checks a presented link nonce against the referee's stored
// counter. Every successful link or referrer change increments the stored
// value by exactly one, so anything but an exact match is a replay.
func ValidateNonce(presented, stored uint64) error {
	if presented != stored {
		return ErrStaleNonce
	}
	return nil
}

// Prorate scales a week's base points by the fraction of the week during
// which the referral existed. Linked before the week began: full credit.
// Linked at or after the week ended: none. Otherwise credit is linear in the
// seconds remaining after the link.
func Prorate(base fixedpoint.Dec6, linkedAt int64, week int64, clock epoch.Clock) fixedpoint.Dec6 {
	start, end := clock.Bounds(week)
	if linkedAt <= start {
		return base
	}
	if linkedAt >= end {
		return fixedpoint.Zero()
	}
	return base.MulFrac(end-linkedAt, epoch.WeekSeconds)
}

// RefereeBonus is the referee's own 10% kicker on their weekly base points,
// valid strictly before the 12-week bonus window closes.
func RefereeBonus(base fixedpoint.Dec6, now, bonusEndsAt int64) fixedpoint.Dec6 {
	if now >= bonusEndsAt {
		return fixedpoint.Zero()
	}
	return base.MulPercent(RefereeBonusPercent)
}
