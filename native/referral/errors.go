package referral

import "errors"

var (
	// ErrSelfReferral rejects a referee presenting their own code.
	ErrSelfReferral = errors.New("referral: self referral")
	// ErrStaleNonce rejects a link request carrying anything other than the
	// referee's current nonce. Protects against replay of old requests.
	ErrStaleNonce = errors.New("referral: stale nonce")
	// ErrUnknownCode rejects links against codes no referrer owns.
	ErrUnknownCode = errors.New("referral: unknown referral code")
	// ErrGraceExpired rejects referrer changes after the 7 day grace window.
	ErrGraceExpired = errors.New("referral: grace period expired")
	// ErrAlreadyActive rejects any referrer change once a referral has
	// activated, regardless of elapsed time.
	ErrAlreadyActive = errors.New("referral: referral already active")
	// ErrNotPending rejects activation of referrals outside the pending state.
	ErrNotPending = errors.New("referral: referral not pending")
	// ErrBonusAlreadyAwarded guards the one-time activation bonus.
	ErrBonusAlreadyAwarded = errors.New("referral: activation bonus already awarded")
)
