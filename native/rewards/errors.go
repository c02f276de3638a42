package rewards

import "errors"

var (
	// ErrEmptySnapshot marks a week with no participants. Callers treat it
	// as "no work", never as a failure.
	ErrEmptySnapshot = errors.New("rewards: empty snapshot")
	// ErrNegativeWeight rejects snapshots carrying negative share bases.
	ErrNegativeWeight = errors.New("rewards: negative weight")
	// ErrWeightOverflow rejects weights that do not fit the 256-bit leaf
	// encoding expected by the external verifier.
	ErrWeightOverflow = errors.New("rewards: weight exceeds 256 bits")
	// ErrPoolExceeded signals that computed payouts sum past the budget.
	// Truncating division can only undershoot, so this is a logic defect
	// and the whole batch must abort with no partial writes.
	ErrPoolExceeded = errors.New("rewards: payout total exceeds pool")
)
