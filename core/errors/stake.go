package errors

import stderrors "errors"

var (
	// ErrUnauthorized is returned when a privileged operation is invoked by
	// anyone other than the configured controller.
	ErrUnauthorized = stderrors.New("stake: caller is not the controller")
	// ErrPaused is returned when stake or unstake mutations are attempted
	// while the pause toggle is enabled.
	ErrPaused = stderrors.New("stake: staking paused")
	// ErrApprovalMissing is returned when the item custodian has not been
	// approved to take custody of an item.
	ErrApprovalMissing = stderrors.New("stake: custody approval missing")
	// ErrNotStaked is returned when an operation references an item the
	// caller does not hold in the required lifecycle state.
	ErrNotStaked = stderrors.New("stake: item not staked by caller")
	// ErrUnbondingNotElapsed is returned when a withdrawal is attempted
	// before the unbonding period has passed.
	ErrUnbondingNotElapsed = stderrors.New("stake: item still in unbonding period")
	// ErrClaimDelayNotElapsed is returned when rewards are claimed before
	// the claim delay has passed since the first outstanding stake.
	ErrClaimDelayNotElapsed = stderrors.New("stake: claim delay not reached")
	// ErrNothingToClaim is returned when a claim finds no outstanding stake
	// and no accrued reward.
	ErrNothingToClaim = stderrors.New("stake: nothing to claim")
	// ErrInsufficientReserve is returned when the reward vault cannot cover
	// a claim payout.
	ErrInsufficientReserve = stderrors.New("stake: insufficient reward reserve")
)
