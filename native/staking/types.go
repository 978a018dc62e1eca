package staking

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Status tracks the lifecycle of a staked item. Transitions only move forward:
// Staked -> Unstaking -> Withdrawn, and Withdrawn is terminal.
type Status uint8

const (
	// StatusStaked marks an item held in custody and accruing rewards.
	StatusStaked Status = iota + 1
	// StatusUnstaking marks an item waiting out the unbonding period. The
	// item stays in the owner's staked count until actually withdrawn.
	StatusUnstaking
	// StatusWithdrawn marks an item returned to its owner. Terminal.
	StatusWithdrawn
)

// String renders the status for logs and RPC responses.
func (s Status) String() string {
	switch s {
	case StatusStaked:
		return "staked"
	case StatusUnstaking:
		return "unstaking"
	case StatusWithdrawn:
		return "withdrawn"
	default:
		return "unknown"
	}
}

// StakeRecord is the authoritative per-item custody record, keyed by item id.
// An item has at most one live record across the whole ledger.
type StakeRecord struct {
	Owner              common.Address `json:"owner"`
	Status             Status         `json:"status"`
	StakedAt           uint64         `json:"stakedAt"`
	UnstakeRequestedAt uint64         `json:"unstakeRequestedAt,omitempty"`
}

// UserAccount aggregates a user's staking position. Accounts are created
// lazily on first stake and persist at zero state after full withdrawal.
type UserAccount struct {
	// TotalStaked counts records in Staked or Unstaking status. Unstaking
	// does not reduce it; only withdrawal does.
	TotalStaked uint64 `json:"totalStaked"`
	// StakedItems enumerates item ids in deposit order. Entries survive
	// unstake and are removed on withdrawal.
	StakedItems []uint64 `json:"stakedItems"`
	// FirstStakeHeight gates the claim delay. It re-arms whenever the
	// outstanding count returns to zero.
	FirstStakeHeight uint64 `json:"firstStakeHeight"`
	// LastAccrualHeight is the height through which rewards were settled.
	LastAccrualHeight uint64 `json:"lastAccrualHeight"`
	// AccruedUnclaimed is reward computed but not yet paid out.
	AccruedUnclaimed *big.Int `json:"accruedUnclaimed"`
}

func ensureAccountDefaults(acct *UserAccount) *UserAccount {
	if acct == nil {
		acct = &UserAccount{}
	}
	if acct.AccruedUnclaimed == nil {
		acct.AccruedUnclaimed = big.NewInt(0)
	}
	return acct
}

// Params bundles the global staking parameters exposed to RPC queries.
type Params struct {
	RewardRatePerUnit *big.Int       `json:"rewardRatePerUnit"`
	UnbondingPeriod   uint64         `json:"unbondingPeriod"`
	RewardClaimDelay  uint64         `json:"rewardClaimDelay"`
	Paused            bool           `json:"paused"`
	Controller        common.Address `json:"controller"`
}
