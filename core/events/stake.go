package events

import (
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
)

const (
	// TypeItemStaked is emitted once per item entering custody.
	TypeItemStaked = "stake.itemStaked"
	// TypeItemUnstaked is emitted once per item entering the unbonding queue.
	TypeItemUnstaked = "stake.itemUnstaked"
	// TypeItemWithdrawn is emitted once per item returned to its owner.
	TypeItemWithdrawn = "stake.itemWithdrawn"
	// TypeRewardsClaimed is emitted when accrued rewards are paid out.
	TypeRewardsClaimed = "stake.rewardsClaimed"
	// TypeParameterUpdated is emitted when the controller changes a global
	// staking parameter.
	TypeParameterUpdated = "stake.parameterUpdated"
	// TypePauseToggled is emitted when the controller pauses or unpauses
	// staking mutations.
	TypePauseToggled = "stake.pauseToggled"
)

// ItemStaked captures a single item moving into custody.
type ItemStaked struct {
	Owner  common.Address
	ItemID uint64
	Height uint64
}

// EventType satisfies the Event interface.
func (ItemStaked) EventType() string { return TypeItemStaked }

// Record converts the structured payload into a broadcastable record.
func (e ItemStaked) Record() *Record {
	return &Record{Type: TypeItemStaked, Attributes: map[string]string{
		"owner":  e.Owner.Hex(),
		"itemId": strconv.FormatUint(e.ItemID, 10),
		"height": strconv.FormatUint(e.Height, 10),
	}}
}

// ItemUnstaked captures a single item entering the unbonding queue.
type ItemUnstaked struct {
	Owner  common.Address
	ItemID uint64
	Height uint64
}

// EventType satisfies the Event interface.
func (ItemUnstaked) EventType() string { return TypeItemUnstaked }

// Record converts the structured payload into a broadcastable record.
func (e ItemUnstaked) Record() *Record {
	return &Record{Type: TypeItemUnstaked, Attributes: map[string]string{
		"owner":  e.Owner.Hex(),
		"itemId": strconv.FormatUint(e.ItemID, 10),
		"height": strconv.FormatUint(e.Height, 10),
	}}
}

// ItemWithdrawn captures a single item leaving custody after unbonding.
type ItemWithdrawn struct {
	Owner  common.Address
	ItemID uint64
	Height uint64
}

// EventType satisfies the Event interface.
func (ItemWithdrawn) EventType() string { return TypeItemWithdrawn }

// Record converts the structured payload into a broadcastable record.
func (e ItemWithdrawn) Record() *Record {
	return &Record{Type: TypeItemWithdrawn, Attributes: map[string]string{
		"owner":  e.Owner.Hex(),
		"itemId": strconv.FormatUint(e.ItemID, 10),
		"height": strconv.FormatUint(e.Height, 10),
	}}
}

// RewardsClaimed captures a reward payout settled through the reward vault.
type RewardsClaimed struct {
	Owner  common.Address
	Amount *big.Int
	Height uint64
}

// EventType satisfies the Event interface.
func (RewardsClaimed) EventType() string { return TypeRewardsClaimed }

// Record converts the structured payload into a broadcastable record.
func (e RewardsClaimed) Record() *Record {
	return &Record{Type: TypeRewardsClaimed, Attributes: map[string]string{
		"owner":  e.Owner.Hex(),
		"amount": formatAmount(e.Amount),
		"height": strconv.FormatUint(e.Height, 10),
	}}
}

// ParameterUpdated captures a controller change to a global parameter.
type ParameterUpdated struct {
	Name  string
	Value string
}

// EventType satisfies the Event interface.
func (ParameterUpdated) EventType() string { return TypeParameterUpdated }

// Record converts the structured payload into a broadcastable record.
func (e ParameterUpdated) Record() *Record {
	return &Record{Type: TypeParameterUpdated, Attributes: map[string]string{
		"name":  e.Name,
		"value": e.Value,
	}}
}

// PauseToggled captures a change to the staking pause flag.
type PauseToggled struct {
	Paused bool
}

// EventType satisfies the Event interface.
func (PauseToggled) EventType() string { return TypePauseToggled }

// Record converts the structured payload into a broadcastable record.
func (e PauseToggled) Record() *Record {
	return &Record{Type: TypePauseToggled, Attributes: map[string]string{
		"paused": strconv.FormatBool(e.Paused),
	}}
}

func formatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
