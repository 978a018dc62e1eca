package staking

import (
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	coreerrors "stakevault/core/errors"
	"stakevault/core/events"
	"stakevault/native/params"
)

// State captures the ledger persistence the engine mutates. Writes are staged
// by the backing manager and only become durable on Commit; Discard drops
// everything staged since the last commit, which is how a failed operation
// leaves no partial state behind.
type State interface {
	StakeRecordGet(itemID uint64) (*StakeRecord, bool, error)
	StakeRecordPut(itemID uint64, rec *StakeRecord) error
	StakeAccountGet(addr common.Address) (*UserAccount, bool, error)
	StakeAccountPut(addr common.Address, acct *UserAccount) error
	StakeAccountList() ([]common.Address, error)
	Commit() error
	Discard()
}

// ItemCustody moves items between user ownership and system custody.
type ItemCustody interface {
	TransferIn(owner common.Address, itemID uint64) error
	TransferOut(recipient common.Address, itemID uint64) error
}

// RewardCustody pays accrued rewards out of the reward reserve.
type RewardCustody interface {
	TransferOut(recipient common.Address, amount *big.Int) error
}

// Engine is the staking facade: it owns every state transition of the
// stake/unstake/withdraw/claim lifecycle plus the controller-gated parameter
// setters. Each public operation runs under a single lock and commits
// atomically.
type Engine struct {
	mu         sync.Mutex
	state      State
	paramStore *params.Store
	items      ItemCustody
	rewards    RewardCustody
	emitter    events.Emitter
	heightFn   func() uint64
}

// NewEngine wires the staking engine. The state and the parameter store must
// share the same underlying manager so a single Commit covers both.
func NewEngine(state State, paramStore *params.Store, items ItemCustody, rewards RewardCustody) *Engine {
	return &Engine{
		state:      state,
		paramStore: paramStore,
		items:      items,
		rewards:    rewards,
		emitter:    events.NoopEmitter{},
		heightFn:   func() uint64 { return uint64(time.Now().Unix()) },
	}
}

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetHeightFunc overrides the height source. The host must supply a
// monotonically non-decreasing counter; tests use this for deterministic
// accrual math.
func (e *Engine) SetHeightFunc(height func() uint64) {
	if height == nil {
		e.heightFn = func() uint64 { return uint64(time.Now().Unix()) }
		return
	}
	e.heightFn = height
}

// run executes one public operation as a critical section: on any error the
// staged writes are discarded, otherwise they are committed and the staged
// events emitted.
func (e *Engine) run(fn func(now uint64) ([]events.Event, error)) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	staged, err := fn(e.heightFn())
	if err != nil {
		e.state.Discard()
		return err
	}
	if err := e.state.Commit(); err != nil {
		e.state.Discard()
		return err
	}
	for _, evt := range staged {
		e.emitter.Emit(evt)
	}
	return nil
}

// Initialize seeds the global parameters and the controller identity. It may
// run exactly once, by deployment tooling.
func (e *Engine) Initialize(controller common.Address, rate *big.Int, unbondingPeriod, claimDelay uint64) error {
	return e.run(func(uint64) ([]events.Event, error) {
		if _, ok, err := e.paramStore.Controller(); err != nil {
			return nil, err
		} else if ok {
			return nil, fmt.Errorf("staking: already initialized")
		}
		if err := e.paramStore.SetController(controller); err != nil {
			return nil, err
		}
		if err := e.paramStore.SetRewardRate(rate); err != nil {
			return nil, err
		}
		if err := e.paramStore.SetUnbondingPeriod(unbondingPeriod); err != nil {
			return nil, err
		}
		if err := e.paramStore.SetClaimDelay(claimDelay); err != nil {
			return nil, err
		}
		return nil, nil
	})
}

func (e *Engine) loadAccount(addr common.Address) (*UserAccount, error) {
	acct, _, err := e.state.StakeAccountGet(addr)
	if err != nil {
		return nil, err
	}
	return ensureAccountDefaults(acct), nil
}

// settleAccount credits reward accrued since the last settlement and advances
// the settlement height. The multiplication never rounds: rate, count and
// elapsed units are combined with integer multiplies only.
func settleAccount(acct *UserAccount, now uint64, rate *big.Int) {
	if now <= acct.LastAccrualHeight {
		return
	}
	if acct.TotalStaked > 0 && rate.Sign() > 0 {
		reward := new(big.Int).Mul(rate, new(big.Int).SetUint64(acct.TotalStaked))
		reward.Mul(reward, new(big.Int).SetUint64(now-acct.LastAccrualHeight))
		acct.AccruedUnclaimed = new(big.Int).Add(acct.AccruedUnclaimed, reward)
	}
	acct.LastAccrualHeight = now
}

func (e *Engine) settle(acct *UserAccount, now uint64) error {
	rate, err := e.paramStore.RewardRate()
	if err != nil {
		return err
	}
	settleAccount(acct, now, rate)
	return nil
}

func (e *Engine) requirePausable() error {
	paused, err := e.paramStore.Paused()
	if err != nil {
		return err
	}
	if paused {
		return coreerrors.ErrPaused
	}
	return nil
}

func (e *Engine) requireController(caller common.Address) error {
	controller, ok, err := e.paramStore.Controller()
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("staking: not initialized")
	}
	if caller != controller {
		return coreerrors.ErrUnauthorized
	}
	return nil
}

// Stake takes custody of the supplied items and starts reward accrual for
// them. The whole batch succeeds or fails together: a custody rejection on
// any item aborts with no state change.
func (e *Engine) Stake(owner common.Address, itemIDs []uint64) error {
	return e.run(func(now uint64) ([]events.Event, error) {
		if err := e.requirePausable(); err != nil {
			return nil, err
		}
		if len(itemIDs) == 0 {
			return nil, fmt.Errorf("staking: no items supplied")
		}
		acct, err := e.loadAccount(owner)
		if err != nil {
			return nil, err
		}
		// Settle before the count changes so the new items do not earn
		// for time before they existed.
		if err := e.settle(acct, now); err != nil {
			return nil, err
		}
		if acct.TotalStaked == 0 {
			acct.FirstStakeHeight = now
		}
		staged := make([]events.Event, 0, len(itemIDs))
		for _, itemID := range itemIDs {
			rec, ok, err := e.state.StakeRecordGet(itemID)
			if err != nil {
				return nil, err
			}
			if ok && rec.Status != StatusWithdrawn {
				return nil, fmt.Errorf("staking: item %d already in custody", itemID)
			}
			if err := e.items.TransferIn(owner, itemID); err != nil {
				return nil, err
			}
			if err := e.state.StakeRecordPut(itemID, &StakeRecord{
				Owner:    owner,
				Status:   StatusStaked,
				StakedAt: now,
			}); err != nil {
				return nil, err
			}
			acct.StakedItems = append(acct.StakedItems, itemID)
			acct.TotalStaked++
			staged = append(staged, events.ItemStaked{Owner: owner, ItemID: itemID, Height: now})
		}
		if err := e.state.StakeAccountPut(owner, acct); err != nil {
			return nil, err
		}
		return staged, nil
	})
}

// Unstake moves items into the unbonding queue. The items stay in the
// owner's staked count, and keep earning reward, until actually withdrawn;
// they also remain enumerable until then.
func (e *Engine) Unstake(owner common.Address, itemIDs []uint64) error {
	return e.run(func(now uint64) ([]events.Event, error) {
		if err := e.requirePausable(); err != nil {
			return nil, err
		}
		if len(itemIDs) == 0 {
			return nil, fmt.Errorf("staking: no items supplied")
		}
		acct, err := e.loadAccount(owner)
		if err != nil {
			return nil, err
		}
		if err := e.settle(acct, now); err != nil {
			return nil, err
		}
		staged := make([]events.Event, 0, len(itemIDs))
		for _, itemID := range itemIDs {
			rec, ok, err := e.state.StakeRecordGet(itemID)
			if err != nil {
				return nil, err
			}
			if !ok || rec.Owner != owner || rec.Status != StatusStaked {
				return nil, fmt.Errorf("item %d: %w", itemID, coreerrors.ErrNotStaked)
			}
			rec.Status = StatusUnstaking
			rec.UnstakeRequestedAt = now
			if err := e.state.StakeRecordPut(itemID, rec); err != nil {
				return nil, err
			}
			staged = append(staged, events.ItemUnstaked{Owner: owner, ItemID: itemID, Height: now})
		}
		if err := e.state.StakeAccountPut(owner, acct); err != nil {
			return nil, err
		}
		return staged, nil
	})
}

// Withdraw returns unbonded items to their owner, removing them from the
// staked count and the enumerable sequence. Withdrawals are not pause-gated.
func (e *Engine) Withdraw(owner common.Address, itemIDs []uint64) error {
	return e.run(func(now uint64) ([]events.Event, error) {
		if len(itemIDs) == 0 {
			return nil, fmt.Errorf("staking: no items supplied")
		}
		unbondingPeriod, err := e.paramStore.UnbondingPeriod()
		if err != nil {
			return nil, err
		}
		acct, err := e.loadAccount(owner)
		if err != nil {
			return nil, err
		}
		// Settle before the count drops so the interval up to now is
		// credited at the pre-withdrawal count.
		if err := e.settle(acct, now); err != nil {
			return nil, err
		}
		staged := make([]events.Event, 0, len(itemIDs))
		for _, itemID := range itemIDs {
			rec, ok, err := e.state.StakeRecordGet(itemID)
			if err != nil {
				return nil, err
			}
			if !ok || rec.Owner != owner || rec.Status != StatusUnstaking {
				return nil, fmt.Errorf("item %d: %w", itemID, coreerrors.ErrNotStaked)
			}
			if now-rec.UnstakeRequestedAt < unbondingPeriod {
				return nil, fmt.Errorf("item %d: %w", itemID, coreerrors.ErrUnbondingNotElapsed)
			}
			rec.Status = StatusWithdrawn
			if err := e.state.StakeRecordPut(itemID, rec); err != nil {
				return nil, err
			}
			acct.StakedItems = removeItem(acct.StakedItems, itemID)
			acct.TotalStaked--
			if err := e.items.TransferOut(owner, itemID); err != nil {
				return nil, err
			}
			staged = append(staged, events.ItemWithdrawn{Owner: owner, ItemID: itemID, Height: now})
		}
		if err := e.state.StakeAccountPut(owner, acct); err != nil {
			return nil, err
		}
		return staged, nil
	})
}

// ClaimRewards settles accrual through the current height and pays the
// accrued balance out of the reward reserve. A failed payout rolls the whole
// claim back. Claims are not pause-gated.
func (e *Engine) ClaimRewards(owner common.Address) (*big.Int, error) {
	var claimed *big.Int
	err := e.run(func(now uint64) ([]events.Event, error) {
		acct, err := e.loadAccount(owner)
		if err != nil {
			return nil, err
		}
		if acct.TotalStaked == 0 && acct.AccruedUnclaimed.Sign() == 0 {
			return nil, coreerrors.ErrNothingToClaim
		}
		claimDelay, err := e.paramStore.ClaimDelay()
		if err != nil {
			return nil, err
		}
		if now-acct.FirstStakeHeight < claimDelay {
			return nil, coreerrors.ErrClaimDelayNotElapsed
		}
		if err := e.settle(acct, now); err != nil {
			return nil, err
		}
		amount := new(big.Int).Set(acct.AccruedUnclaimed)
		if err := e.rewards.TransferOut(owner, amount); err != nil {
			return nil, err
		}
		acct.AccruedUnclaimed = big.NewInt(0)
		if err := e.state.StakeAccountPut(owner, acct); err != nil {
			return nil, err
		}
		claimed = amount
		return []events.Event{events.RewardsClaimed{Owner: owner, Amount: amount, Height: now}}, nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

// SetRewardRate changes the per-item per-unit reward rate. Every account with
// outstanding stake is settled at the old rate first, so the change only
// affects accrual after this height.
func (e *Engine) SetRewardRate(caller common.Address, rate *big.Int) error {
	return e.run(func(now uint64) ([]events.Event, error) {
		if err := e.requireController(caller); err != nil {
			return nil, err
		}
		if err := e.settleAllAccounts(now); err != nil {
			return nil, err
		}
		if err := e.paramStore.SetRewardRate(rate); err != nil {
			return nil, err
		}
		return []events.Event{events.ParameterUpdated{Name: "rewardRatePerUnit", Value: rate.String()}}, nil
	})
}

// settleAllAccounts is the global settlement checkpoint applied before a rate
// change takes effect.
func (e *Engine) settleAllAccounts(now uint64) error {
	rate, err := e.paramStore.RewardRate()
	if err != nil {
		return err
	}
	addrs, err := e.state.StakeAccountList()
	if err != nil {
		return err
	}
	for _, addr := range addrs {
		acct, ok, err := e.state.StakeAccountGet(addr)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		acct = ensureAccountDefaults(acct)
		if acct.LastAccrualHeight >= now {
			continue
		}
		settleAccount(acct, now, rate)
		if err := e.state.StakeAccountPut(addr, acct); err != nil {
			return err
		}
	}
	return nil
}

// SetUnbondingPeriod changes the unstake-to-withdraw wait.
func (e *Engine) SetUnbondingPeriod(caller common.Address, period uint64) error {
	return e.run(func(uint64) ([]events.Event, error) {
		if err := e.requireController(caller); err != nil {
			return nil, err
		}
		if err := e.paramStore.SetUnbondingPeriod(period); err != nil {
			return nil, err
		}
		return []events.Event{events.ParameterUpdated{Name: "unbondingPeriod", Value: fmt.Sprintf("%d", period)}}, nil
	})
}

// SetClaimDelay changes the first-stake-to-first-claim wait.
func (e *Engine) SetClaimDelay(caller common.Address, delay uint64) error {
	return e.run(func(uint64) ([]events.Event, error) {
		if err := e.requireController(caller); err != nil {
			return nil, err
		}
		if err := e.paramStore.SetClaimDelay(delay); err != nil {
			return nil, err
		}
		return []events.Event{events.ParameterUpdated{Name: "rewardClaimDelay", Value: fmt.Sprintf("%d", delay)}}, nil
	})
}

// Pause blocks stake and unstake mutations. Withdrawals and claims continue.
func (e *Engine) Pause(caller common.Address) error {
	return e.setPaused(caller, true)
}

// Unpause re-enables stake and unstake mutations.
func (e *Engine) Unpause(caller common.Address) error {
	return e.setPaused(caller, false)
}

func (e *Engine) setPaused(caller common.Address, paused bool) error {
	return e.run(func(uint64) ([]events.Event, error) {
		if err := e.requireController(caller); err != nil {
			return nil, err
		}
		if err := e.paramStore.SetPaused(paused); err != nil {
			return nil, err
		}
		return []events.Event{events.PauseToggled{Paused: paused}}, nil
	})
}

// --- Read-only queries ---

// Account returns a copy of the user's staking account. Unknown users read as
// a zero account.
func (e *Engine) Account(owner common.Address) (*UserAccount, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	acct, err := e.loadAccount(owner)
	if err != nil {
		return nil, err
	}
	copied := *acct
	copied.StakedItems = append([]uint64(nil), acct.StakedItems...)
	copied.AccruedUnclaimed = new(big.Int).Set(acct.AccruedUnclaimed)
	return &copied, nil
}

// StakedItems enumerates the user's deposited items, including any still in
// the unbonding queue.
func (e *Engine) StakedItems(owner common.Address) ([]uint64, error) {
	acct, err := e.Account(owner)
	if err != nil {
		return nil, err
	}
	return acct.StakedItems, nil
}

// Record returns the custody record for an item, if one exists.
func (e *Engine) Record(itemID uint64) (*StakeRecord, bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.StakeRecordGet(itemID)
}

// PendingRewards previews the reward a claim at the current height would pay,
// without mutating any state.
func (e *Engine) PendingRewards(owner common.Address) (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	acct, err := e.loadAccount(owner)
	if err != nil {
		return nil, err
	}
	rate, err := e.paramStore.RewardRate()
	if err != nil {
		return nil, err
	}
	settleAccount(acct, e.heightFn(), rate)
	return acct.AccruedUnclaimed, nil
}

// Params returns the current global parameters.
func (e *Engine) Params() (Params, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	rate, err := e.paramStore.RewardRate()
	if err != nil {
		return Params{}, err
	}
	unbonding, err := e.paramStore.UnbondingPeriod()
	if err != nil {
		return Params{}, err
	}
	delay, err := e.paramStore.ClaimDelay()
	if err != nil {
		return Params{}, err
	}
	paused, err := e.paramStore.Paused()
	if err != nil {
		return Params{}, err
	}
	controller, _, err := e.paramStore.Controller()
	if err != nil {
		return Params{}, err
	}
	return Params{
		RewardRatePerUnit: rate,
		UnbondingPeriod:   unbonding,
		RewardClaimDelay:  delay,
		Paused:            paused,
		Controller:        controller,
	}, nil
}

func removeItem(items []uint64, itemID uint64) []uint64 {
	for i, id := range items {
		if id == itemID {
			return append(items[:i], items[i+1:]...)
		}
	}
	return items
}
