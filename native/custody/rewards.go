package custody

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	coreerrors "stakevault/core/errors"
)

const rewardLedgerKey = "rewards"

// rewardLedger is the persisted form of the reward vault: fungible balances
// plus the controller set allowed to mint.
type rewardLedger struct {
	Balances    map[string]string `json:"balances"`
	Controllers map[string]bool   `json:"controllers"`
}

func newRewardLedger() *rewardLedger {
	return &rewardLedger{
		Balances:    make(map[string]string),
		Controllers: make(map[string]bool),
	}
}

// RewardVault is an in-process reward custody collaborator: a minimal
// fungible ledger with controller-gated minting. The staking engine only sees
// the TransferOut surface; Mint and Fund serve deployment tooling.
type RewardVault struct {
	state     State
	custodian common.Address
	owner     common.Address
}

// NewRewardVault constructs a vault whose payout reserve is the balance of
// the custodian address. Only the owner may manage controllers.
func NewRewardVault(state State, custodian, owner common.Address) *RewardVault {
	return &RewardVault{state: state, custodian: custodian, owner: owner}
}

func (v *RewardVault) load() (*rewardLedger, error) {
	if v == nil || v.state == nil {
		return nil, fmt.Errorf("custody: reward vault state not configured")
	}
	raw, ok, err := v.state.CustodyStoreGet(rewardLedgerKey)
	if err != nil {
		return nil, fmt.Errorf("custody: load reward ledger: %w", err)
	}
	if !ok {
		return newRewardLedger(), nil
	}
	ledger := newRewardLedger()
	if err := json.Unmarshal(raw, ledger); err != nil {
		return nil, fmt.Errorf("custody: decode reward ledger: %w", err)
	}
	return ledger, nil
}

func (v *RewardVault) store(ledger *rewardLedger) error {
	raw, err := json.Marshal(ledger)
	if err != nil {
		return fmt.Errorf("custody: encode reward ledger: %w", err)
	}
	return v.state.CustodyStoreSet(rewardLedgerKey, raw)
}

func (l *rewardLedger) balance(addr common.Address) (*big.Int, error) {
	encoded, ok := l.Balances[addr.Hex()]
	if !ok {
		return big.NewInt(0), nil
	}
	value, valid := new(big.Int).SetString(encoded, 10)
	if !valid || value.Sign() < 0 {
		return nil, fmt.Errorf("custody: invalid balance %q for %s", encoded, addr.Hex())
	}
	return value, nil
}

func (l *rewardLedger) setBalance(addr common.Address, value *big.Int) {
	l.Balances[addr.Hex()] = value.String()
}

// AddController authorizes an address to mint reward tokens. Owner-gated.
func (v *RewardVault) AddController(caller, controller common.Address) error {
	if caller != v.owner {
		return coreerrors.ErrUnauthorized
	}
	ledger, err := v.load()
	if err != nil {
		return err
	}
	ledger.Controllers[controller.Hex()] = true
	return v.store(ledger)
}

// Mint credits freshly created reward tokens to an address. Controller-gated.
func (v *RewardVault) Mint(caller, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("custody: mint amount must be positive")
	}
	ledger, err := v.load()
	if err != nil {
		return err
	}
	if !ledger.Controllers[caller.Hex()] {
		return coreerrors.ErrUnauthorized
	}
	balance, err := ledger.balance(to)
	if err != nil {
		return err
	}
	ledger.setBalance(to, new(big.Int).Add(balance, amount))
	return v.store(ledger)
}

// Fund moves reward tokens from an address into the payout reserve.
func (v *RewardVault) Fund(from common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("custody: fund amount must be positive")
	}
	ledger, err := v.load()
	if err != nil {
		return err
	}
	source, err := ledger.balance(from)
	if err != nil {
		return err
	}
	if source.Cmp(amount) < 0 {
		return fmt.Errorf("custody: %s holds %s, cannot fund %s", from.Hex(), source, amount)
	}
	// Debit before reading the credit side so a transfer whose endpoints
	// alias nets to zero.
	ledger.setBalance(from, new(big.Int).Sub(source, amount))
	reserve, err := ledger.balance(v.custodian)
	if err != nil {
		return err
	}
	ledger.setBalance(v.custodian, new(big.Int).Add(reserve, amount))
	return v.store(ledger)
}

// TransferOut pays rewards from the reserve to recipient. A short reserve
// fails the payout without mutating any balance.
func (v *RewardVault) TransferOut(recipient common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("custody: payout amount must be non-negative")
	}
	if amount.Sign() == 0 {
		return nil
	}
	ledger, err := v.load()
	if err != nil {
		return err
	}
	reserve, err := ledger.balance(v.custodian)
	if err != nil {
		return err
	}
	if reserve.Cmp(amount) < 0 {
		return coreerrors.ErrInsufficientReserve
	}
	// Same aliasing rule as Fund: debit first, then read the credit side.
	ledger.setBalance(v.custodian, new(big.Int).Sub(reserve, amount))
	credit, err := ledger.balance(recipient)
	if err != nil {
		return err
	}
	ledger.setBalance(recipient, new(big.Int).Add(credit, amount))
	return v.store(ledger)
}

// BalanceOf reports the reward balance held by an address.
func (v *RewardVault) BalanceOf(addr common.Address) (*big.Int, error) {
	ledger, err := v.load()
	if err != nil {
		return nil, err
	}
	return ledger.balance(addr)
}

// Reserve reports the payout reserve held in custody.
func (v *RewardVault) Reserve() (*big.Int, error) {
	return v.BalanceOf(v.custodian)
}
