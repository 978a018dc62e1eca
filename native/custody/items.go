package custody

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	coreerrors "stakevault/core/errors"
)

// State captures the subset of state manager capabilities the custody
// registries persist through.
type State interface {
	CustodyStoreSet(name string, value []byte) error
	CustodyStoreGet(name string) ([]byte, bool, error)
}

const itemLedgerKey = "items"

// itemLedger is the persisted form of the item registry: ownership, per-item
// approvals and blanket operator approvals, keyed by decimal item id.
type itemLedger struct {
	Owners    map[string]string          `json:"owners"`
	Approved  map[string]string          `json:"approved"`
	Operators map[string]map[string]bool `json:"operators"`
}

func newItemLedger() *itemLedger {
	return &itemLedger{
		Owners:    make(map[string]string),
		Approved:  make(map[string]string),
		Operators: make(map[string]map[string]bool),
	}
}

// ItemRegistry is an in-process item custody collaborator: a minimal
// non-fungible registry with minting, approvals and custody transfer. The
// ModuleAddress is the ledger account that holds items and the reward
// reserve while they are under custody.
var ModuleAddress = common.HexToAddress("0x0000000000000000000000000000000000001001")

// staking engine only sees the TransferIn/TransferOut surface.
type ItemRegistry struct {
	state     State
	custodian common.Address
	deployer  common.Address
}

// NewItemRegistry constructs a registry whose custody transfers move items in
// and out of the custodian address. Only the deployer may mint.
func NewItemRegistry(state State, custodian, deployer common.Address) *ItemRegistry {
	return &ItemRegistry{state: state, custodian: custodian, deployer: deployer}
}

func itemKey(itemID uint64) string {
	return strconv.FormatUint(itemID, 10)
}

func (r *ItemRegistry) load() (*itemLedger, error) {
	if r == nil || r.state == nil {
		return nil, fmt.Errorf("custody: item registry state not configured")
	}
	raw, ok, err := r.state.CustodyStoreGet(itemLedgerKey)
	if err != nil {
		return nil, fmt.Errorf("custody: load item ledger: %w", err)
	}
	if !ok {
		return newItemLedger(), nil
	}
	ledger := newItemLedger()
	if err := json.Unmarshal(raw, ledger); err != nil {
		return nil, fmt.Errorf("custody: decode item ledger: %w", err)
	}
	return ledger, nil
}

func (r *ItemRegistry) store(ledger *itemLedger) error {
	raw, err := json.Marshal(ledger)
	if err != nil {
		return fmt.Errorf("custody: encode item ledger: %w", err)
	}
	return r.state.CustodyStoreSet(itemLedgerKey, raw)
}

// Mint creates a fresh item owned by to. Deployer-gated.
func (r *ItemRegistry) Mint(caller, to common.Address, itemID uint64) error {
	if caller != r.deployer {
		return coreerrors.ErrUnauthorized
	}
	ledger, err := r.load()
	if err != nil {
		return err
	}
	key := itemKey(itemID)
	if _, exists := ledger.Owners[key]; exists {
		return fmt.Errorf("custody: item %d already minted", itemID)
	}
	ledger.Owners[key] = to.Hex()
	return r.store(ledger)
}

// OwnerOf reports the current holder of an item.
func (r *ItemRegistry) OwnerOf(itemID uint64) (common.Address, bool, error) {
	ledger, err := r.load()
	if err != nil {
		return common.Address{}, false, err
	}
	encoded, ok := ledger.Owners[itemKey(itemID)]
	if !ok {
		return common.Address{}, false, nil
	}
	return common.HexToAddress(encoded), true, nil
}

// Approve authorizes operator to take custody of a single item. The caller
// must hold the item.
func (r *ItemRegistry) Approve(caller, operator common.Address, itemID uint64) error {
	ledger, err := r.load()
	if err != nil {
		return err
	}
	key := itemKey(itemID)
	if ledger.Owners[key] != caller.Hex() {
		return fmt.Errorf("custody: item %d not owned by %s", itemID, caller.Hex())
	}
	ledger.Approved[key] = operator.Hex()
	return r.store(ledger)
}

// SetApprovalForAll toggles a blanket operator approval for every item the
// caller holds now or later.
func (r *ItemRegistry) SetApprovalForAll(caller, operator common.Address, approved bool) error {
	ledger, err := r.load()
	if err != nil {
		return err
	}
	ops := ledger.Operators[caller.Hex()]
	if ops == nil {
		ops = make(map[string]bool)
		ledger.Operators[caller.Hex()] = ops
	}
	if approved {
		ops[operator.Hex()] = true
	} else {
		delete(ops, operator.Hex())
	}
	return r.store(ledger)
}

func (r *ItemRegistry) custodianApproved(ledger *itemLedger, owner common.Address, key string) bool {
	if ledger.Approved[key] == r.custodian.Hex() {
		return true
	}
	return ledger.Operators[owner.Hex()][r.custodian.Hex()]
}

// TransferIn moves an item from owner into system custody. The owner must
// hold the item and must have approved the custodian beforehand; failure
// leaves the registry untouched.
func (r *ItemRegistry) TransferIn(owner common.Address, itemID uint64) error {
	ledger, err := r.load()
	if err != nil {
		return err
	}
	key := itemKey(itemID)
	holder, ok := ledger.Owners[key]
	if !ok || holder != owner.Hex() {
		return fmt.Errorf("custody: item %d not held by %s", itemID, owner.Hex())
	}
	if !r.custodianApproved(ledger, owner, key) {
		return coreerrors.ErrApprovalMissing
	}
	ledger.Owners[key] = r.custodian.Hex()
	delete(ledger.Approved, key)
	return r.store(ledger)
}

// TransferOut returns an item from system custody to recipient.
func (r *ItemRegistry) TransferOut(recipient common.Address, itemID uint64) error {
	ledger, err := r.load()
	if err != nil {
		return err
	}
	key := itemKey(itemID)
	if ledger.Owners[key] != r.custodian.Hex() {
		return fmt.Errorf("custody: item %d not held in custody", itemID)
	}
	ledger.Owners[key] = recipient.Hex()
	return r.store(ledger)
}
