package state

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"stakevault/native/staking"
	"stakevault/storage"
)

// Manager mediates all durable ledger state: stake records, user accounts and
// the generic parameter/custody key spaces. Writes are buffered in an overlay
// and only reach the backing database on Commit, so a failed operation can be
// discarded without leaving partial state behind.
type Manager struct {
	db      storage.Database
	pending map[string][]byte
}

// NewManager wraps the supplied database with an empty write overlay.
func NewManager(db storage.Database) *Manager {
	return &Manager{
		db:      db,
		pending: make(map[string][]byte),
	}
}

func (m *Manager) get(key []byte) ([]byte, bool, error) {
	if raw, ok := m.pending[string(key)]; ok {
		return raw, true, nil
	}
	raw, err := m.db.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return raw, true, nil
}

func (m *Manager) put(key []byte, value []byte) {
	m.pending[string(key)] = value
}

// Commit flushes buffered writes to the backing database as one atomic
// batch, so a crash mid-commit cannot persist a partial operation.
func (m *Manager) Commit() error {
	if len(m.pending) == 0 {
		return nil
	}
	if err := m.db.WriteBatch(m.pending); err != nil {
		return fmt.Errorf("state: commit batch: %w", err)
	}
	m.pending = make(map[string][]byte)
	return nil
}

// Discard drops all buffered writes.
func (m *Manager) Discard() {
	m.pending = make(map[string][]byte)
}

// --- Stake records ---

func stakeRecordKey(itemID uint64) []byte {
	return []byte(fmt.Sprintf(stakeRecordKeyFormat, itemID))
}

// StakeRecordPut stores the custody record for an item.
func (m *Manager) StakeRecordPut(itemID uint64, rec *staking.StakeRecord) error {
	if rec == nil {
		return fmt.Errorf("state: nil stake record for item %d", itemID)
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("state: encode stake record %d: %w", itemID, err)
	}
	m.put(stakeRecordKey(itemID), raw)
	return nil
}

// StakeRecordGet loads the custody record for an item, reporting whether one
// exists.
func (m *Manager) StakeRecordGet(itemID uint64) (*staking.StakeRecord, bool, error) {
	raw, ok, err := m.get(stakeRecordKey(itemID))
	if err != nil || !ok {
		return nil, false, err
	}
	var rec staking.StakeRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, false, fmt.Errorf("state: decode stake record %d: %w", itemID, err)
	}
	return &rec, true, nil
}

// --- User accounts ---

func stakeAccountKey(addr common.Address) []byte {
	return append(append([]byte{}, stakeAccountPrefix...), addr.Bytes()...)
}

// StakeAccountPut stores a user's staking account and registers the address
// in the account index used for global settlement sweeps.
func (m *Manager) StakeAccountPut(addr common.Address, acct *staking.UserAccount) error {
	if acct == nil {
		return fmt.Errorf("state: nil account for %s", addr.Hex())
	}
	raw, err := json.Marshal(acct)
	if err != nil {
		return fmt.Errorf("state: encode account %s: %w", addr.Hex(), err)
	}
	m.put(stakeAccountKey(addr), raw)
	return m.indexAccount(addr)
}

// StakeAccountGet loads a user's staking account, reporting whether one has
// been created. Accounts are created lazily by the staking engine.
func (m *Manager) StakeAccountGet(addr common.Address) (*staking.UserAccount, bool, error) {
	raw, ok, err := m.get(stakeAccountKey(addr))
	if err != nil || !ok {
		return nil, false, err
	}
	var acct staking.UserAccount
	if err := json.Unmarshal(raw, &acct); err != nil {
		return nil, false, fmt.Errorf("state: decode account %s: %w", addr.Hex(), err)
	}
	return &acct, true, nil
}

// StakeAccountList returns every address that has ever held a staking
// account, in registration order.
func (m *Manager) StakeAccountList() ([]common.Address, error) {
	raw, ok, err := m.get(stakeAccountIndexKey)
	if err != nil || !ok {
		return nil, err
	}
	var hexes []string
	if err := json.Unmarshal(raw, &hexes); err != nil {
		return nil, fmt.Errorf("state: decode account index: %w", err)
	}
	addrs := make([]common.Address, 0, len(hexes))
	for _, h := range hexes {
		addrs = append(addrs, common.HexToAddress(h))
	}
	return addrs, nil
}

func (m *Manager) indexAccount(addr common.Address) error {
	addrs, err := m.StakeAccountList()
	if err != nil {
		return err
	}
	for _, existing := range addrs {
		if existing == addr {
			return nil
		}
	}
	hexes := make([]string, 0, len(addrs)+1)
	for _, existing := range addrs {
		hexes = append(hexes, existing.Hex())
	}
	hexes = append(hexes, addr.Hex())
	raw, err := json.Marshal(hexes)
	if err != nil {
		return fmt.Errorf("state: encode account index: %w", err)
	}
	m.put(stakeAccountIndexKey, raw)
	return nil
}

// --- Generic key spaces ---

// ParamStoreSet persists a named parameter payload.
func (m *Manager) ParamStoreSet(name string, value []byte) error {
	m.put(append(append([]byte{}, paramStorePrefix...), name...), value)
	return nil
}

// ParamStoreGet loads a named parameter payload.
func (m *Manager) ParamStoreGet(name string) ([]byte, bool, error) {
	return m.get(append(append([]byte{}, paramStorePrefix...), name...))
}

// CustodyStoreSet persists a named custody payload.
func (m *Manager) CustodyStoreSet(name string, value []byte) error {
	m.put(append(append([]byte{}, custodyStorePrefix...), name...), value)
	return nil
}

// CustodyStoreGet loads a named custody payload.
func (m *Manager) CustodyStoreGet(name string) ([]byte, bool, error) {
	return m.get(append(append([]byte{}, custodyStorePrefix...), name...))
}
