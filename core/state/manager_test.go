package state

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"stakevault/native/staking"
	"stakevault/storage"
)

var testAddr = common.HexToAddress("0x0000000000000000000000000000000000000001")

func newTestManager(t *testing.T) (*Manager, *storage.MemDB) {
	t.Helper()
	db := storage.NewMemDB()
	t.Cleanup(db.Close)
	return NewManager(db), db
}

func TestStakeRecordRoundTrip(t *testing.T) {
	mgr, _ := newTestManager(t)

	if _, ok, err := mgr.StakeRecordGet(1); err != nil || ok {
		t.Fatalf("expected no record, ok=%v err=%v", ok, err)
	}

	rec := &staking.StakeRecord{Owner: testAddr, Status: staking.StatusStaked, StakedAt: 42}
	if err := mgr.StakeRecordPut(1, rec); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, ok, err := mgr.StakeRecordGet(1)
	if err != nil || !ok {
		t.Fatalf("get staged record: ok=%v err=%v", ok, err)
	}
	if got.Owner != testAddr || got.Status != staking.StatusStaked || got.StakedAt != 42 {
		t.Fatalf("unexpected record: %+v", got)
	}

	if err := mgr.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	got, ok, err = mgr.StakeRecordGet(1)
	if err != nil || !ok {
		t.Fatalf("get committed record: ok=%v err=%v", ok, err)
	}
	if got.StakedAt != 42 {
		t.Fatalf("committed record: %+v", got)
	}
}

func TestDiscardDropsStagedWrites(t *testing.T) {
	mgr, db := newTestManager(t)

	acct := &staking.UserAccount{TotalStaked: 1, AccruedUnclaimed: big.NewInt(5)}
	if err := mgr.StakeAccountPut(testAddr, acct); err != nil {
		t.Fatalf("put: %v", err)
	}
	mgr.Discard()

	if _, ok, err := mgr.StakeAccountGet(testAddr); err != nil || ok {
		t.Fatalf("discarded write still visible: ok=%v err=%v", ok, err)
	}
	if _, err := db.Get([]byte("staking/accounts")); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("discarded index reached the database: %v", err)
	}
}

func TestStagedWritesShadowCommitted(t *testing.T) {
	mgr, _ := newTestManager(t)

	if err := mgr.ParamStoreSet("k", []byte("old")); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := mgr.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if err := mgr.ParamStoreSet("k", []byte("new")); err != nil {
		t.Fatalf("set: %v", err)
	}
	raw, ok, err := mgr.ParamStoreGet("k")
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if string(raw) != "new" {
		t.Fatalf("staged value not visible: %q", raw)
	}
	mgr.Discard()
	raw, _, _ = mgr.ParamStoreGet("k")
	if string(raw) != "old" {
		t.Fatalf("committed value lost after discard: %q", raw)
	}
}

// recordingDB counts writes so tests can assert Commit reaches the backend
// as a single batch rather than one Put per key.
type recordingDB struct {
	*storage.MemDB
	puts    int
	batches int
}

func (db *recordingDB) Put(key []byte, value []byte) error {
	db.puts++
	return db.MemDB.Put(key, value)
}

func (db *recordingDB) WriteBatch(entries map[string][]byte) error {
	db.batches++
	return db.MemDB.WriteBatch(entries)
}

func TestCommitIsSingleBatch(t *testing.T) {
	db := &recordingDB{MemDB: storage.NewMemDB()}
	t.Cleanup(db.Close)
	mgr := NewManager(db)

	rec := &staking.StakeRecord{Owner: testAddr, Status: staking.StatusStaked}
	if err := mgr.StakeRecordPut(1, rec); err != nil {
		t.Fatalf("put record: %v", err)
	}
	acct := &staking.UserAccount{TotalStaked: 1, AccruedUnclaimed: big.NewInt(0)}
	if err := mgr.StakeAccountPut(testAddr, acct); err != nil {
		t.Fatalf("put account: %v", err)
	}

	if err := mgr.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if db.puts != 0 {
		t.Fatalf("commit used %d individual puts", db.puts)
	}
	if db.batches != 1 {
		t.Fatalf("commit used %d batches, want 1", db.batches)
	}

	// An empty overlay commits without touching the backend.
	if err := mgr.Commit(); err != nil {
		t.Fatalf("empty commit: %v", err)
	}
	if db.batches != 1 {
		t.Fatalf("empty commit reached the backend: %d batches", db.batches)
	}
}

func TestAccountIndexDeduplicates(t *testing.T) {
	mgr, _ := newTestManager(t)

	acct := &staking.UserAccount{AccruedUnclaimed: big.NewInt(0)}
	for i := 0; i < 3; i++ {
		if err := mgr.StakeAccountPut(testAddr, acct); err != nil {
			t.Fatalf("put %d: %v", i, err)
		}
	}
	other := common.HexToAddress("0x0000000000000000000000000000000000000002")
	if err := mgr.StakeAccountPut(other, acct); err != nil {
		t.Fatalf("put other: %v", err)
	}

	addrs, err := mgr.StakeAccountList()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(addrs) != 2 {
		t.Fatalf("account index: got %d entries want 2", len(addrs))
	}
	if addrs[0] != testAddr || addrs[1] != other {
		t.Fatalf("account index order: %v", addrs)
	}
}
