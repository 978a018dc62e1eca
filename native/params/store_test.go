package params

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

type fakeState struct {
	values map[string][]byte
}

func newFakeState() *fakeState {
	return &fakeState{values: make(map[string][]byte)}
}

func (s *fakeState) ParamStoreSet(name string, value []byte) error {
	s.values[name] = value
	return nil
}

func (s *fakeState) ParamStoreGet(name string) ([]byte, bool, error) {
	raw, ok := s.values[name]
	return raw, ok, nil
}

func TestStoreDefaults(t *testing.T) {
	store := NewStore(newFakeState())

	rate, err := store.RewardRate()
	if err != nil {
		t.Fatalf("reward rate: %v", err)
	}
	if rate.Sign() != 0 {
		t.Fatalf("default reward rate: got %s want 0", rate)
	}
	if period, err := store.UnbondingPeriod(); err != nil || period != 0 {
		t.Fatalf("default unbonding period: got %d err %v", period, err)
	}
	if paused, err := store.Paused(); err != nil || paused {
		t.Fatalf("default paused: got %v err %v", paused, err)
	}
	if _, ok, err := store.Controller(); err != nil || ok {
		t.Fatalf("default controller: ok=%v err=%v", ok, err)
	}
}

func TestStoreRoundTrip(t *testing.T) {
	store := NewStore(newFakeState())

	if err := store.SetRewardRate(big.NewInt(42)); err != nil {
		t.Fatalf("set reward rate: %v", err)
	}
	rate, err := store.RewardRate()
	if err != nil {
		t.Fatalf("reward rate: %v", err)
	}
	if rate.Cmp(big.NewInt(42)) != 0 {
		t.Fatalf("reward rate: got %s want 42", rate)
	}

	if err := store.SetUnbondingPeriod(100); err != nil {
		t.Fatalf("set unbonding: %v", err)
	}
	if period, _ := store.UnbondingPeriod(); period != 100 {
		t.Fatalf("unbonding period: got %d want 100", period)
	}

	if err := store.SetClaimDelay(200); err != nil {
		t.Fatalf("set claim delay: %v", err)
	}
	if delay, _ := store.ClaimDelay(); delay != 200 {
		t.Fatalf("claim delay: got %d want 200", delay)
	}

	if err := store.SetPaused(true); err != nil {
		t.Fatalf("set paused: %v", err)
	}
	if paused, _ := store.Paused(); !paused {
		t.Fatalf("paused flag not persisted")
	}

	controller := common.HexToAddress("0x00000000000000000000000000000000000000C0")
	if err := store.SetController(controller); err != nil {
		t.Fatalf("set controller: %v", err)
	}
	got, ok, err := store.Controller()
	if err != nil || !ok {
		t.Fatalf("controller: ok=%v err=%v", ok, err)
	}
	if got != controller {
		t.Fatalf("controller: got %s want %s", got.Hex(), controller.Hex())
	}
}

func TestStoreRejectsNegativeRate(t *testing.T) {
	store := NewStore(newFakeState())
	if err := store.SetRewardRate(big.NewInt(-1)); err == nil {
		t.Fatalf("expected error for negative rate")
	}
	if err := store.SetRewardRate(nil); err == nil {
		t.Fatalf("expected error for nil rate")
	}
}
