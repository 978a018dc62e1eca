package params

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// StoreState captures the subset of state manager capabilities required by the
// parameter helpers.
type StoreState interface {
	ParamStoreSet(name string, value []byte) error
	ParamStoreGet(name string) ([]byte, bool, error)
}

// Store provides typed accessors for controller-gated staking parameters.
// Values are marshalled as JSON so parameter payloads stay inspectable.
type Store struct {
	state StoreState
}

// NewStore constructs a parameter store wrapper using the supplied state
// backend.
func NewStore(state StoreState) *Store {
	return &Store{state: state}
}

func (s *Store) withState() (StoreState, error) {
	if s == nil || s.state == nil {
		return nil, fmt.Errorf("params: state not configured")
	}
	return s.state, nil
}

func (s *Store) setJSON(key string, value any) error {
	state, err := s.withState()
	if err != nil {
		return err
	}
	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("params: encode %s: %w", key, err)
	}
	return state.ParamStoreSet(key, encoded)
}

func (s *Store) getJSON(key string, out any) (bool, error) {
	state, err := s.withState()
	if err != nil {
		return false, err
	}
	raw, ok, err := state.ParamStoreGet(key)
	if err != nil {
		return false, err
	}
	if !ok || len(bytes.TrimSpace(raw)) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("params: decode %s: %w", key, err)
	}
	return true, nil
}

// SetRewardRate persists the reward emitted per staked item per height unit.
func (s *Store) SetRewardRate(rate *big.Int) error {
	if rate == nil || rate.Sign() < 0 {
		return fmt.Errorf("params: reward rate must be non-negative")
	}
	return s.setJSON(KeyRewardRate, rate.String())
}

// RewardRate loads the reward rate. Unset defaults to zero.
func (s *Store) RewardRate() (*big.Int, error) {
	var encoded string
	ok, err := s.getJSON(KeyRewardRate, &encoded)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	rate, valid := new(big.Int).SetString(encoded, 10)
	if !valid || rate.Sign() < 0 {
		return nil, fmt.Errorf("params: invalid reward rate %q", encoded)
	}
	return rate, nil
}

// SetUnbondingPeriod persists the height units an item must wait in the
// unbonding queue before withdrawal.
func (s *Store) SetUnbondingPeriod(period uint64) error {
	return s.setJSON(KeyUnbondingPeriod, period)
}

// UnbondingPeriod loads the unbonding period. Unset defaults to zero.
func (s *Store) UnbondingPeriod() (uint64, error) {
	var period uint64
	if _, err := s.getJSON(KeyUnbondingPeriod, &period); err != nil {
		return 0, err
	}
	return period, nil
}

// SetClaimDelay persists the height units between a user's first outstanding
// stake and their first eligible claim.
func (s *Store) SetClaimDelay(delay uint64) error {
	return s.setJSON(KeyClaimDelay, delay)
}

// ClaimDelay loads the claim delay. Unset defaults to zero.
func (s *Store) ClaimDelay() (uint64, error) {
	var delay uint64
	if _, err := s.getJSON(KeyClaimDelay, &delay); err != nil {
		return 0, err
	}
	return delay, nil
}

// SetPaused persists the stake/unstake pause toggle.
func (s *Store) SetPaused(paused bool) error {
	return s.setJSON(KeyPaused, paused)
}

// Paused reports whether stake/unstake mutations are pause-gated. Unset
// defaults to unpaused.
func (s *Store) Paused() (bool, error) {
	var paused bool
	if _, err := s.getJSON(KeyPaused, &paused); err != nil {
		return false, err
	}
	return paused, nil
}

// SetController persists the privileged controller address.
func (s *Store) SetController(controller common.Address) error {
	return s.setJSON(KeyController, controller.Hex())
}

// Controller loads the controller address, reporting whether one has been
// configured. An unset controller means the ledger is uninitialized.
func (s *Store) Controller() (common.Address, bool, error) {
	var encoded string
	ok, err := s.getJSON(KeyController, &encoded)
	if err != nil || !ok {
		return common.Address{}, false, err
	}
	if !common.IsHexAddress(encoded) {
		return common.Address{}, false, fmt.Errorf("params: invalid controller address %q", encoded)
	}
	return common.HexToAddress(encoded), true, nil
}
