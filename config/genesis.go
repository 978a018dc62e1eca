package config

import (
	"fmt"
	"math/big"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"
)

// Genesis seeds the ledger on first boot: the controller identity, the
// initial staking parameters, the item set, and the reward reserve.
type Genesis struct {
	Controller        string        `yaml:"controller"`
	RewardRatePerUnit string        `yaml:"rewardRatePerUnit"`
	UnbondingPeriod   uint64        `yaml:"unbondingPeriod"`
	RewardClaimDelay  uint64        `yaml:"rewardClaimDelay"`
	RewardReserve     string        `yaml:"rewardReserve"`
	Items             []GenesisItem `yaml:"items"`
}

// GenesisItem mints one item to an initial owner.
type GenesisItem struct {
	ID    uint64 `yaml:"id"`
	Owner string `yaml:"owner"`
}

// LoadGenesis reads and validates a genesis file.
func LoadGenesis(path string) (*Genesis, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("genesis: read %s: %w", path, err)
	}
	gen := &Genesis{}
	if err := yaml.Unmarshal(raw, gen); err != nil {
		return nil, fmt.Errorf("genesis: decode %s: %w", path, err)
	}
	if err := gen.Validate(); err != nil {
		return nil, err
	}
	return gen, nil
}

// Validate checks addresses and amounts before anything touches the ledger.
func (g *Genesis) Validate() error {
	if _, err := ParseAddress(g.Controller); err != nil {
		return fmt.Errorf("genesis: controller: %w", err)
	}
	if _, err := g.RewardRate(); err != nil {
		return err
	}
	if _, err := g.Reserve(); err != nil {
		return err
	}
	seen := make(map[uint64]bool, len(g.Items))
	for _, item := range g.Items {
		if seen[item.ID] {
			return fmt.Errorf("genesis: duplicate item id %d", item.ID)
		}
		seen[item.ID] = true
		if _, err := ParseAddress(item.Owner); err != nil {
			return fmt.Errorf("genesis: item %d owner: %w", item.ID, err)
		}
	}
	return nil
}

// ControllerAddress returns the decoded controller identity.
func (g *Genesis) ControllerAddress() common.Address {
	addr, _ := ParseAddress(g.Controller)
	return addr
}

// OwnerAddress returns the decoded initial owner of the item.
func (i GenesisItem) OwnerAddress() common.Address {
	addr, _ := ParseAddress(i.Owner)
	return addr
}

// RewardRate parses the reward rate. Empty means zero.
func (g *Genesis) RewardRate() (*big.Int, error) {
	return parseAmount("genesis: rewardRatePerUnit", g.RewardRatePerUnit)
}

// Reserve parses the initial reward reserve. Empty means zero.
func (g *Genesis) Reserve() (*big.Int, error) {
	return parseAmount("genesis: rewardReserve", g.RewardReserve)
}

func parseAmount(field, encoded string) (*big.Int, error) {
	if encoded == "" {
		return big.NewInt(0), nil
	}
	value, ok := new(big.Int).SetString(encoded, 10)
	if !ok || value.Sign() < 0 {
		return nil, fmt.Errorf("%s: invalid amount %q", field, encoded)
	}
	return value, nil
}
