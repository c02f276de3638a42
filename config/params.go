package config

import (
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/ethereum/go-ethereum/common"

	"solstice/core/epoch"
)

// Params are the fixed protocol constants the settlement jobs run against.
// Unlike Config these are immutable for a given deployment; changing them
// between runs re-partitions or re-prices history.
type Params struct {
	GenesisTimestamp    int64  `toml:"GenesisTimestamp"`
	WeeklyPoolA         string `toml:"WeeklyPoolA"`
	PoolBActivationWeek int64  `toml:"PoolBActivationWeek"`
	PoolBToken          string `toml:"PoolBToken"`
	PoolBVault          string `toml:"PoolBVault"`
}

// DefaultParams returns the mainnet protocol constants.
func DefaultParams() Params {
	return Params{
		GenesisTimestamp:    epoch.DefaultGenesis,
		WeeklyPoolA:         "175000000000",
		PoolBActivationWeek: 16,
	}
}

// LoadParams reads protocol parameters from a TOML file. A missing path
// yields the defaults; a present but malformed file is an error.
func LoadParams(path string) (Params, error) {
	params := DefaultParams()
	if strings.TrimSpace(path) == "" {
		return params, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return params, nil
	}
	if _, err := toml.DecodeFile(path, &params); err != nil {
		return Params{}, fmt.Errorf("params: decode %s: %w", path, err)
	}
	if err := params.Validate(); err != nil {
		return Params{}, err
	}
	return params, nil
}

// Validate ensures the parameters are self-consistent.
func (p Params) Validate() error {
	if p.GenesisTimestamp <= 0 {
		return fmt.Errorf("params: genesis timestamp must be positive")
	}
	if _, ok := new(big.Int).SetString(p.WeeklyPoolA, 10); !ok {
		return fmt.Errorf("params: weekly pool A %q is not an integer", p.WeeklyPoolA)
	}
	if p.PoolBActivationWeek < 0 {
		return fmt.Errorf("params: pool B activation week cannot be negative")
	}
	if p.PoolBToken != "" && !common.IsHexAddress(p.PoolBToken) {
		return fmt.Errorf("params: pool B token %q is not an address", p.PoolBToken)
	}
	if p.PoolBVault != "" && !common.IsHexAddress(p.PoolBVault) {
		return fmt.Errorf("params: pool B vault %q is not an address", p.PoolBVault)
	}
	return nil
}

// PoolA returns the fixed weekly pool A budget in scale-6 token units.
func (p Params) PoolA() *big.Int {
	pool, ok := new(big.Int).SetString(p.WeeklyPoolA, 10)
	if !ok {
		return big.NewInt(0)
	}
	return pool
}

// Clock builds the week clock anchored at this deployment's genesis.
func (p Params) Clock() epoch.Clock {
	return epoch.NewClock(p.GenesisTimestamp)
}
