// Package genesis maintains access to the genesis file.
package genesis

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/cadcoin/blockchain/foundation/blockchain/database"
	"github.com/shopspring/decimal"
)

// Genesis represents the genesis file.
type Genesis struct {
	Date                  time.Time                            `json:"date"`
	NativeSymbol          database.Symbol                      `json:"native_symbol"`            // The coin used for fees and rewards.
	BaseReward            decimal.Decimal                      `json:"base_reward"`              // Reward for mining a block before any halving.
	MinReward             decimal.Decimal                      `json:"min_reward"`               // The reward never halves below this amount.
	HalvingInterval       uint64                               `json:"halving_interval"`         // Number of blocks between halvings.
	Difficulty            uint16                               `json:"difficulty"`               // Starting number of leading zero hex digits.
	MinDifficulty         uint16                               `json:"min_difficulty"`
	MaxDifficulty         uint16                               `json:"max_difficulty"`
	AdjustmentInterval    uint64                               `json:"adjustment_interval"`      // Number of blocks between retargets.
	TargetBlockTime       uint64                               `json:"target_block_time"`        // Seconds.
	MaxPending            int                                  `json:"max_pending"`              // Capacity of the pending pool.
	MinFee                decimal.Decimal                      `json:"min_fee"`
	MaxBlockSize          int                                  `json:"max_block_size"`           // Transactions per block including the reward.
	MiningTimeout         uint64                               `json:"mining_timeout"`           // Seconds.
	ValidationDepth       int                                  `json:"validation_depth"`         // Default depth for chain validation.
	CreateAssetMinBalance decimal.Decimal                      `json:"create_asset_min_balance"` // Native coin needed to create a stablecoin.
	Balances              map[database.Address]decimal.Decimal `json:"balances"`
}

// Default returns the genesis used when no file is provided.
func Default() Genesis {
	return Genesis{
		Date:                  time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
		NativeSymbol:          "CAD-COIN",
		BaseReward:            decimal.NewFromInt(50),
		MinReward:             decimal.RequireFromString("0.1"),
		HalvingInterval:       100,
		Difficulty:            4,
		MinDifficulty:         4,
		MaxDifficulty:         20,
		AdjustmentInterval:    10,
		TargetBlockTime:       10,
		MaxPending:            1000,
		MinFee:                decimal.RequireFromString("0.001"),
		MaxBlockSize:          100,
		MiningTimeout:         300,
		ValidationDepth:       5,
		CreateAssetMinBalance: decimal.Zero,
		Balances:              map[database.Address]decimal.Decimal{},
	}
}

// =============================================================================

// Load opens and consumes the genesis file. Fields the file leaves out keep
// their default value.
func Load(path string) (Genesis, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Genesis{}, err
	}

	genesis := Default()
	if err := json.Unmarshal(content, &genesis); err != nil {
		return Genesis{}, fmt.Errorf("decoding %s: %w", path, err)
	}

	if err := genesis.Validate(); err != nil {
		return Genesis{}, err
	}

	return genesis, nil
}

// Validate checks the parameters are usable.
func (g Genesis) Validate() error {
	if _, err := database.ToSymbol(string(g.NativeSymbol)); err != nil {
		return err
	}

	switch {
	case g.MinDifficulty == 0 || g.MinDifficulty > g.MaxDifficulty:
		return errors.New("genesis: min difficulty must be between 1 and max difficulty")
	case g.MaxDifficulty > 64:
		return errors.New("genesis: max difficulty cannot exceed 64 hex digits")
	case g.Difficulty < g.MinDifficulty || g.Difficulty > g.MaxDifficulty:
		return errors.New("genesis: difficulty must be between min and max difficulty")
	case g.HalvingInterval == 0 || g.AdjustmentInterval == 0:
		return errors.New("genesis: halving and adjustment intervals must be positive")
	case g.TargetBlockTime == 0 || g.MiningTimeout == 0:
		return errors.New("genesis: target block time and mining timeout must be positive")
	case g.MaxBlockSize < 1:
		return errors.New("genesis: max block size must leave room for the reward")
	case !g.BaseReward.IsPositive() || g.MinReward.IsNegative() || g.MinFee.IsNegative():
		return errors.New("genesis: rewards and fees cannot be negative")
	}

	for address, amount := range g.Balances {
		if !address.IsAddress() {
			return fmt.Errorf("genesis: invalid address %q", address)
		}
		if amount.IsNegative() {
			return fmt.Errorf("genesis: negative balance for %s", address)
		}
	}

	return nil
}

// TargetBlockDuration returns the target block time as a duration.
func (g Genesis) TargetBlockDuration() time.Duration {
	return time.Duration(g.TargetBlockTime) * time.Second
}

// MiningTimeoutDuration returns the mining timeout as a duration.
func (g Genesis) MiningTimeoutDuration() time.Duration {
	return time.Duration(g.MiningTimeout) * time.Second
}

// Records returns the genesis balances as native coin records.
func (g Genesis) Records() []database.BalanceRecord {
	records := make([]database.BalanceRecord, 0, len(g.Balances))
	for address, amount := range g.Balances {
		records = append(records, database.BalanceRecord{
			Address: address,
			Symbol:  g.NativeSymbol,
			Amount:  amount,
		})
	}

	return records
}
