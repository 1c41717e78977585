package state

import (
	"time"

	"github.com/cadcoin/blockchain/foundation/blockchain/genesis"
	"github.com/shopspring/decimal"
)

// Consensus holds the reward and difficulty rules every block is held to.
type Consensus struct {
	BaseReward         decimal.Decimal
	MinReward          decimal.Decimal
	HalvingInterval    uint64
	MinDifficulty      uint16
	MaxDifficulty      uint16
	AdjustmentInterval uint64
	TargetBlockTime    time.Duration
}

// NewConsensus extracts the consensus rules from the genesis.
func NewConsensus(gen genesis.Genesis) Consensus {
	return Consensus{
		BaseReward:         gen.BaseReward,
		MinReward:          gen.MinReward,
		HalvingInterval:    gen.HalvingInterval,
		MinDifficulty:      gen.MinDifficulty,
		MaxDifficulty:      gen.MaxDifficulty,
		AdjustmentInterval: gen.AdjustmentInterval,
		TargetBlockTime:    gen.TargetBlockDuration(),
	}
}

// MiningReward returns the reward for the block that makes the chain one
// longer than length. The base reward halves every halving interval and
// never drops below the minimum reward.
func MiningReward(length uint64, c Consensus) decimal.Decimal {
	halvings := length / c.HalvingInterval

	// The divisor must fit in an int64.
	if halvings > 62 {
		return c.MinReward
	}

	reward := c.BaseReward.Div(decimal.NewFromInt(1 << halvings))
	if reward.LessThan(c.MinReward) {
		return c.MinReward
	}

	return reward
}

// NextDifficulty compares the average of the block time samples with the
// target and moves the difficulty toward it:
//
//	average < 0.5 target  : +2
//	average < 0.8 target  : +1
//	average > 2.0 target  : -2
//	average > 1.5 target  : -1
//
// The result stays within the minimum and maximum difficulty.
func NextDifficulty(current uint16, samples []time.Duration, c Consensus) uint16 {
	if len(samples) == 0 {
		return current
	}

	var total time.Duration
	for _, sample := range samples {
		total += sample
	}
	avg := total / time.Duration(len(samples))
	target := c.TargetBlockTime

	next := int(current)
	switch {
	case avg*10 < target*5:
		next += 2
	case avg*10 < target*8:
		next++
	case avg > target*2:
		next -= 2
	case avg*10 > target*15:
		next--
	}

	return uint16(max(int(c.MinDifficulty), min(int(c.MaxDifficulty), next)))
}
