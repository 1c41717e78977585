package state

import (
	"context"
	"math"
	"time"

	"github.com/cadcoin/blockchain/foundation/blockchain/database"
	"github.com/cadcoin/blockchain/foundation/blockchain/genesis"
	"github.com/shopspring/decimal"
)

// MaxQueryBlocks caps the number of blocks returned by a single query.
const MaxQueryBlocks = 100

// ChainInfo is a summary of the chain and its current rules.
type ChainInfo struct {
	Length            uint64                     `json:"length"`
	LatestHash        string                     `json:"latest_hash"`
	Difficulty        uint16                     `json:"difficulty"`
	CurrentReward     decimal.Decimal            `json:"current_reward"`
	PendingCount      int                        `json:"pending_count"`
	TotalTransactions uint64                     `json:"total_transactions"`
	AvgBlockTime      float64                    `json:"avg_block_time"`      // Seconds.
	EstimatedHashRate float64                    `json:"estimated_hash_rate"` // Hashes per second.
	MinFee            decimal.Decimal            `json:"min_fee"`
	MaxBlockSize      int                        `json:"max_block_size"`
	TargetBlockTime   float64                    `json:"target_block_time"`
	HalvingInterval   uint64                     `json:"halving_interval"`
	StableCoins       []database.AssetDefinition `json:"stable_coins"`
}

// =============================================================================

// QueryBalance returns every asset balance the address holds.
func (s *State) QueryBalance(address database.Address) map[database.Symbol]decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.ledger.Balance(address)
}

// QueryBalanceOf returns the balance the address holds of one asset. The
// symbol must be the native coin or a registered stablecoin.
func (s *State) QueryBalanceOf(address database.Address, symbol database.Symbol) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if symbol != s.genesis.NativeSymbol {
		if _, err := s.ledger.Asset(symbol); err != nil {
			return decimal.Zero, err
		}
	}

	return s.ledger.BalanceOf(address, symbol), nil
}

// QueryBalances returns every non zero balance ordered by address and symbol.
func (s *State) QueryBalances() []database.BalanceRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.ledger.Records()
}

// QueryChainInfo returns a consistent summary of the chain.
func (s *State) QueryChainInfo() ChainInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	latest := s.db.LatestBlock()
	length := latest.Header.Index + 1

	var avg time.Duration
	if len(s.samples) > 0 {
		var total time.Duration
		for _, sample := range s.samples {
			total += sample
		}
		avg = total / time.Duration(len(s.samples))
	}

	var hashRate float64
	if avg > 0 {
		hashRate = math.Pow(16, float64(s.difficulty)) / avg.Seconds()
	}

	return ChainInfo{
		Length:            length,
		LatestHash:        latest.Hash(),
		Difficulty:        s.difficulty,
		CurrentReward:     MiningReward(length, s.consensus),
		PendingCount:      s.mempool.Count(),
		TotalTransactions: s.txCount,
		AvgBlockTime:      avg.Seconds(),
		EstimatedHashRate: hashRate,
		MinFee:            s.genesis.MinFee,
		MaxBlockSize:      s.genesis.MaxBlockSize,
		TargetBlockTime:   s.consensus.TargetBlockTime.Seconds(),
		HalvingInterval:   s.consensus.HalvingInterval,
		StableCoins:       s.ledger.Assets(),
	}
}

// QueryBlocks returns up to limit blocks, newest first, skipping the offset
// newest blocks. The limit is capped at MaxQueryBlocks.
func (s *State) QueryBlocks(offset int, limit int) ([]database.Block, error) {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 || limit > MaxQueryBlocks {
		limit = MaxQueryBlocks
	}

	latest := s.db.LatestBlock().Header.Index
	if uint64(offset) > latest {
		return nil, nil
	}

	var out []database.Block
	for i := int64(latest) - int64(offset); i >= 0 && len(out) < limit; i-- {
		block, err := s.db.GetBlock(uint64(i))
		if err != nil {
			return nil, err
		}
		out = append(out, block)
	}

	return out, nil
}

// QueryBlock returns the block stored at the index.
func (s *State) QueryBlock(index uint64) (database.Block, error) {
	return s.db.GetBlock(index)
}

// QueryTxProof returns the inclusion proof for a transaction recorded in
// the block at the index.
func (s *State) QueryTxProof(index uint64, id string) (database.TxProof, error) {
	block, err := s.db.GetBlock(index)
	if err != nil {
		return database.TxProof{}, err
	}

	return block.ProveTx(id)
}

// QueryMempool returns the pending transactions in selection order.
func (s *State) QueryMempool() []database.BlockTx {
	return s.mempool.Copy()
}

// QueryMempoolLength returns the current length of the mempool.
func (s *State) QueryMempoolLength() int {
	return s.mempool.Count()
}

// QueryAssets returns every stablecoin definition.
func (s *State) QueryAssets() []database.AssetDefinition {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.ledger.Assets()
}

// QueryAsset returns the stablecoin definition for the symbol.
func (s *State) QueryAsset(symbol database.Symbol) (database.AssetDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.ledger.Asset(symbol)
}

// RetrieveGenesis returns a copy of the genesis information.
func (s *State) RetrieveGenesis() genesis.Genesis {
	return s.genesis
}

// RetrieveLatestBlock returns a copy the current latest block.
func (s *State) RetrieveLatestBlock() database.Block {
	return s.db.LatestBlock()
}

// =============================================================================

// ValidateChain reads the newest blocks back from storage and checks their
// linkage and proof of work. A depth of zero or less checks the whole chain.
// One block older than the depth is read so the oldest checked block can be
// linked to its parent.
func (s *State) ValidateChain(ctx context.Context, depth int) (database.ChainReport, error) {
	latest := s.db.LatestBlock().Header.Index

	var from uint64
	if depth > 0 && uint64(depth) < latest {
		from = latest - uint64(depth)
	}

	blocks := make([]database.Block, 0, latest-from+1)
	for i := from; i <= latest; i++ {
		if err := ctx.Err(); err != nil {
			return database.ChainReport{}, err
		}

		block, err := s.db.GetBlock(i)
		if err != nil {
			return database.ChainReport{}, err
		}
		blocks = append(blocks, block)
	}

	report, err := database.ValidateChain(ctx, blocks)
	if err != nil {
		return database.ChainReport{}, err
	}

	if !report.Valid {
		s.evHandler("state: ValidateChain: violation: block[%d]: %s", report.FirstViolation.Index, report.FirstViolation.Reason)
	}

	return report, nil
}
