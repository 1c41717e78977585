package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cadcoin/blockchain/foundation/blockchain/database"
	"github.com/shopspring/decimal"
)

// MineNewBlock attempts to create a new block with a proper hash that can become
// the next block in the chain. An empty mempool still produces a block that
// carries only the reward. Every attempt is counted in the mining stats.
func (s *State) MineNewBlock(ctx context.Context, miner database.Address) (database.Block, error) {
	if !miner.IsAddress() {
		return database.Block{}, fmt.Errorf("%w: invalid miner %q", database.ErrValidation, miner)
	}

	started := time.Now()
	block, err := s.mineNewBlock(ctx, miner)
	s.attempts.record(miner, time.Since(started), err == nil)

	return block, err
}

func (s *State) mineNewBlock(ctx context.Context, miner database.Address) (database.Block, error) {
	s.evHandler("state: MineNewBlock: MINING: snapshot chain")

	// Take what is needed under the read lock. The search itself runs
	// without holding any lock.
	s.mu.RLock()
	prevBlock := s.db.LatestBlock()
	difficulty := s.difficulty
	sheet := s.ledger.Clone()
	s.mu.RUnlock()

	// Pick the best transactions that still apply on top of each other.
	trans := s.mempool.PickBest(s.genesis.MaxBlockSize-1, func(tx database.BlockTx) error {
		return sheet.ApplyTx(tx.Tx)
	})

	fees := decimal.Zero
	for _, tx := range trans {
		fees = fees.Add(tx.Fee)
	}

	reward := MiningReward(prevBlock.Header.Index+1, s.consensus)
	rewardTx, err := database.NewReward(miner, s.genesis.NativeSymbol, reward.Add(fees))
	if err != nil {
		return database.Block{}, err
	}

	s.evHandler("state: MineNewBlock: MINING: perform POW: trans[%d] difficulty[%d] reward[%s]", len(trans), difficulty, reward)

	ctx, cancel := context.WithTimeout(ctx, s.genesis.MiningTimeoutDuration())
	defer cancel()

	// Attempt to create a new block by solving the POW puzzle. This can be cancelled.
	block, err := database.POW(ctx, database.POWArgs{
		Miner:      miner,
		Difficulty: difficulty,
		PrevBlock:  prevBlock,
		Trans:      append([]database.BlockTx{database.NewBlockTx(rewardTx)}, trans...),
		EvHandler:  s.evHandler,
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return database.Block{}, fmt.Errorf("%w: block %d at difficulty %d", ErrMiningTimeout, prevBlock.Header.Index+1, difficulty)
		}
		return database.Block{}, err
	}

	s.evHandler("state: MineNewBlock: MINING: validate and update database")

	// Validate the block and then update the blockchain database.
	if err := s.TryAppend(block); err != nil {
		return database.Block{}, err
	}

	return block, nil
}

// TryAppend takes the block and validates the block against the consensus
// rules. If the block passes, then the state of the node is updated
// including adding the block to storage. A failure leaves nothing changed.
func (s *State) TryAppend(block database.Block) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prevBlock := s.db.LatestBlock()

	sheet, delta, err := s.applyBlock(prevBlock, block)
	if err != nil {
		s.evHandler("state: TryAppend: block[%d] rejected: %s", block.Header.Index, err)
		return err
	}

	s.evHandler("state: TryAppend: write to storage")

	// Write the new block to the chain in storage.
	if err := s.db.Write(block, delta); err != nil {
		return fmt.Errorf("writing block %d: %w", block.Header.Index, err)
	}

	s.ledger = sheet

	s.evHandler("state: TryAppend: remove from mempool")

	ids := make([]string, len(block.Trans))
	for i, tx := range block.Trans {
		ids[i] = tx.ID
	}
	s.mempool.Delete(ids...)
	s.evictStale()

	s.recordBlock(prevBlock, block)

	// Send an event about this new block.
	s.blockEvent(block)

	return nil
}

// =============================================================================

// evictStale drops pending transactions that no longer apply to the new
// balances, such as the losing half of a double spend.
func (s *State) evictStale() {
	var stale []string
	for _, tx := range s.mempool.Copy() {
		if s.isCommitted(tx) {
			stale = append(stale, tx.ID)
			continue
		}
		if err := s.ledger.Validate(tx.Tx); err != nil {
			s.evHandler("state: evictStale: tx[%s] dropped: %s", tx.ID, err)
			stale = append(stale, tx.ID)
		}
	}

	s.mempool.Delete(stale...)
}

// blockEvent provides a specific event about a new block in the chain for
// application specific support.
func (s *State) blockEvent(block database.Block) {
	blockHeaderJSON, err := json.Marshal(block.Header)
	if err != nil {
		blockHeaderJSON = []byte(fmt.Sprintf("%q", err.Error()))
	}

	blockTransJSON, err := json.Marshal(block.Trans)
	if err != nil {
		blockTransJSON = []byte(fmt.Sprintf("%q", err.Error()))
	}

	s.evHandler(`viewer: block: {"hash":%q,"header":%s,"trans":%s}`, block.Hash(), string(blockHeaderJSON), string(blockTransJSON))
}
