package state

import (
	"fmt"

	"github.com/cadcoin/blockchain/foundation/blockchain/database"
	"github.com/cadcoin/blockchain/foundation/blockchain/mempool"
	"github.com/shopspring/decimal"
)

// SubmitTransaction validates the transaction against the current balances
// and registry and places it in the mempool for the next block.
func (s *State) SubmitTransaction(tx database.Tx) (database.BlockTx, error) {
	if tx.Kind == database.KindReward {
		return database.BlockTx{}, fmt.Errorf("%w: rewards are only issued by miners", database.ErrValidation)
	}

	blockTx := database.NewBlockTx(tx)

	if err := s.validateTransaction(blockTx); err != nil {
		return database.BlockTx{}, err
	}

	n, err := s.mempool.Upsert(blockTx)
	if err != nil {
		return database.BlockTx{}, err
	}

	s.evHandler("state: SubmitTransaction: tx[%s] accepted: pending[%d]", blockTx.ID, n)

	s.Worker.SignalStartMining()

	return blockTx, nil
}

// Mint asks for amount of the stablecoin to be issued to the recipient. The
// mint is an ordinary pending transaction paying the default fee and only
// changes the supply once it is mined.
func (s *State) Mint(symbol database.Symbol, recipient database.Address, amount decimal.Decimal, minter database.Address) (database.BlockTx, error) {
	tx, err := database.NewMint(minter, recipient, symbol, amount, database.DefaultFee(amount, s.genesis.MinFee))
	if err != nil {
		return database.BlockTx{}, err
	}

	return s.SubmitTransaction(tx)
}

// =============================================================================

// validateTransaction checks the transaction against a consistent snapshot
// of the ledger and the transactions already in the chain.
func (s *State) validateTransaction(tx database.BlockTx) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.isCommitted(tx) {
		return fmt.Errorf("%w: transaction %s is already in the chain", mempool.ErrDuplicateTransaction, tx.ID)
	}

	return s.ledger.Validate(tx.Tx)
}
