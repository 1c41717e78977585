// Package mempool maintains the mempool for the blockchain.
package mempool

import (
	"errors"
	"fmt"
	"sync"

	"github.com/cadcoin/blockchain/foundation/blockchain/database"
	"github.com/cadcoin/blockchain/foundation/blockchain/mempool/selector"
)

// Set of errors returned when the pool refuses a transaction.
var (
	ErrDuplicateTransaction = errors.New("duplicate transaction")
	ErrPoolFull             = errors.New("pending pool is full")
)

// Mempool represents a cache of transactions waiting to be mined, keyed by
// the transaction hash.
type Mempool struct {
	pool     map[string]database.BlockTx
	mu       sync.RWMutex
	max      int
	selectFn selector.Func
}

// New constructs a new mempool using the default sort strategy.
func New(max int) (*Mempool, error) {
	return NewWithStrategy(max, selector.StrategyFee)
}

// NewWithStrategy constructs a new mempool with specified sort strategy. A
// max of zero or less leaves the pool unbounded.
func NewWithStrategy(max int, strategy string) (*Mempool, error) {
	selectFn, err := selector.Retrieve(strategy)
	if err != nil {
		return nil, err
	}

	mp := Mempool{
		pool:     make(map[string]database.BlockTx),
		max:      max,
		selectFn: selectFn,
	}

	return &mp, nil
}

// Count returns the current number of transaction in the pool.
func (mp *Mempool) Count() int {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	return len(mp.pool)
}

// Upsert adds a transaction to the mempool. A transaction already in the
// pool is refused so the caller knows it was submitted twice.
func (mp *Mempool) Upsert(tx database.BlockTx) (int, error) {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	if _, exists := mp.pool[tx.ID]; exists {
		return len(mp.pool), fmt.Errorf("%w: %s", ErrDuplicateTransaction, tx.ID)
	}

	if mp.max > 0 && len(mp.pool) >= mp.max {
		return len(mp.pool), fmt.Errorf("%w: %d transactions pending", ErrPoolFull, len(mp.pool))
	}

	mp.pool[tx.ID] = tx

	return len(mp.pool), nil
}

// Contains reports whether the transaction hash is pending.
func (mp *Mempool) Contains(id string) bool {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	_, exists := mp.pool[id]
	return exists
}

// Delete removes the transactions with the specified hashes from the mempool.
func (mp *Mempool) Delete(ids ...string) {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	for _, id := range ids {
		delete(mp.pool, id)
	}
}

// Truncate clears all the transactions from the pool.
func (mp *Mempool) Truncate() {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	mp.pool = make(map[string]database.BlockTx)
}

// Copy returns every pending transaction in the configured strategy order.
func (mp *Mempool) Copy() []database.BlockTx {
	return mp.selectFn(mp.snapshot(), -1)
}

// PickBest uses the configured sort strategy to return the next set of
// transactions for the next block. Transactions the keep function rejects
// are skipped. Pass -1 for howMany to consider the whole pool.
func (mp *Mempool) PickBest(howMany int, keep func(tx database.BlockTx) error) []database.BlockTx {
	ordered := mp.selectFn(mp.snapshot(), -1)

	if howMany < 0 {
		howMany = len(ordered)
	}

	final := make([]database.BlockTx, 0, min(howMany, len(ordered)))
	for _, tx := range ordered {
		if len(final) == howMany {
			break
		}

		if keep != nil {
			if err := keep(tx); err != nil {
				continue
			}
		}

		final = append(final, tx)
	}

	return final
}

// =============================================================================

func (mp *Mempool) snapshot() []database.BlockTx {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	txs := make([]database.BlockTx, 0, len(mp.pool))
	for _, tx := range mp.pool {
		txs = append(txs, tx)
	}

	return txs
}
