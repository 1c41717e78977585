// Package database handles all the lower level support for the ledger data
// model and for maintaining the blockchain in storage.
package database

import (
	"sync"
)

// DatabaseIterator walks the blocks held in storage in index order.
type DatabaseIterator struct {
	iterator Iterator
}

// Next retrieves the next block from storage.
func (di *DatabaseIterator) Next() (Block, error) {
	blockData, err := di.iterator.Next()
	if err != nil {
		return Block{}, err
	}

	return ToBlock(blockData), nil
}

// Done returns the end of chain value.
func (di *DatabaseIterator) Done() bool {
	return di.iterator.Done()
}

// =============================================================================

// Database manages the chain held in storage and remembers the latest block.
type Database struct {
	mu          sync.RWMutex
	latestBlock Block
	storage     Storage
}

// New constructs a database over the specified storage.
func New(storage Storage) *Database {
	return &Database{
		storage: storage,
	}
}

// Close closes the underlying storage.
func (db *Database) Close() error {
	return db.storage.Close()
}

// Reset clears the chain from storage.
func (db *Database) Reset() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.latestBlock = Block{}
	return db.storage.Reset()
}

// LatestBlock returns the latest block committed to the chain.
func (db *Database) LatestBlock() Block {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return db.latestBlock
}

// UpdateLatestBlock records the latest block after the chain has been
// replayed from storage.
func (db *Database) UpdateLatestBlock(block Block) {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.latestBlock = block
}

// Write durably stores the block and its balance changes before making it
// the latest block.
func (db *Database) Write(block Block, delta Delta) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if err := db.storage.Write(NewBlockData(block), delta); err != nil {
		return err
	}

	db.latestBlock = block
	return nil
}

// WriteAsset durably stores a stablecoin definition.
func (db *Database) WriteAsset(asset AssetDefinition) error {
	return db.storage.WriteAsset(asset)
}

// GetBlock returns the block stored at the specified index.
func (db *Database) GetBlock(num uint64) (Block, error) {
	blockData, err := db.storage.GetBlock(num)
	if err != nil {
		return Block{}, err
	}

	return ToBlock(blockData), nil
}

// ForEach returns an iterator over every block starting with genesis.
func (db *Database) ForEach() *DatabaseIterator {
	return &DatabaseIterator{iterator: db.storage.ForEach()}
}

// LoadAssets returns the stablecoin definitions held in storage.
func (db *Database) LoadAssets() ([]AssetDefinition, error) {
	return db.storage.LoadAssets()
}

// LoadBalances returns the balances held in storage.
func (db *Database) LoadBalances() ([]BalanceRecord, error) {
	return db.storage.LoadBalances()
}
