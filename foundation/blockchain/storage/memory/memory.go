// Package memory implements the ability to read and write blocks to memory
// using a slice.
package memory

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/cadcoin/blockchain/foundation/blockchain/database"
)

// Memory represents the serialization implementation for reading and storing
// blocks in memory using a slice. This implements the database.Storage
// interface.
type Memory struct {
	mu       sync.RWMutex
	blocks   []database.BlockData
	balances map[balanceKey]database.BalanceRecord
	assets   map[database.Symbol]database.AssetDefinition
}

type balanceKey struct {
	address database.Address
	symbol  database.Symbol
}

// New constructs an Memory value for use.
func New() (*Memory, error) {
	m := Memory{
		balances: make(map[balanceKey]database.BalanceRecord),
		assets:   make(map[database.Symbol]database.AssetDefinition),
	}

	return &m, nil
}

// Close in this implementation has nothing to do since everything
// is in memory.
func (m *Memory) Close() error {
	return nil
}

// Write takes the specified block and balance changes and stores them in
// memory.
func (m *Memory) Write(blockData database.BlockData, delta database.Delta) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	l := len(m.blocks)
	if uint64(l) != blockData.Header.Index {
		return fmt.Errorf("block is out of order, got %d, exp %d", blockData.Header.Index, l)
	}

	m.blocks = append(m.blocks, blockData)

	for _, rec := range delta.Balances {
		m.balances[balanceKey{rec.Address, rec.Symbol}] = rec
	}

	for _, asset := range delta.Assets {
		m.assets[asset.Symbol] = asset.Copy()
	}

	return nil
}

// GetBlock searches the blockchain to locate and return the contents of
// the specified block by number.
func (m *Memory) GetBlock(num uint64) (database.BlockData, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	l := uint64(len(m.blocks))
	if l == 0 || num >= l {
		return database.BlockData{}, errors.New("block does not exist")
	}

	return m.blocks[num], nil
}

// ForEach returns an iterator to walk through all the blocks
// starting with the genesis block.
func (m *Memory) ForEach() database.Iterator {
	return &memoryIterator{storage: m}
}

// WriteAsset stores the stablecoin definition.
func (m *Memory) WriteAsset(asset database.AssetDefinition) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.assets[asset.Symbol] = asset.Copy()
	return nil
}

// LoadAssets returns the stablecoin definitions ordered by symbol.
func (m *Memory) LoadAssets() ([]database.AssetDefinition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	assets := make([]database.AssetDefinition, 0, len(m.assets))
	for _, asset := range m.assets {
		assets = append(assets, asset.Copy())
	}

	slices.SortFunc(assets, func(a, b database.AssetDefinition) int {
		return cmp.Compare(string(a.Symbol), string(b.Symbol))
	})

	return assets, nil
}

// LoadBalances returns the stored balances ordered by address and symbol.
func (m *Memory) LoadBalances() ([]database.BalanceRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	records := make([]database.BalanceRecord, 0, len(m.balances))
	for _, rec := range m.balances {
		records = append(records, rec)
	}

	slices.SortFunc(records, func(a, b database.BalanceRecord) int {
		if c := cmp.Compare(string(a.Address), string(b.Address)); c != 0 {
			return c
		}
		return cmp.Compare(string(a.Symbol), string(b.Symbol))
	})

	return records, nil
}

// Reset will clear out the blockchain in memory.
func (m *Memory) Reset() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.blocks = []database.BlockData{}
	m.balances = make(map[balanceKey]database.BalanceRecord)
	m.assets = make(map[database.Symbol]database.AssetDefinition)
	return nil
}

// =============================================================================

// memoryIterator represents the iteration implementation for walking
// through and reading blocks in memory. This implements the database
// Iterator interface.
type memoryIterator struct {
	storage *Memory // Access to the storage API.
	current uint64  // Current block number being iterated over.
	eoc     bool    // Represents the iterator is at the end of the chain.
}

// Next retrieves the next block from memory.
func (mi *memoryIterator) Next() (database.BlockData, error) {
	if mi.eoc {
		return database.BlockData{}, errors.New("end of chain")
	}

	blockData, err := mi.storage.GetBlock(mi.current)
	if err != nil {
		mi.eoc = true
	}

	mi.current++

	return blockData, err
}

// Done returns the end of chain value.
func (mi *memoryIterator) Done() bool {
	return mi.eoc
}
