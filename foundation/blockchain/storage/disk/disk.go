// Package disk implements the ability to read and write blocks to disk
// with each block in its own file.
package disk

import (
	"cmp"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"slices"
	"strconv"
	"sync"

	"github.com/cadcoin/blockchain/foundation/blockchain/database"
)

// Names of the files holding the ledger tables next to the blocks.
const (
	blocksDir    = "blocks"
	balancesFile = "balances.json"
	assetsFile   = "assets.json"
)

// Disk represents the serialization implementation for reading and storing
// blocks in their own separate files on disk. This implements the
// database.Storage interface.
type Disk struct {
	mu     sync.Mutex
	dbPath string
}

// New constructs a Disk value for use.
func New(dbPath string) (*Disk, error) {
	if err := os.MkdirAll(path.Join(dbPath, blocksDir), 0755); err != nil {
		return nil, err
	}

	return &Disk{dbPath: dbPath}, nil
}

// Close in this implementation has nothing to do since a new file is
// written to disk for each new block and then immediately closed.
func (d *Disk) Close() error {
	return nil
}

// Write takes the specified block and stores it on disk in a file labeled
// with the block number. The balance and asset tables are rewritten with
// the changes carried by the delta.
func (d *Disk) Write(blockData database.BlockData, delta database.Delta) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, err := os.Stat(d.getPath(blockData.Header.Index)); err == nil {
		return fmt.Errorf("block %d already exists", blockData.Header.Index)
	}

	balances, err := d.readBalances()
	if err != nil {
		return err
	}
	for _, rec := range delta.Balances {
		balances[balanceKey(rec.Address, rec.Symbol)] = rec
	}

	assets, err := d.readAssets()
	if err != nil {
		return err
	}
	for _, asset := range delta.Assets {
		assets[asset.Symbol] = asset
	}

	// The tables are written first so a block file on disk always has its
	// balance changes recorded.
	if err := d.writeBalances(balances); err != nil {
		return err
	}

	if err := d.writeAssets(assets); err != nil {
		return err
	}

	return writeJSON(d.getPath(blockData.Header.Index), blockData)
}

// GetBlock searches the blockchain on disk to locate and return the
// contents of the specified block by number.
func (d *Disk) GetBlock(num uint64) (database.BlockData, error) {

	// Open the block file for the specified number.
	f, err := os.OpenFile(d.getPath(num), os.O_RDONLY, 0600)
	if err != nil {
		return database.BlockData{}, err
	}
	defer f.Close()

	// Decode the contents of the block.
	var blockData database.BlockData
	if err := json.NewDecoder(f).Decode(&blockData); err != nil {
		return database.BlockData{}, fmt.Errorf("decoding block %d: %w", num, err)
	}

	return blockData, nil
}

// ForEach returns an iterator to walk through all the blocks
// starting with the genesis block.
func (d *Disk) ForEach() database.Iterator {
	return &DiskIterator{disk: d}
}

// WriteAsset stores the stablecoin definition.
func (d *Disk) WriteAsset(asset database.AssetDefinition) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	assets, err := d.readAssets()
	if err != nil {
		return err
	}
	assets[asset.Symbol] = asset

	return d.writeAssets(assets)
}

// LoadAssets returns the stablecoin definitions ordered by symbol.
func (d *Disk) LoadAssets() ([]database.AssetDefinition, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	assets, err := d.readAssets()
	if err != nil {
		return nil, err
	}

	return sortedAssets(assets), nil
}

// LoadBalances returns the stored balances ordered by address and symbol.
func (d *Disk) LoadBalances() ([]database.BalanceRecord, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	balances, err := d.readBalances()
	if err != nil {
		return nil, err
	}

	return sortedBalances(balances), nil
}

// Reset will clear out the blockchain on disk.
func (d *Disk) Reset() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := os.RemoveAll(d.dbPath); err != nil {
		return err
	}

	return os.MkdirAll(path.Join(d.dbPath, blocksDir), 0755)
}

// getPath forms the path to the specified block.
func (d *Disk) getPath(blockNum uint64) string {
	name := strconv.FormatUint(blockNum, 10)
	return path.Join(d.dbPath, blocksDir, fmt.Sprintf("%s.json", name))
}

// =============================================================================

func (d *Disk) readBalances() (map[string]database.BalanceRecord, error) {
	var records []database.BalanceRecord
	if err := readJSON(path.Join(d.dbPath, balancesFile), &records); err != nil {
		return nil, err
	}

	balances := make(map[string]database.BalanceRecord, len(records))
	for _, rec := range records {
		balances[balanceKey(rec.Address, rec.Symbol)] = rec
	}

	return balances, nil
}

func (d *Disk) writeBalances(balances map[string]database.BalanceRecord) error {
	return writeJSON(path.Join(d.dbPath, balancesFile), sortedBalances(balances))
}

func (d *Disk) readAssets() (map[database.Symbol]database.AssetDefinition, error) {
	var list []database.AssetDefinition
	if err := readJSON(path.Join(d.dbPath, assetsFile), &list); err != nil {
		return nil, err
	}

	assets := make(map[database.Symbol]database.AssetDefinition, len(list))
	for _, asset := range list {
		assets[asset.Symbol] = asset
	}

	return assets, nil
}

func (d *Disk) writeAssets(assets map[database.Symbol]database.AssetDefinition) error {
	return writeJSON(path.Join(d.dbPath, assetsFile), sortedAssets(assets))
}

func balanceKey(address database.Address, symbol database.Symbol) string {
	return string(address) + "/" + string(symbol)
}

func sortedBalances(balances map[string]database.BalanceRecord) []database.BalanceRecord {
	records := make([]database.BalanceRecord, 0, len(balances))
	for _, rec := range balances {
		records = append(records, rec)
	}

	slices.SortFunc(records, func(a, b database.BalanceRecord) int {
		return cmp.Compare(balanceKey(a.Address, a.Symbol), balanceKey(b.Address, b.Symbol))
	})

	return records
}

func sortedAssets(assets map[database.Symbol]database.AssetDefinition) []database.AssetDefinition {
	list := make([]database.AssetDefinition, 0, len(assets))
	for _, asset := range assets {
		list = append(list, asset)
	}

	slices.SortFunc(list, func(a, b database.AssetDefinition) int {
		return cmp.Compare(a.Symbol, b.Symbol)
	})

	return list
}

// readJSON decodes the file into v. A missing file leaves v untouched.
func readJSON(fileName string, v any) error {
	data, err := os.ReadFile(fileName)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}

	return json.Unmarshal(data, v)
}

// writeJSON writes v to a temporary file and renames it into place so a
// reader never sees a partial file.
func writeJSON(fileName string, v any) error {

	// Marshal the value for writing to disk in a more human readable format.
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	tmp := fileName + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return err
	}

	return os.Rename(tmp, fileName)
}

// =============================================================================

// DiskIterator represents the iteration implementation for walking
// through and reading blocks on disk. This implements the database
// Iterator interface.
type DiskIterator struct {
	disk    *Disk  // Access to the disk storage API.
	current uint64 // Current block number being iterated over.
	eoc     bool   // Represents the iterator is at the end of the chain.
}

// Next retrieves the next block from disk.
func (di *DiskIterator) Next() (database.BlockData, error) {
	if di.eoc {
		return database.BlockData{}, errors.New("end of chain")
	}

	blockData, err := di.disk.GetBlock(di.current)
	if errors.Is(err, fs.ErrNotExist) {
		di.eoc = true
	}
	di.current++

	return blockData, err
}

// Done returns the end of chain value.
func (di *DiskIterator) Done() bool {
	return di.eoc
}
