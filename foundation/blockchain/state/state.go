// Package state is the core API for the blockchain and implements all the
// business rules and processing.
package state

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cadcoin/blockchain/foundation/blockchain/database"
	"github.com/cadcoin/blockchain/foundation/blockchain/genesis"
	"github.com/cadcoin/blockchain/foundation/blockchain/ledger"
	"github.com/cadcoin/blockchain/foundation/blockchain/mempool"
	"github.com/cadcoin/blockchain/foundation/blockchain/mempool/selector"
	"github.com/shopspring/decimal"
)

// Set of errors the chain reports on top of the ledger and pool errors.
var (
	ErrNoPendingWork         = errors.New("no transactions in mempool")
	ErrMiningTimeout         = errors.New("mining timed out")
	ErrInternalInconsistency = errors.New("internal inconsistency")
)

// =============================================================================

// EventHandler defines a function that is called when events
// occur in the processing of persisting blocks.
type EventHandler func(v string, args ...any)

// Worker interface represents the behavior required to be implemented by any
// package providing support for background mining.
type Worker interface {
	Shutdown()
	SignalStartMining()
	SignalCancelMining()
}

// nopWorker is used until a real worker registers itself.
type nopWorker struct{}

func (nopWorker) Shutdown()           {}
func (nopWorker) SignalStartMining()  {}
func (nopWorker) SignalCancelMining() {}

// =============================================================================

// Config represents the configuration required to start
// the blockchain node.
type Config struct {
	MinerAddress   database.Address
	Genesis        genesis.Genesis
	Storage        database.Storage
	SelectStrategy string
	EvHandler      EventHandler
}

// State manages the blockchain database.
type State struct {
	mu           sync.RWMutex
	minerAddress database.Address
	evHandler    EventHandler

	genesis   genesis.Genesis
	consensus Consensus
	db        *database.Database
	ledger    *ledger.Sheet
	mempool   *mempool.Mempool

	difficulty uint16
	samples    []time.Duration
	txCount    uint64
	committed  map[string]struct{}
	attempts   attempts

	Worker Worker
}

// New constructs a new blockchain for data management. An empty storage is
// seeded with the genesis block, otherwise the stored chain is replayed to
// rebuild the balances.
func New(cfg Config) (*State, error) {

	// Build a safe event handler function for use.
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	if err := cfg.Genesis.Validate(); err != nil {
		return nil, err
	}

	strategy := cfg.SelectStrategy
	if strategy == "" {
		strategy = selector.StrategyFee
	}

	// Construct a mempool with the specified sort strategy.
	mp, err := mempool.NewWithStrategy(cfg.Genesis.MaxPending, strategy)
	if err != nil {
		return nil, err
	}

	gen := cfg.Genesis
	params := ledger.Params{
		NativeSymbol:          gen.NativeSymbol,
		MinFee:                gen.MinFee,
		CreateAssetMinBalance: gen.CreateAssetMinBalance,
	}

	state := State{
		minerAddress: cfg.MinerAddress,
		evHandler:    ev,
		genesis:      gen,
		consensus:    NewConsensus(gen),
		db:           database.New(cfg.Storage),
		ledger:       ledger.New(params, gen.Records()),
		mempool:      mp,
		difficulty:   gen.Difficulty,
		committed:    make(map[string]struct{}),
		Worker:       nopWorker{},
	}

	if err := state.load(); err != nil {
		return nil, err
	}

	// The Worker is not set here. The call to worker.Run will assign itself
	// and start everything up and running for the node.

	return &state, nil
}

// Shutdown cleanly brings the node down.
func (s *State) Shutdown() error {
	s.evHandler("state: shutdown: started")
	defer s.evHandler("state: shutdown: completed")

	// Stop all blockchain writing activity.
	s.Worker.Shutdown()

	return s.db.Close()
}

// MinerAddress returns the address the node mines to.
func (s *State) MinerAddress() database.Address {
	return s.minerAddress
}

// =============================================================================

// load writes the genesis block into an empty storage or replays the blocks
// already stored.
func (s *State) load() error {
	genesisBlock := database.NewGenesisBlock(s.genesis.Date)

	iter := s.db.ForEach()
	first, err := iter.Next()
	if iter.Done() {
		s.evHandler("state: load: empty storage: writing genesis block[%s]", genesisBlock.Hash())

		if err := s.db.Write(genesisBlock, s.ledger.Delta()); err != nil {
			return fmt.Errorf("writing genesis: %w", err)
		}

		return nil
	}
	if err != nil {
		return err
	}

	if first.Hash() != genesisBlock.Hash() {
		return fmt.Errorf("%w: stored genesis %s does not match %s", ErrInternalInconsistency, first.Hash(), genesisBlock.Hash())
	}

	// Minted supply is rebuilt by replaying the mint transactions.
	assets, err := s.db.LoadAssets()
	if err != nil {
		return err
	}
	for _, asset := range assets {
		asset.Minted = decimal.Zero
		s.ledger.LoadAsset(asset)
	}

	prev := first
	for block, err := iter.Next(); !iter.Done(); block, err = iter.Next() {
		if err != nil {
			return err
		}

		sheet, _, err := s.applyBlock(prev, block)
		if err != nil {
			return fmt.Errorf("replaying block %d: %w", block.Header.Index, err)
		}

		s.ledger = sheet
		s.recordBlock(prev, block)
		prev = block
	}

	records, err := s.db.LoadBalances()
	if err != nil {
		return err
	}

	if !s.ledger.Matches(records) {
		return fmt.Errorf("%w: stored balances do not match the replayed chain", ErrInternalInconsistency)
	}

	s.db.UpdateLatestBlock(prev)
	s.evHandler("state: load: replayed chain: length[%d] difficulty[%d]", prev.Header.Index+1, s.difficulty)

	return nil
}

// applyBlock validates the block against its parent and the consensus rules
// and returns a new sheet holding its effect. The current sheet is untouched.
func (s *State) applyBlock(prev database.Block, block database.Block) (*ledger.Sheet, database.Delta, error) {
	if err := block.ValidateBlock(prev, s.evHandler); err != nil {
		return nil, database.Delta{}, err
	}

	if block.Header.Difficulty != s.difficulty {
		return nil, database.Delta{}, fmt.Errorf("%w: block difficulty %d, exp %d", database.ErrProofOfWork, block.Header.Difficulty, s.difficulty)
	}

	for _, tx := range block.Trans {
		if s.isCommitted(tx) {
			return nil, database.Delta{}, fmt.Errorf("%w: transaction %s is already in the chain", mempool.ErrDuplicateTransaction, tx.ID)
		}
	}

	sheet := s.ledger.Clone()
	delta, err := sheet.ApplyBlock(block, MiningReward(block.Header.Index, s.consensus))
	if err != nil {
		return nil, database.Delta{}, fmt.Errorf("%w: %w", ErrInternalInconsistency, err)
	}

	return sheet, delta, nil
}

// recordBlock keeps the block time samples and retargets the difficulty at
// the end of every adjustment interval. The block after genesis is not
// sampled since the genesis date is fixed.
func (s *State) recordBlock(prev database.Block, block database.Block) {
	s.txCount += uint64(len(block.Trans))
	for _, tx := range block.Trans {
		if tx.Kind != database.KindReward {
			s.committed[tx.ID] = struct{}{}
		}
	}

	if prev.Header.Index > 0 {
		elapsed := time.Duration(block.Header.TimeStamp-prev.Header.TimeStamp) * time.Millisecond

		s.samples = append(s.samples, elapsed)
		if len(s.samples) > int(s.consensus.AdjustmentInterval) {
			s.samples = s.samples[1:]
		}
	}

	if block.Header.Index%s.consensus.AdjustmentInterval == 0 {
		next := NextDifficulty(s.difficulty, s.samples, s.consensus)
		if next != s.difficulty {
			s.evHandler("state: retarget: block[%d] difficulty[%d -> %d]", block.Header.Index, s.difficulty, next)
		}
		s.difficulty = next
	}
}

// isCommitted reports whether the transaction is already recorded in a
// block. Rewards are bound to the block they open and are not tracked.
func (s *State) isCommitted(tx database.BlockTx) bool {
	if tx.Kind == database.KindReward {
		return false
	}

	_, exists := s.committed[tx.ID]
	return exists
}
