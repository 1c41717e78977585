// Package ledger maintains the multi-asset balance sheet and the stablecoin
// registry, and applies the economic effect of transactions to them.
package ledger

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/cadcoin/blockchain/foundation/blockchain/database"
	"github.com/shopspring/decimal"
)

// Set of errors returned when a transaction or registry command breaks a
// ledger rule.
var (
	ErrValidation        = database.ErrValidation
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrNotAuthorized     = errors.New("not authorized")
	ErrUnknownSymbol     = errors.New("unknown symbol")
	ErrSupplyCapExceeded = errors.New("supply cap exceeded")
	ErrAssetExists       = errors.New("asset already exists")
)

// Params are the economic rules the sheet enforces.
type Params struct {
	NativeSymbol          database.Symbol
	MinFee                decimal.Decimal
	CreateAssetMinBalance decimal.Decimal
}

type balanceKey struct {
	address database.Address
	symbol  database.Symbol
}

// Sheet represents the data representation to maintain address balances
// for every asset plus the registry of stablecoin definitions.
type Sheet struct {
	mu       sync.RWMutex
	params   Params
	balances map[database.Address]map[database.Symbol]decimal.Decimal
	assets   map[database.Symbol]database.AssetDefinition

	touchedBalances map[balanceKey]struct{}
	touchedAssets   map[database.Symbol]struct{}
}

// New constructs a new balance sheet for use, expects a starting set of
// balances usually from a genesis file.
func New(params Params, records []database.BalanceRecord) *Sheet {
	s := Sheet{
		params:          params,
		balances:        make(map[database.Address]map[database.Symbol]decimal.Decimal),
		assets:          make(map[database.Symbol]database.AssetDefinition),
		touchedBalances: make(map[balanceKey]struct{}),
		touchedAssets:   make(map[database.Symbol]struct{}),
	}

	for _, rec := range records {
		s.set(rec.Address, rec.Symbol, rec.Amount)
	}

	return &s
}

// Params returns the rules the sheet was constructed with.
func (s *Sheet) Params() Params {
	return s.params
}

// Clone makes a copy of the current sheet. The copy starts with nothing
// marked as touched.
func (s *Sheet) Clone() *Sheet {
	s.mu.RLock()
	defer s.mu.RUnlock()

	clone := New(s.params, nil)
	for address, symbols := range s.balances {
		m := make(map[database.Symbol]decimal.Decimal, len(symbols))
		for symbol, amount := range symbols {
			m[symbol] = amount
		}
		clone.balances[address] = m
	}

	for symbol, asset := range s.assets {
		clone.assets[symbol] = asset.Copy()
	}

	return clone
}

// LoadAsset registers a stablecoin definition read back from storage.
func (s *Sheet) LoadAsset(asset database.AssetDefinition) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.assets[asset.Symbol] = asset.Copy()
}

// =============================================================================

// Validate checks the transaction against the current balances and registry
// without changing anything.
func (s *Sheet) Validate(tx database.Tx) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.validate(tx)
}

// ApplyTx validates the transaction and then applies its economic effect.
func (s *Sheet) ApplyTx(tx database.Tx) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.validate(tx); err != nil {
		return err
	}

	s.apply(tx)
	return nil
}

// ApplyBlock applies every transaction in the block in order and returns
// the final value of everything the block touched. The block must open with
// a single reward paying the miner the reward plus the fees of the block.
// Callers apply blocks to a Clone so a failure leaves their sheet intact.
func (s *Sheet) ApplyBlock(block database.Block, reward decimal.Decimal) (database.Delta, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(block.Trans) == 0 {
		return database.Delta{}, fmt.Errorf("%w: block %d has no reward", ErrValidation, block.Header.Index)
	}

	fees := decimal.Zero
	for i, tx := range block.Trans {
		switch {
		case i == 0 && tx.Kind != database.KindReward:
			return database.Delta{}, fmt.Errorf("%w: block %d must open with a reward", ErrValidation, block.Header.Index)
		case i > 0 && tx.Kind == database.KindReward:
			return database.Delta{}, fmt.Errorf("%w: block %d carries a second reward", ErrValidation, block.Header.Index)
		}
		fees = fees.Add(tx.Fee)
	}

	rewardTx := block.Trans[0]
	if rewardTx.To != block.Header.Miner {
		return database.Delta{}, fmt.Errorf("%w: reward paid to %s, miner is %s", ErrValidation, rewardTx.To, block.Header.Miner)
	}

	if exp := reward.Add(fees); !rewardTx.Amount.Equal(exp) {
		return database.Delta{}, fmt.Errorf("%w: reward is %s, exp %s", ErrValidation, rewardTx.Amount, exp)
	}

	for _, tx := range block.Trans {
		if err := s.validate(tx.Tx); err != nil {
			return database.Delta{}, fmt.Errorf("transaction %s: %w", tx.ID, err)
		}
		s.apply(tx.Tx)
	}

	return s.delta(), nil
}

// CreateAsset registers a new stablecoin owned by the creator. The creator
// is the first authorized minter.
func (s *Sheet) CreateAsset(asset database.AssetDefinition, creator database.Address) (database.AssetDefinition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !creator.IsAddress() {
		return database.AssetDefinition{}, fmt.Errorf("%w: invalid creator %q", ErrValidation, creator)
	}

	if asset.Symbol == s.params.NativeSymbol {
		return database.AssetDefinition{}, fmt.Errorf("%w: %s is the native coin", ErrAssetExists, asset.Symbol)
	}

	if _, exists := s.assets[asset.Symbol]; exists {
		return database.AssetDefinition{}, fmt.Errorf("%w: %s", ErrAssetExists, asset.Symbol)
	}

	if bal := s.get(creator, s.params.NativeSymbol); bal.LessThan(s.params.CreateAssetMinBalance) {
		return database.AssetDefinition{}, fmt.Errorf("%w: %s holds %s %s, needs %s to create an asset", ErrInsufficientFunds, creator, bal, s.params.NativeSymbol, s.params.CreateAssetMinBalance)
	}

	asset.Creator = creator
	asset.Minters = []database.Address{creator}
	asset.Minted = decimal.Zero

	s.assets[asset.Symbol] = asset
	s.touchedAssets[asset.Symbol] = struct{}{}

	return asset.Copy(), nil
}

// AuthorizeMinter adds the minter to the asset's authorized set. Only an
// existing minter may grant the right. Granting it twice changes nothing.
func (s *Sheet) AuthorizeMinter(symbol database.Symbol, minter database.Address, authorizer database.Address) (database.AssetDefinition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	asset, exists := s.assets[symbol]
	if !exists {
		return database.AssetDefinition{}, fmt.Errorf("%w: %s", ErrUnknownSymbol, symbol)
	}

	if !minter.IsAddress() {
		return database.AssetDefinition{}, fmt.Errorf("%w: invalid minter %q", ErrValidation, minter)
	}

	if !asset.IsMinter(authorizer) {
		return database.AssetDefinition{}, fmt.Errorf("%w: %s may not authorize minters of %s", ErrNotAuthorized, authorizer, symbol)
	}

	if asset.IsMinter(minter) {
		return asset.Copy(), nil
	}

	asset.Minters = append(slices.Clone(asset.Minters), minter)
	s.assets[symbol] = asset
	s.touchedAssets[symbol] = struct{}{}

	return asset.Copy(), nil
}

// =============================================================================

// Balance returns every asset balance held by the address.
func (s *Sheet) Balance(address database.Address) map[database.Symbol]decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[database.Symbol]decimal.Decimal)
	for symbol, amount := range s.balances[address] {
		out[symbol] = amount
	}

	return out
}

// BalanceOf returns the balance the address holds of a single asset.
func (s *Sheet) BalanceOf(address database.Address, symbol database.Symbol) decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.get(address, symbol)
}

// Asset returns the definition registered for the symbol.
func (s *Sheet) Asset(symbol database.Symbol) (database.AssetDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	asset, exists := s.assets[symbol]
	if !exists {
		return database.AssetDefinition{}, fmt.Errorf("%w: %s", ErrUnknownSymbol, symbol)
	}

	return asset.Copy(), nil
}

// Assets returns every registered definition ordered by symbol.
func (s *Sheet) Assets() []database.AssetDefinition {
	s.mu.RLock()
	defer s.mu.RUnlock()

	assets := make([]database.AssetDefinition, 0, len(s.assets))
	for _, asset := range s.assets {
		assets = append(assets, asset.Copy())
	}

	slices.SortFunc(assets, func(a, b database.AssetDefinition) int {
		return cmp.Compare(a.Symbol, b.Symbol)
	})

	return assets
}

// Records returns every non-zero balance ordered by address and symbol.
func (s *Sheet) Records() []database.BalanceRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var records []database.BalanceRecord
	for address, symbols := range s.balances {
		for symbol, amount := range symbols {
			if amount.IsZero() {
				continue
			}
			records = append(records, database.BalanceRecord{Address: address, Symbol: symbol, Amount: amount})
		}
	}

	sortRecords(records)
	return records
}

// Delta returns the final value of every balance and asset changed since
// the sheet was constructed or cloned.
func (s *Sheet) Delta() database.Delta {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.delta()
}

// Matches reports whether the stored balances agree with the sheet. Zero
// balances are ignored on both sides.
func (s *Sheet) Matches(records []database.BalanceRecord) bool {
	var stored []database.BalanceRecord
	for _, rec := range records {
		if !rec.Amount.IsZero() {
			stored = append(stored, rec)
		}
	}
	sortRecords(stored)

	return slices.EqualFunc(s.Records(), stored, func(a, b database.BalanceRecord) bool {
		return a.Address == b.Address && a.Symbol == b.Symbol && a.Amount.Equal(b.Amount)
	})
}

// =============================================================================

func (s *Sheet) validate(tx database.Tx) error {
	if err := tx.Validate(); err != nil {
		return err
	}

	native := s.params.NativeSymbol

	if tx.Kind == database.KindReward {
		if tx.Symbol != native {
			return fmt.Errorf("%w: reward must be paid in %s", ErrValidation, native)
		}
		return nil
	}

	if tx.Fee.LessThan(s.params.MinFee) {
		return fmt.Errorf("%w: fee %s is below the minimum %s", ErrValidation, tx.Fee, s.params.MinFee)
	}

	switch tx.Kind {
	case database.KindTransfer:
		if tx.Symbol == native {
			need := tx.Amount.Add(tx.Fee)
			if bal := s.get(tx.From, native); bal.LessThan(need) {
				return fmt.Errorf("%w: %s holds %s %s, needs %s", ErrInsufficientFunds, tx.From, bal, native, need)
			}
			return nil
		}

		if _, exists := s.assets[tx.Symbol]; !exists {
			return fmt.Errorf("%w: %s", ErrUnknownSymbol, tx.Symbol)
		}

		if bal := s.get(tx.From, tx.Symbol); bal.LessThan(tx.Amount) {
			return fmt.Errorf("%w: %s holds %s %s, needs %s", ErrInsufficientFunds, tx.From, bal, tx.Symbol, tx.Amount)
		}

	case database.KindMint:
		if tx.Symbol == native {
			return fmt.Errorf("%w: %s cannot be minted", ErrValidation, native)
		}

		asset, exists := s.assets[tx.Symbol]
		if !exists {
			return fmt.Errorf("%w: %s", ErrUnknownSymbol, tx.Symbol)
		}

		if !asset.IsMinter(tx.From) {
			return fmt.Errorf("%w: %s may not mint %s", ErrNotAuthorized, tx.From, tx.Symbol)
		}

		if err := s.checkFee(tx); err != nil {
			return err
		}

		if tx.Amount.GreaterThan(asset.Remaining()) {
			return fmt.Errorf("%w: %s has %s left to mint, asked for %s", ErrSupplyCapExceeded, tx.Symbol, asset.Remaining(), tx.Amount)
		}

		return nil
	}

	return s.checkFee(tx)
}

// checkFee makes sure the sender can pay the fee in the native coin.
func (s *Sheet) checkFee(tx database.Tx) error {
	native := s.params.NativeSymbol

	if bal := s.get(tx.From, native); bal.LessThan(tx.Fee) {
		return fmt.Errorf("%w: %s holds %s %s, needs %s for the fee", ErrInsufficientFunds, tx.From, bal, native, tx.Fee)
	}

	return nil
}

func (s *Sheet) apply(tx database.Tx) {
	native := s.params.NativeSymbol

	switch tx.Kind {
	case database.KindReward:
		s.add(tx.To, native, tx.Amount)

	case database.KindTransfer:
		s.add(tx.From, tx.Symbol, tx.Amount.Neg())
		s.add(tx.From, native, tx.Fee.Neg())
		s.add(tx.To, tx.Symbol, tx.Amount)

	case database.KindMint:
		s.add(tx.From, native, tx.Fee.Neg())
		s.add(tx.To, tx.Symbol, tx.Amount)

		asset := s.assets[tx.Symbol]
		asset.Minted = asset.Minted.Add(tx.Amount)
		s.assets[tx.Symbol] = asset
		s.touchedAssets[tx.Symbol] = struct{}{}
	}
}

func (s *Sheet) delta() database.Delta {
	var delta database.Delta

	for key := range s.touchedBalances {
		delta.Balances = append(delta.Balances, database.BalanceRecord{
			Address: key.address,
			Symbol:  key.symbol,
			Amount:  s.get(key.address, key.symbol),
		})
	}
	sortRecords(delta.Balances)

	for symbol := range s.touchedAssets {
		delta.Assets = append(delta.Assets, s.assets[symbol].Copy())
	}
	slices.SortFunc(delta.Assets, func(a, b database.AssetDefinition) int {
		return cmp.Compare(a.Symbol, b.Symbol)
	})

	return delta
}

func (s *Sheet) get(address database.Address, symbol database.Symbol) decimal.Decimal {
	return s.balances[address][symbol]
}

func (s *Sheet) set(address database.Address, symbol database.Symbol, amount decimal.Decimal) {
	symbols, exists := s.balances[address]
	if !exists {
		symbols = make(map[database.Symbol]decimal.Decimal)
		s.balances[address] = symbols
	}

	symbols[symbol] = amount
	s.touchedBalances[balanceKey{address, symbol}] = struct{}{}
}

func (s *Sheet) add(address database.Address, symbol database.Symbol, amount decimal.Decimal) {
	if amount.IsZero() {
		return
	}
	s.set(address, symbol, s.get(address, symbol).Add(amount))
}

func sortRecords(records []database.BalanceRecord) {
	slices.SortFunc(records, func(a, b database.BalanceRecord) int {
		if c := cmp.Compare(a.Address, b.Address); c != 0 {
			return c
		}
		return cmp.Compare(a.Symbol, b.Symbol)
	})
}
