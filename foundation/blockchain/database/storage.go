package database

import "github.com/shopspring/decimal"

//go:generate mockgen -destination=../storage/mocks/mock_storage.go -package=mocks github.com/cadcoin/blockchain/foundation/blockchain/database Storage,Iterator

// Storage interface represents the behavior required to be implemented by any
// package providing support for storing and reading the blockchain.
type Storage interface {
	Write(blockData BlockData, delta Delta) error
	GetBlock(num uint64) (BlockData, error)
	ForEach() Iterator
	WriteAsset(asset AssetDefinition) error
	LoadAssets() ([]AssetDefinition, error)
	LoadBalances() ([]BalanceRecord, error)
	Close() error
	Reset() error
}

// Iterator interface represents the behavior required to be implemented by any
// package providing support to iterate over the blocks.
type Iterator interface {
	Next() (BlockData, error)
	Done() bool
}

// =============================================================================

// BalanceRecord is the balance an account holds for a single asset.
type BalanceRecord struct {
	Address Address         `json:"address"`
	Symbol  Symbol          `json:"symbol"`
	Amount  decimal.Decimal `json:"amount"`
}

// Delta carries the final value of every balance and asset touched by a
// block. Storage must write it together with the block.
type Delta struct {
	Balances []BalanceRecord   `json:"balances"`
	Assets   []AssetDefinition `json:"assets"`
}
