package state

import (
	"time"

	"github.com/cadcoin/blockchain/foundation/blockchain/database"
)

// CreateStableCoin registers a new stablecoin with the creator as its first
// authorized minter. The definition is durable before it becomes visible.
func (s *State) CreateStableCoin(def database.AssetDefinition, creator database.Address) (database.AssetDefinition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	def.CreatedAt = uint64(time.Now().UTC().UnixMilli())

	sheet := s.ledger.Clone()
	asset, err := sheet.CreateAsset(def, creator)
	if err != nil {
		return database.AssetDefinition{}, err
	}

	if err := s.db.WriteAsset(asset); err != nil {
		return database.AssetDefinition{}, err
	}

	s.ledger = sheet
	s.evHandler("state: CreateStableCoin: symbol[%s] creator[%s] max[%s]", asset.Symbol, creator, asset.MaxSupply)

	return asset, nil
}

// AuthorizeMinter lets the authorizer, an existing minter of the symbol,
// grant minting rights to another address.
func (s *State) AuthorizeMinter(symbol database.Symbol, minter database.Address, authorizer database.Address) (database.AssetDefinition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sheet := s.ledger.Clone()
	asset, err := sheet.AuthorizeMinter(symbol, minter, authorizer)
	if err != nil {
		return database.AssetDefinition{}, err
	}

	if err := s.db.WriteAsset(asset); err != nil {
		return database.AssetDefinition{}, err
	}

	s.ledger = sheet
	s.evHandler("state: AuthorizeMinter: symbol[%s] minter[%s] authorizer[%s]", symbol, minter, authorizer)

	return asset, nil
}
