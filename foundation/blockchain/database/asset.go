package database

import (
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/shopspring/decimal"
)

// Symbol identifies an asset held on the ledger. Symbols are always stored
// in upper case.
type Symbol string

var symbolRE = regexp.MustCompile(`^[A-Z0-9][A-Z0-9-]{0,15}$`)

// ToSymbol normalizes and validates an asset symbol.
func ToSymbol(s string) (Symbol, error) {
	sym := Symbol(strings.ToUpper(strings.TrimSpace(s)))
	if !symbolRE.MatchString(string(sym)) {
		return "", fmt.Errorf("%w: invalid symbol %q", ErrValidation, s)
	}

	return sym, nil
}

// =============================================================================

// AssetDefinition describes a stablecoin issued on top of the native coin.
type AssetDefinition struct {
	Symbol          Symbol          `json:"symbol"`
	Name            string          `json:"name"`
	BackedBy        string          `json:"backed_by"`
	CollateralRatio decimal.Decimal `json:"collateral_ratio"`
	MaxSupply       decimal.Decimal `json:"max_supply"`
	Minted          decimal.Decimal `json:"minted"`
	Creator         Address         `json:"creator"`
	Minters         []Address       `json:"minters"`
	CreatedAt       uint64          `json:"created_at"`
}

// NewAssetDefinition constructs a definition that has not yet been registered.
// A zero collateral ratio defaults to 1.
func NewAssetDefinition(symbol string, name string, backedBy string, collateralRatio decimal.Decimal, maxSupply decimal.Decimal) (AssetDefinition, error) {
	sym, err := ToSymbol(symbol)
	if err != nil {
		return AssetDefinition{}, err
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return AssetDefinition{}, fmt.Errorf("%w: asset name is required", ErrValidation)
	}

	backedBy = strings.TrimSpace(backedBy)
	if backedBy == "" {
		return AssetDefinition{}, fmt.Errorf("%w: backing reference is required", ErrValidation)
	}

	if collateralRatio.IsZero() {
		collateralRatio = decimal.NewFromInt(1)
	}
	if collateralRatio.IsNegative() {
		return AssetDefinition{}, fmt.Errorf("%w: collateral ratio must be positive", ErrValidation)
	}

	if !maxSupply.IsPositive() {
		return AssetDefinition{}, fmt.Errorf("%w: max supply must be positive", ErrValidation)
	}

	def := AssetDefinition{
		Symbol:          sym,
		Name:            name,
		BackedBy:        backedBy,
		CollateralRatio: collateralRatio,
		MaxSupply:       maxSupply,
		Minted:          decimal.Zero,
	}

	return def, nil
}

// IsMinter reports whether the address may mint this asset.
func (ad AssetDefinition) IsMinter(address Address) bool {
	return slices.Contains(ad.Minters, address)
}

// Remaining returns how much can still be minted before hitting the cap.
func (ad AssetDefinition) Remaining() decimal.Decimal {
	return ad.MaxSupply.Sub(ad.Minted)
}

// Copy returns a definition that shares no memory with the original.
func (ad AssetDefinition) Copy() AssetDefinition {
	ad.Minters = slices.Clone(ad.Minters)
	return ad
}
