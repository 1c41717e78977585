package database

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ErrValidation is returned when a transaction or definition is malformed
// or breaks a ledger policy.
var ErrValidation = errors.New("validation failed")

// Kind represents the closed set of transactions the ledger understands.
type Kind string

// Set of transaction kinds.
const (
	KindTransfer Kind = "transfer"
	KindMint     Kind = "mint"
	KindReward   Kind = "reward"
)

// defaultFeeRate is the share of the amount charged when a caller does not
// provide a fee.
var defaultFeeRate = decimal.RequireFromString("0.001")

// DefaultFee calculates the fee used when a request does not name one.
func DefaultFee(amount decimal.Decimal, minFee decimal.Decimal) decimal.Decimal {
	return decimal.Max(minFee, amount.Mul(defaultFeeRate))
}

// =============================================================================

// Tx is the transactional information between two parties. Fees are always
// paid in the native coin regardless of the symbol being moved.
type Tx struct {
	Kind      Kind            `json:"kind"`
	From      Address         `json:"from"`
	To        Address         `json:"to"`
	Symbol    Symbol          `json:"symbol"`
	Amount    decimal.Decimal `json:"amount"`
	Fee       decimal.Decimal `json:"fee"`
	TimeStamp uint64          `json:"timestamp"`
}

// NewTransfer constructs a transfer of an asset between two accounts.
func NewTransfer(from Address, to Address, symbol Symbol, amount decimal.Decimal, fee decimal.Decimal) (Tx, error) {
	tx := Tx{
		Kind:      KindTransfer,
		From:      from,
		To:        to,
		Symbol:    symbol,
		Amount:    amount,
		Fee:       fee,
		TimeStamp: uint64(time.Now().UTC().UnixMilli()),
	}

	if err := tx.Validate(); err != nil {
		return Tx{}, err
	}

	return tx, nil
}

// NewMint constructs a mint of a stablecoin. The minter pays the fee but
// the amount is created, not debited from anyone.
func NewMint(minter Address, to Address, symbol Symbol, amount decimal.Decimal, fee decimal.Decimal) (Tx, error) {
	tx := Tx{
		Kind:      KindMint,
		From:      minter,
		To:        to,
		Symbol:    symbol,
		Amount:    amount,
		Fee:       fee,
		TimeStamp: uint64(time.Now().UTC().UnixMilli()),
	}

	if err := tx.Validate(); err != nil {
		return Tx{}, err
	}

	return tx, nil
}

// NewReward constructs the system issued transaction that pays a miner.
func NewReward(miner Address, native Symbol, amount decimal.Decimal) (Tx, error) {
	tx := Tx{
		Kind:      KindReward,
		From:      SystemAddress,
		To:        miner,
		Symbol:    native,
		Amount:    amount,
		Fee:       decimal.Zero,
		TimeStamp: uint64(time.Now().UTC().UnixMilli()),
	}

	if err := tx.Validate(); err != nil {
		return Tx{}, err
	}

	return tx, nil
}

// Validate performs the structural checks for the transaction kind. Checks
// that need ledger state live in the ledger package.
func (tx Tx) Validate() error {
	if !tx.To.IsAddress() {
		return fmt.Errorf("%w: invalid recipient %q", ErrValidation, tx.To)
	}

	if sym, err := ToSymbol(string(tx.Symbol)); err != nil || sym != tx.Symbol {
		return fmt.Errorf("%w: invalid symbol %q", ErrValidation, tx.Symbol)
	}

	if !tx.Amount.IsPositive() {
		return fmt.Errorf("%w: amount must be greater than zero", ErrValidation)
	}

	if tx.Fee.IsNegative() {
		return fmt.Errorf("%w: fee cannot be negative", ErrValidation)
	}

	switch tx.Kind {
	case KindTransfer, KindMint:
		if !tx.From.IsAddress() {
			return fmt.Errorf("%w: invalid sender %q", ErrValidation, tx.From)
		}
		if tx.Kind == KindTransfer && tx.From == tx.To {
			return fmt.Errorf("%w: sender and recipient are the same", ErrValidation)
		}

	case KindReward:
		if !tx.From.IsSystem() {
			return fmt.Errorf("%w: reward must be issued by %s", ErrValidation, SystemAddress)
		}
		if !tx.Fee.IsZero() {
			return fmt.Errorf("%w: reward cannot carry a fee", ErrValidation)
		}

	default:
		return fmt.Errorf("%w: unknown transaction kind %q", ErrValidation, tx.Kind)
	}

	return nil
}

// Hash returns the content hash that identifies this transaction.
func (tx Tx) Hash() string {
	return Hash(tx)
}

// String implements the fmt.Stringer interface for logging.
func (tx Tx) String() string {
	return fmt.Sprintf("%s:%s->%s:%s %s", tx.Kind, tx.From, tx.To, tx.Amount, tx.Symbol)
}

// =============================================================================

// BlockTx represents a transaction with its identity computed. This is the
// form held by the mempool and recorded inside blocks.
type BlockTx struct {
	Tx
	ID string `json:"hash"`
}

// NewBlockTx computes the identity of the transaction once so it can be
// reused by the mempool and the block.
func NewBlockTx(tx Tx) BlockTx {
	return BlockTx{
		Tx: tx,
		ID: tx.Hash(),
	}
}

// Verify checks the recorded identity still matches the content.
func (tx BlockTx) Verify() error {
	if exp := tx.Tx.Hash(); tx.ID != exp {
		return fmt.Errorf("%w: transaction hash mismatch, got %s, exp %s", ErrValidation, tx.ID, exp)
	}

	return tx.Validate()
}
