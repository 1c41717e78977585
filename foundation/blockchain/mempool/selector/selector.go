// Package selector provides different transaction selecting algorithms.
package selector

import (
	"fmt"

	"github.com/cadcoin/blockchain/foundation/blockchain/database"
)

// List of different select strategies.
const (
	StrategyFee    = "fee"
	StrategyFeeAge = "fee_age"
)

// Map of different select strategies with functions.
var strategies = map[string]Func{
	StrategyFee:    feeSelect,
	StrategyFeeAge: feeAgeSelect,
}

// Func defines a function that takes the pending transactions and returns
// howMany of them in the order the strategy prefers. Receiving -1 for
// howMany must return all the transactions in the strategies ordering.
// The input slice is owned by the function and may be reordered.
type Func func(transactions []database.BlockTx, howMany int) []database.BlockTx

// Retrieve returns the specified select strategy function.
func Retrieve(strategy string) (Func, error) {
	fn, exists := strategies[strategy]
	if !exists {
		return nil, fmt.Errorf("strategy %q does not exist", strategy)
	}
	return fn, nil
}

// =============================================================================

// take trims the ordered list to the requested size.
func take(transactions []database.BlockTx, howMany int) []database.BlockTx {
	if howMany < 0 || howMany > len(transactions) {
		return transactions
	}
	return transactions[:howMany]
}
