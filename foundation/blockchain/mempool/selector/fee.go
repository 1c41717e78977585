package selector

import (
	"cmp"
	"slices"

	"github.com/cadcoin/blockchain/foundation/blockchain/database"
)

// feeSelect returns the transactions paying the highest fee first. Equal
// fees go oldest first and the hash breaks any remaining tie so the order
// never depends on map iteration.
var feeSelect = func(transactions []database.BlockTx, howMany int) []database.BlockTx {
	slices.SortFunc(transactions, func(a, b database.BlockTx) int {
		if c := b.Fee.Cmp(a.Fee); c != 0 {
			return c
		}
		if c := cmp.Compare(a.TimeStamp, b.TimeStamp); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})

	return take(transactions, howMany)
}
