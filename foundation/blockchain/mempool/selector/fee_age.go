package selector

import (
	"cmp"
	"slices"
	"time"

	"github.com/cadcoin/blockchain/foundation/blockchain/database"
	"github.com/shopspring/decimal"
)

var msPerHour = decimal.NewFromInt(int64(time.Hour / time.Millisecond))

// feeAgeSelect scores every transaction by its fee plus the hours it has
// waited in the pool and returns the best scores first.
var feeAgeSelect = func(transactions []database.BlockTx, howMany int) []database.BlockTx {
	now := uint64(time.Now().UTC().UnixMilli())

	score := make(map[string]decimal.Decimal, len(transactions))
	for _, tx := range transactions {
		var age decimal.Decimal
		if now > tx.TimeStamp {
			age = decimal.NewFromInt(int64(now - tx.TimeStamp)).Div(msPerHour)
		}
		score[tx.ID] = tx.Fee.Add(age)
	}

	slices.SortFunc(transactions, func(a, b database.BlockTx) int {
		if c := score[b.ID].Cmp(score[a.ID]); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})

	return take(transactions, howMany)
}
