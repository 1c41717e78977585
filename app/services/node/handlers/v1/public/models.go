package public

import (
	"github.com/cadcoin/blockchain/business/sys/validate"
	"github.com/cadcoin/blockchain/foundation/blockchain/database"
	"github.com/shopspring/decimal"
)

// submitTx is the request to move an asset between two addresses. The
// symbol defaults to the native coin and the fee to the default fee.
type submitTx struct {
	From   string `json:"from" validate:"required"`
	To     string `json:"to" validate:"required"`
	Symbol string `json:"symbol"`
	Amount string `json:"amount" validate:"required,amount"`
	Fee    string `json:"fee" validate:"omitempty,numeric"`
}

// Validate checks the data in the model is considered clean.
func (tx submitTx) Validate() error {
	return validate.Check(tx)
}

type mineBlock struct {
	Miner string `json:"miner"`
}

type newStableCoin struct {
	Symbol          string `json:"symbol" validate:"required,max=16"`
	Name            string `json:"name" validate:"required"`
	BackedBy        string `json:"backed_by" validate:"required"`
	CollateralRatio string `json:"collateral_ratio" validate:"omitempty,amount"`
	MaxSupply       string `json:"max_supply" validate:"required,amount"`
	Creator         string `json:"creator" validate:"required"`
}

// Validate checks the data in the model is considered clean.
func (sc newStableCoin) Validate() error {
	return validate.Check(sc)
}

type authorizeMinter struct {
	Minter     string `json:"minter" validate:"required"`
	Authorizer string `json:"authorizer" validate:"required"`
}

// Validate checks the data in the model is considered clean.
func (am authorizeMinter) Validate() error {
	return validate.Check(am)
}

type mint struct {
	Recipient string `json:"recipient" validate:"required"`
	Amount    string `json:"amount" validate:"required,amount"`
	Minter    string `json:"minter" validate:"required"`
}

// Validate checks the data in the model is considered clean.
func (m mint) Validate() error {
	return validate.Check(m)
}

// =============================================================================

type balance struct {
	Address  database.Address                    `json:"address"`
	Balances map[database.Symbol]decimal.Decimal `json:"balances"`
}

type assetBalance struct {
	Address database.Address `json:"address"`
	Symbol  database.Symbol  `json:"symbol"`
	Balance decimal.Decimal  `json:"balance"`
}

type txStatus struct {
	Status string           `json:"status"`
	Tx     database.BlockTx `json:"tx"`
}

type block struct {
	Hash       string             `json:"hash"`
	Index      uint64             `json:"index"`
	PrevHash   string             `json:"prev_hash"`
	TimeStamp  uint64             `json:"timestamp"`
	Nonce      uint64             `json:"nonce"`
	Difficulty uint16             `json:"difficulty"`
	Miner      database.Address   `json:"miner"`
	TransRoot  string             `json:"trans_root"`
	Trans      []database.BlockTx `json:"trans"`
}

func toBlock(b database.Block) block {
	trans := b.Trans
	if trans == nil {
		trans = []database.BlockTx{}
	}

	return block{
		Hash:       b.Hash(),
		Index:      b.Header.Index,
		PrevHash:   b.Header.PrevBlockHash,
		TimeStamp:  b.Header.TimeStamp,
		Nonce:      b.Header.Nonce,
		Difficulty: b.Header.Difficulty,
		Miner:      b.Header.Miner,
		TransRoot:  b.Header.TransRoot,
		Trans:      trans,
	}
}

func toBlocks(blocks []database.Block) []block {
	out := make([]block, len(blocks))
	for i, b := range blocks {
		out[i] = toBlock(b)
	}
	return out
}
