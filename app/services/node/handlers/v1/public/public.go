// Package public maintains the group of handlers for public access.
package public

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/cadcoin/blockchain/business/sys/metrics"
	"github.com/cadcoin/blockchain/business/sys/validate"
	"github.com/cadcoin/blockchain/business/web/errs"
	"github.com/cadcoin/blockchain/foundation/blockchain/database"
	"github.com/cadcoin/blockchain/foundation/blockchain/state"
	"github.com/cadcoin/blockchain/foundation/events"
	"github.com/cadcoin/blockchain/foundation/web"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Handlers manages the set of node endpoints.
type Handlers struct {
	Log   *zap.SugaredLogger
	State *state.State
	WS    websocket.Upgrader
	Evts  *events.Events
}

// Events handles a web socket to provide events to a client.
func (h Handlers) Events(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	h.WS.CheckOrigin = func(r *http.Request) bool { return true }

	c, err := h.WS.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	defer c.Close()

	ch := h.Evts.Acquire(v.TraceID)
	defer h.Evts.Release(v.TraceID)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, wd := <-ch:
			if !wd {
				return nil
			}

			if err := c.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				return nil
			}

		case <-ticker.C:
			if err := c.WriteMessage(websocket.PingMessage, []byte("ping")); err != nil {
				return nil
			}
		}
	}
}

// Genesis returns the genesis information.
func (h Handlers) Genesis(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	gen := h.State.RetrieveGenesis()
	return web.Respond(ctx, w, gen, http.StatusOK)
}

// Balance returns every asset balance held by the address.
func (h Handlers) Balance(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	address, err := database.ToAddress(web.Param(r, "address"))
	if err != nil {
		return errs.FromChain(err)
	}

	balances := h.State.QueryBalance(address)
	if balances == nil {
		balances = make(map[database.Symbol]decimal.Decimal)
	}

	resp := balance{
		Address:  address,
		Balances: balances,
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// BalanceOf returns the balance the address holds of a single asset.
func (h Handlers) BalanceOf(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	address, err := database.ToAddress(web.Param(r, "address"))
	if err != nil {
		return errs.FromChain(err)
	}

	symbol, err := database.ToSymbol(web.Param(r, "symbol"))
	if err != nil {
		return errs.FromChain(err)
	}

	amount, err := h.State.QueryBalanceOf(address, symbol)
	if err != nil {
		return errs.FromChain(err)
	}

	resp := assetBalance{
		Address: address,
		Symbol:  symbol,
		Balance: amount,
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// MiningStats returns the recent mining attempts per miner and what the
// next block pays.
func (h Handlers) MiningStats(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return web.Respond(ctx, w, h.State.QueryMiningStats(), http.StatusOK)
}

// ChainInfo returns the summary of the chain.
func (h Handlers) ChainInfo(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return web.Respond(ctx, w, h.State.QueryChainInfo(), http.StatusOK)
}

// ValidateChain re-checks the newest blocks held in storage. The depth
// defaults to the configured validation depth and 0 checks the whole chain.
func (h Handlers) ValidateChain(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	depth, err := web.QueryInt(r, "depth", h.State.RetrieveGenesis().ValidationDepth)
	if err != nil {
		return validate.NewFieldsError("depth", err)
	}

	report, err := h.State.ValidateChain(ctx, depth)
	if err != nil {
		return err
	}

	return web.Respond(ctx, w, report, http.StatusOK)
}

// Blocks returns the newest blocks first.
func (h Handlers) Blocks(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	offset, err := web.QueryInt(r, "offset", 0)
	if err != nil {
		return validate.NewFieldsError("offset", err)
	}

	limit, err := web.QueryInt(r, "limit", 10)
	if err != nil {
		return validate.NewFieldsError("limit", err)
	}

	blocks, err := h.State.QueryBlocks(offset, limit)
	if err != nil {
		return err
	}

	return web.Respond(ctx, w, toBlocks(blocks), http.StatusOK)
}

// Block returns the block at the index.
func (h Handlers) Block(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	index, err := strconv.ParseUint(web.Param(r, "index"), 10, 64)
	if err != nil {
		return validate.NewFieldsError("index", err)
	}

	if latest := h.State.RetrieveLatestBlock().Header.Index; index > latest {
		return errs.NewTrusted(fmt.Errorf("block %d not found, latest is %d", index, latest), http.StatusNotFound)
	}

	blk, err := h.State.QueryBlock(index)
	if err != nil {
		return err
	}

	return web.Respond(ctx, w, toBlock(blk), http.StatusOK)
}

// TxProof returns the merkle proof that a transaction is recorded in the
// block at the index.
func (h Handlers) TxProof(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	index, err := strconv.ParseUint(web.Param(r, "index"), 10, 64)
	if err != nil {
		return validate.NewFieldsError("index", err)
	}

	if latest := h.State.RetrieveLatestBlock().Header.Index; index > latest {
		return errs.NewTrusted(fmt.Errorf("block %d not found, latest is %d", index, latest), http.StatusNotFound)
	}

	id := web.Param(r, "hash")
	if !database.IsHash(id) {
		return validate.NewFieldsError("hash", fmt.Errorf("%q is not a transaction hash", id))
	}

	proof, err := h.State.QueryTxProof(index, id)
	if err != nil {
		return errs.FromChain(err)
	}

	return web.Respond(ctx, w, proof, http.StatusOK)
}

// Mempool returns the set of pending transactions in selection order.
func (h Handlers) Mempool(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	trans := h.State.QueryMempool()
	if trans == nil {
		trans = []database.BlockTx{}
	}

	return web.Respond(ctx, w, trans, http.StatusOK)
}

// SubmitTransaction adds a new transfer to the mempool.
func (h Handlers) SubmitTransaction(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var req submitTx
	if err := decode(r, &req); err != nil {
		return err
	}

	gen := h.State.RetrieveGenesis()

	symbol := gen.NativeSymbol
	if req.Symbol != "" {
		sym, err := database.ToSymbol(req.Symbol)
		if err != nil {
			return errs.FromChain(err)
		}
		symbol = sym
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return validate.NewFieldsError("amount", err)
	}

	fee := database.DefaultFee(amount, gen.MinFee)
	if req.Fee != "" {
		if fee, err = decimal.NewFromString(req.Fee); err != nil {
			return validate.NewFieldsError("fee", err)
		}
	}

	tx, err := database.NewTransfer(database.Address(req.From), database.Address(req.To), symbol, amount, fee)
	if err != nil {
		return errs.FromChain(err)
	}

	h.Log.Infow("submit tx", "traceid", web.GetTraceID(ctx), "from", tx.From, "to", tx.To, "symbol", tx.Symbol, "amount", tx.Amount, "fee", tx.Fee)

	blockTx, err := h.State.SubmitTransaction(tx)
	metrics.ObserveSubmit(string(database.KindTransfer), err)
	if err != nil {
		return errs.FromChain(err)
	}

	resp := txStatus{
		Status: "transaction added to mempool",
		Tx:     blockTx,
	}

	return web.Respond(ctx, w, resp, http.StatusAccepted)
}

// MineBlock mines one block on demand. The miner defaults to the node's
// configured miner address.
func (h Handlers) MineBlock(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var req mineBlock
	if r.ContentLength > 0 {
		if err := decode(r, &req); err != nil {
			return err
		}
	}

	miner := h.State.MinerAddress()
	if req.Miner != "" {
		miner = database.Address(req.Miner)
	}

	// The block is appended even if the client goes away. The search is
	// still bounded by the mining timeout.
	started := time.Now()
	blk, err := h.State.MineNewBlock(context.WithoutCancel(ctx), miner)
	metrics.ObserveMining(err, time.Since(started))
	if err != nil {
		return errs.FromChain(err)
	}

	return web.Respond(ctx, w, toBlock(blk), http.StatusCreated)
}

// StableCoins returns every registered stablecoin.
func (h Handlers) StableCoins(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	assets := h.State.QueryAssets()
	if assets == nil {
		assets = []database.AssetDefinition{}
	}

	return web.Respond(ctx, w, assets, http.StatusOK)
}

// StableCoin returns the definition of a single stablecoin.
func (h Handlers) StableCoin(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	symbol, err := database.ToSymbol(web.Param(r, "symbol"))
	if err != nil {
		return errs.FromChain(err)
	}

	asset, err := h.State.QueryAsset(symbol)
	if err != nil {
		return errs.FromChain(err)
	}

	return web.Respond(ctx, w, asset, http.StatusOK)
}

// CreateStableCoin registers a new stablecoin.
func (h Handlers) CreateStableCoin(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var req newStableCoin
	if err := decode(r, &req); err != nil {
		return err
	}

	ratio := decimal.Zero
	if req.CollateralRatio != "" {
		var err error
		if ratio, err = decimal.NewFromString(req.CollateralRatio); err != nil {
			return validate.NewFieldsError("collateral_ratio", err)
		}
	}

	maxSupply, err := decimal.NewFromString(req.MaxSupply)
	if err != nil {
		return validate.NewFieldsError("max_supply", err)
	}

	def, err := database.NewAssetDefinition(req.Symbol, req.Name, req.BackedBy, ratio, maxSupply)
	if err != nil {
		return errs.FromChain(err)
	}

	asset, err := h.State.CreateStableCoin(def, database.Address(req.Creator))
	if err != nil {
		return errs.FromChain(err)
	}

	return web.Respond(ctx, w, asset, http.StatusCreated)
}

// AuthorizeMinter grants minting rights for the stablecoin.
func (h Handlers) AuthorizeMinter(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var req authorizeMinter
	if err := decode(r, &req); err != nil {
		return err
	}

	symbol, err := database.ToSymbol(web.Param(r, "symbol"))
	if err != nil {
		return errs.FromChain(err)
	}

	asset, err := h.State.AuthorizeMinter(symbol, database.Address(req.Minter), database.Address(req.Authorizer))
	if err != nil {
		return errs.FromChain(err)
	}

	return web.Respond(ctx, w, asset, http.StatusOK)
}

// Mint places a mint of the stablecoin in the mempool.
func (h Handlers) Mint(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var req mint
	if err := decode(r, &req); err != nil {
		return err
	}

	symbol, err := database.ToSymbol(web.Param(r, "symbol"))
	if err != nil {
		return errs.FromChain(err)
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return validate.NewFieldsError("amount", err)
	}

	blockTx, err := h.State.Mint(symbol, database.Address(req.Recipient), amount, database.Address(req.Minter))
	metrics.ObserveSubmit(string(database.KindMint), err)
	if err != nil {
		return errs.FromChain(err)
	}

	resp := txStatus{
		Status: "mint added to mempool",
		Tx:     blockTx,
	}

	return web.Respond(ctx, w, resp, http.StatusAccepted)
}

// =============================================================================

// decode reads the request body into the model. Malformed documents are
// reported as bad requests and field errors are passed through.
func decode(r *http.Request, val any) error {
	if err := web.Decode(r, val); err != nil {
		if validate.IsFieldErrors(err) {
			return err
		}
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	return nil
}
