// Package private maintains the group of handlers for node operator access.
package private

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/cadcoin/blockchain/business/sys/validate"
	"github.com/cadcoin/blockchain/business/web/errs"
	"github.com/cadcoin/blockchain/foundation/blockchain/database"
	"github.com/cadcoin/blockchain/foundation/blockchain/state"
	"github.com/cadcoin/blockchain/foundation/web"
	"go.uber.org/zap"
)

// Handlers manages the set of node operator endpoints.
type Handlers struct {
	Log   *zap.SugaredLogger
	State *state.State
}

// Status returns the current status of the node.
func (h Handlers) Status(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	latest := h.State.RetrieveLatestBlock()

	status := struct {
		Miner        database.Address `json:"miner"`
		LatestHash   string           `json:"latest_hash"`
		LatestIndex  uint64           `json:"latest_index"`
		PendingCount int              `json:"pending_count"`
	}{
		Miner:        h.State.MinerAddress(),
		LatestHash:   latest.Hash(),
		LatestIndex:  latest.Header.Index,
		PendingCount: h.State.QueryMempoolLength(),
	}

	return web.Respond(ctx, w, status, http.StatusOK)
}

// BlocksByNumber returns the blocks between the from and to numbers
// inclusive. The word latest can be used for the to number.
func (h Handlers) BlocksByNumber(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	latest := h.State.RetrieveLatestBlock().Header.Index

	from, err := strconv.ParseUint(web.Param(r, "from"), 10, 64)
	if err != nil {
		return validate.NewFieldsError("from", err)
	}

	to := latest
	if toStr := web.Param(r, "to"); toStr != "latest" {
		if to, err = strconv.ParseUint(toStr, 10, 64); err != nil {
			return validate.NewFieldsError("to", err)
		}
	}

	if from > to {
		return validate.NewFieldsError("from", fmt.Errorf("from %d is after to %d", from, to))
	}
	if to > latest {
		to = latest
	}
	if to-from >= state.MaxQueryBlocks {
		return validate.NewFieldsError("to", fmt.Errorf("at most %d blocks can be requested", state.MaxQueryBlocks))
	}

	blocks := make([]database.BlockData, 0, to-from+1)
	for i := from; i <= to && from <= latest; i++ {
		blk, err := h.State.QueryBlock(i)
		if err != nil {
			return err
		}
		blocks = append(blocks, database.NewBlockData(blk))
	}

	return web.Respond(ctx, w, blocks, http.StatusOK)
}

// AppendBlock takes a block that was mined outside of the node, validates
// it and if that passes, adds the block to the chain.
func (h Handlers) AppendBlock(ctx context.Context, w http.ResponseWriter, r *http.Request) error {

	// Decode the JSON in the post call into a storage block.
	var blockData database.BlockData
	if err := web.Decode(r, &blockData); err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	block := database.ToBlock(blockData)

	h.Log.Infow("append block", "traceid", web.GetTraceID(ctx), "index", block.Header.Index, "miner", block.Header.Miner)

	if err := h.State.TryAppend(block); err != nil {

		// A block that breaks the ledger rules came from the caller.
		if errors.Is(err, state.ErrInternalInconsistency) {
			return errs.NewTrusted(err, http.StatusUnprocessableEntity)
		}
		return errs.FromChain(err)
	}

	resp := struct {
		Status string `json:"status"`
		Hash   string `json:"hash"`
	}{
		Status: "accepted",
		Hash:   block.Hash(),
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// Balances returns every non zero balance held on the chain.
func (h Handlers) Balances(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	records := h.State.QueryBalances()
	if records == nil {
		records = []database.BalanceRecord{}
	}

	return web.Respond(ctx, w, records, http.StatusOK)
}
