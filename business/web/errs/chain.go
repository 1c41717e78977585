package errs

import (
	"context"
	"errors"
	"net/http"

	"github.com/cadcoin/blockchain/foundation/blockchain/database"
	"github.com/cadcoin/blockchain/foundation/blockchain/ledger"
	"github.com/cadcoin/blockchain/foundation/blockchain/mempool"
	"github.com/cadcoin/blockchain/foundation/blockchain/state"
)

// statuses maps the errors the chain reports to the status a client sees.
// The order matters since several of them can be wrapped together.
var statuses = []struct {
	err    error
	status int
}{
	{state.ErrInternalInconsistency, http.StatusInternalServerError},
	{ledger.ErrInsufficientFunds, http.StatusPaymentRequired},
	{ledger.ErrNotAuthorized, http.StatusForbidden},
	{ledger.ErrUnknownSymbol, http.StatusNotFound},
	{database.ErrTxNotFound, http.StatusNotFound},
	{ledger.ErrSupplyCapExceeded, http.StatusUnprocessableEntity},
	{ledger.ErrAssetExists, http.StatusConflict},
	{mempool.ErrDuplicateTransaction, http.StatusConflict},
	{mempool.ErrPoolFull, http.StatusServiceUnavailable},
	{state.ErrMiningTimeout, http.StatusGatewayTimeout},
	{context.DeadlineExceeded, http.StatusGatewayTimeout},
	{database.ErrProofOfWork, http.StatusBadRequest},
	{database.ErrChainLinkage, http.StatusBadRequest},
	{ledger.ErrValidation, http.StatusBadRequest},
}

// FromChain wraps an error returned by the chain with the status it maps
// to. Errors the chain does not know about are returned untouched and will
// be reported as internal errors.
func FromChain(err error) error {
	if err == nil {
		return nil
	}

	for _, s := range statuses {
		if errors.Is(err, s.err) {
			if s.status == http.StatusInternalServerError {
				return err
			}
			return NewTrusted(err, s.status)
		}
	}

	return err
}
