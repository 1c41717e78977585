package errs_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/cadcoin/blockchain/business/sys/validate"
	"github.com/cadcoin/blockchain/business/web/errs"
	"github.com/cadcoin/blockchain/foundation/blockchain/database"
	"github.com/cadcoin/blockchain/foundation/blockchain/ledger"
	"github.com/cadcoin/blockchain/foundation/blockchain/mempool"
	"github.com/cadcoin/blockchain/foundation/blockchain/state"
	"github.com/stretchr/testify/require"
)

func TestFromChain(t *testing.T) {
	tt := []struct {
		name   string
		err    error
		status int
	}{
		{"validation", fmt.Errorf("amount: %w", ledger.ErrValidation), http.StatusBadRequest},
		{"funds", fmt.Errorf("alice: %w", ledger.ErrInsufficientFunds), http.StatusPaymentRequired},
		{"authorization", ledger.ErrNotAuthorized, http.StatusForbidden},
		{"symbol", ledger.ErrUnknownSymbol, http.StatusNotFound},
		{"tx", database.ErrTxNotFound, http.StatusNotFound},
		{"cap", ledger.ErrSupplyCapExceeded, http.StatusUnprocessableEntity},
		{"duplicate", mempool.ErrDuplicateTransaction, http.StatusConflict},
		{"exists", ledger.ErrAssetExists, http.StatusConflict},
		{"full", mempool.ErrPoolFull, http.StatusServiceUnavailable},
		{"timeout", state.ErrMiningTimeout, http.StatusGatewayTimeout},
	}

	for _, tst := range tt {
		t.Run(tst.name, func(t *testing.T) {
			trusted := errs.GetTrusted(errs.FromChain(tst.err))
			require.NotNil(t, trusted)
			require.Equal(t, tst.status, trusted.Status)
			require.ErrorIs(t, trusted, tst.err)
		})
	}

	t.Run("internal", func(t *testing.T) {
		err := fmt.Errorf("%w: %w", state.ErrInternalInconsistency, ledger.ErrValidation)
		require.False(t, errs.IsTrusted(errs.FromChain(err)))
		require.False(t, errs.IsTrusted(errs.FromChain(errors.New("disk full"))))
		require.NoError(t, errs.FromChain(nil))
	})
}

func TestToResponse(t *testing.T) {
	resp, status := errs.ToResponse(validate.NewFieldsError("amount", errors.New("must be positive")))
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, "data validation error", resp.Error)
	require.Equal(t, map[string]string{"amount": "must be positive"}, resp.Fields)

	resp, status = errs.ToResponse(errs.FromChain(fmt.Errorf("alice: %w", ledger.ErrInsufficientFunds)))
	require.Equal(t, http.StatusPaymentRequired, status)
	require.Equal(t, "alice: insufficient funds", resp.Error)
	require.Empty(t, resp.Fields)

	resp, status = errs.ToResponse(errors.New("disk full"))
	require.Equal(t, http.StatusInternalServerError, status)
	require.Equal(t, "Internal Server Error", resp.Error)
}
