package mid

import (
	"context"
	"net/http"

	"github.com/cadcoin/blockchain/business/sys/metrics"
	"github.com/cadcoin/blockchain/foundation/web"
)

// Metrics updates program counters. It belongs outside of Errors so the
// status written for a failed request is recorded.
func Metrics() web.Middleware {

	// This is the actual middleware function to be executed.
	m := func(handler web.Handler) web.Handler {

		// Create the handler that will be attached in the middleware chain.
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			v, err := web.GetValues(ctx)
			if err != nil {
				return web.NewShutdownError("web value missing from context")
			}

			// Call the next handler.
			err = handler(ctx, w, r)

			failed := err != nil || v.StatusCode >= http.StatusBadRequest
			metrics.ObserveRequest(r.Method, v.Route, v.StatusCode, failed, v.Now)

			// Return the error so it can be handled further up the chain.
			return err
		}

		return h
	}

	return m
}
