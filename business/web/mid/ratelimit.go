package mid

import (
	"context"
	"net/http"

	"github.com/cadcoin/blockchain/foundation/web"
	"go.uber.org/ratelimit"
)

// RateLimit paces the requests that reach the handler to rps per second.
// Requests over the rate wait for their turn. A non positive rps disables
// the limit.
func RateLimit(rps int) web.Middleware {
	if rps <= 0 {
		return nil
	}

	rl := ratelimit.New(rps)

	// This is the actual middleware function to be executed.
	m := func(handler web.Handler) web.Handler {

		// Create the handler that will be attached in the middleware chain.
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			rl.Take()

			// Call the next handler.
			return handler(ctx, w, r)
		}

		return h
	}

	return m
}
