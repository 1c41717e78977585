// Package v1 contains the full set of handler functions and routes
// supported by the v1 web api.
package v1

import (
	"net/http"

	"github.com/cadcoin/blockchain/app/services/node/handlers/v1/private"
	"github.com/cadcoin/blockchain/app/services/node/handlers/v1/public"
	"github.com/cadcoin/blockchain/business/web/mid"
	"github.com/cadcoin/blockchain/foundation/blockchain/state"
	"github.com/cadcoin/blockchain/foundation/events"
	"github.com/cadcoin/blockchain/foundation/web"
	"go.uber.org/zap"
)

const version = "v1"

// Config contains all the mandatory systems required by handlers.
type Config struct {
	Log       *zap.SugaredLogger
	State     *state.State
	Evts      *events.Events
	RateLimit int
}

// PublicRoutes binds all the version 1 public routes.
func PublicRoutes(app *web.App, cfg Config) {
	pbl := public.Handlers{
		Log:   cfg.Log,
		State: cfg.State,
		Evts:  cfg.Evts,
	}

	// Routes that change the chain share one limiter.
	limit := mid.RateLimit(cfg.RateLimit)

	app.Handle(http.MethodGet, version, "/genesis", pbl.Genesis)
	app.Handle(http.MethodGet, version, "/events", pbl.Events)
	app.Handle(http.MethodGet, version, "/balances/:address", pbl.Balance)
	app.Handle(http.MethodGet, version, "/balances/:address/:symbol", pbl.BalanceOf)
	app.Handle(http.MethodGet, version, "/chain/info", pbl.ChainInfo)
	app.Handle(http.MethodGet, version, "/chain/validate", pbl.ValidateChain)
	app.Handle(http.MethodGet, version, "/blocks", pbl.Blocks)
	app.Handle(http.MethodGet, version, "/blocks/:index", pbl.Block)
	app.Handle(http.MethodGet, version, "/blocks/:index/proof/:hash", pbl.TxProof)
	app.Handle(http.MethodGet, version, "/tx/pending", pbl.Mempool)
	app.Handle(http.MethodPost, version, "/tx/submit", pbl.SubmitTransaction, limit)
	app.Handle(http.MethodPost, version, "/mining/mine", pbl.MineBlock, limit)
	app.Handle(http.MethodGet, version, "/mining/stats", pbl.MiningStats)
	app.Handle(http.MethodGet, version, "/stablecoins", pbl.StableCoins)
	app.Handle(http.MethodGet, version, "/stablecoins/:symbol", pbl.StableCoin)
	app.Handle(http.MethodPost, version, "/stablecoins", pbl.CreateStableCoin, limit)
	app.Handle(http.MethodPost, version, "/stablecoins/:symbol/minters", pbl.AuthorizeMinter, limit)
	app.Handle(http.MethodPost, version, "/stablecoins/:symbol/mint", pbl.Mint, limit)
}

// PrivateRoutes binds all the version 1 private routes.
func PrivateRoutes(app *web.App, cfg Config) {
	prv := private.Handlers{
		Log:   cfg.Log,
		State: cfg.State,
	}

	app.Handle(http.MethodGet, version, "/node/status", prv.Status)
	app.Handle(http.MethodGet, version, "/node/block/list/:from/:to", prv.BlocksByNumber)
	app.Handle(http.MethodPost, version, "/node/block/next", prv.AppendBlock)
	app.Handle(http.MethodGet, version, "/node/balances", prv.Balances)
}
