package metrics_test

import (
	"errors"
	"testing"
	"time"

	"github.com/cadcoin/blockchain/business/sys/metrics"
	"github.com/cadcoin/blockchain/foundation/blockchain/state"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type chainSource struct {
	info state.ChainInfo
}

func (cs chainSource) QueryChainInfo() state.ChainInfo {
	return cs.info
}

func gather(t *testing.T, g prometheus.Gatherer) map[string]float64 {
	families, err := g.Gather()
	require.NoError(t, err)

	values := make(map[string]float64)
	for _, family := range families {
		var total float64
		for _, m := range family.GetMetric() {
			switch {
			case m.GetGauge() != nil:
				total += m.GetGauge().GetValue()
			case m.GetCounter() != nil:
				total += m.GetCounter().GetValue()
			case m.GetHistogram() != nil:
				total += float64(m.GetHistogram().GetSampleCount())
			}
		}
		values[family.GetName()] = total
	}

	return values
}

func TestChainCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NoError(t, reg.Register(metrics.NewChainCollector(chainSource{
		info: state.ChainInfo{
			Length:            12,
			Difficulty:        5,
			CurrentReward:     decimal.RequireFromString("25"),
			PendingCount:      3,
			TotalTransactions: 40,
			EstimatedHashRate: 1024,
		},
	})))

	values := gather(t, reg)
	require.Equal(t, 12.0, values["cadcoin_chain_length"])
	require.Equal(t, 5.0, values["cadcoin_chain_difficulty"])
	require.Equal(t, 25.0, values["cadcoin_chain_reward"])
	require.Equal(t, 3.0, values["cadcoin_mempool_pending"])
	require.Equal(t, 40.0, values["cadcoin_chain_transactions_total"])
	require.Equal(t, 1024.0, values["cadcoin_chain_estimated_hash_rate"])
	require.Equal(t, 0.0, values["cadcoin_chain_stable_coins"])
}

func TestObserve(t *testing.T) {
	before := gather(t, prometheus.DefaultGatherer)

	metrics.ObserveSubmit("transfer", nil)
	metrics.ObserveSubmit("transfer", errors.New("insufficient funds"))
	metrics.ObserveMining(nil, time.Second)
	metrics.ObserveMining(state.ErrMiningTimeout, 0)
	metrics.ObserveRequest("GET", "/chain/info", 200, false, time.Now())

	after := gather(t, prometheus.DefaultGatherer)
	require.Equal(t, before["cadcoin_mempool_transactions_submitted_total"]+2, after["cadcoin_mempool_transactions_submitted_total"])
	require.Equal(t, before["cadcoin_mining_blocks_total"]+1, after["cadcoin_mining_blocks_total"])
	require.Equal(t, before["cadcoin_mining_failures_total"]+1, after["cadcoin_mining_failures_total"])
	require.Equal(t, before["cadcoin_http_requests_total"]+1, after["cadcoin_http_requests_total"])
}
