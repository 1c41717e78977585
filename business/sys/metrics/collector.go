package metrics

import (
	"github.com/cadcoin/blockchain/foundation/blockchain/state"
	"github.com/prometheus/client_golang/prometheus"
)

// ChainSource provides the summary the collector reports on.
type ChainSource interface {
	QueryChainInfo() state.ChainInfo
}

// ChainCollector reads the chain summary at scrape time.
type ChainCollector struct {
	src          ChainSource
	length       *prometheus.Desc
	difficulty   *prometheus.Desc
	reward       *prometheus.Desc
	pending      *prometheus.Desc
	transactions *prometheus.Desc
	hashRate     *prometheus.Desc
	stableCoins  *prometheus.Desc
}

// NewChainCollector constructs a collector over the chain.
func NewChainCollector(src ChainSource) *ChainCollector {
	desc := func(subsystem string, name string, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, subsystem, name), help, nil, nil)
	}

	return &ChainCollector{
		src:          src,
		length:       desc("chain", "length", "Number of blocks in the chain including genesis."),
		difficulty:   desc("chain", "difficulty", "Current number of leading zero hex digits required."),
		reward:       desc("chain", "reward", "Reward paid for the next block."),
		pending:      desc("mempool", "pending", "Number of transactions waiting to be mined."),
		transactions: desc("chain", "transactions_total", "Number of transactions recorded in blocks."),
		hashRate:     desc("chain", "estimated_hash_rate", "Estimated hashes per second over the sample window."),
		stableCoins:  desc("chain", "stable_coins", "Number of registered stablecoins."),
	}
}

// Describe implements prometheus.Collector.
func (c *ChainCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.length
	ch <- c.difficulty
	ch <- c.reward
	ch <- c.pending
	ch <- c.transactions
	ch <- c.hashRate
	ch <- c.stableCoins
}

// Collect implements prometheus.Collector.
func (c *ChainCollector) Collect(ch chan<- prometheus.Metric) {
	info := c.src.QueryChainInfo()

	reward, _ := info.CurrentReward.Float64()

	ch <- prometheus.MustNewConstMetric(c.length, prometheus.GaugeValue, float64(info.Length))
	ch <- prometheus.MustNewConstMetric(c.difficulty, prometheus.GaugeValue, float64(info.Difficulty))
	ch <- prometheus.MustNewConstMetric(c.reward, prometheus.GaugeValue, reward)
	ch <- prometheus.MustNewConstMetric(c.pending, prometheus.GaugeValue, float64(info.PendingCount))
	ch <- prometheus.MustNewConstMetric(c.transactions, prometheus.CounterValue, float64(info.TotalTransactions))
	ch <- prometheus.MustNewConstMetric(c.hashRate, prometheus.GaugeValue, info.EstimatedHashRate)
	ch <- prometheus.MustNewConstMetric(c.stableCoins, prometheus.GaugeValue, float64(len(info.StableCoins)))
}
