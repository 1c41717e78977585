package state

import (
	"cmp"
	"slices"
	"sync"
	"time"

	"github.com/cadcoin/blockchain/foundation/blockchain/database"
	"github.com/shopspring/decimal"
)

// Mining attempts are kept for this long and at most this many miners are
// reported.
const (
	statsWindow    = 24 * time.Hour
	statsTopMiners = 10
)

// MinerStats summarizes the mining attempts of one miner.
type MinerStats struct {
	Miner      database.Address `json:"miner"`
	Attempts   int              `json:"attempts"`
	Successful int              `json:"successful"`
	AvgTime    float64          `json:"avg_time"` // Seconds per successful attempt.
}

// MiningStats reports who has been mining and what the next block pays.
type MiningStats struct {
	TopMiners         []MinerStats    `json:"top_miners_24h"`
	CurrentDifficulty uint16          `json:"current_difficulty"`
	NextReward        decimal.Decimal `json:"next_reward"`
	TargetBlockTime   float64         `json:"target_block_time"`
}

type attempt struct {
	miner database.Address
	at    time.Time
	took  time.Duration
	mined bool
}

// attempts records mining attempts over a sliding window.
type attempts struct {
	mu   sync.Mutex
	list []attempt
}

func (a *attempts) record(miner database.Address, took time.Duration, mined bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := time.Now()
	a.prune(now)
	a.list = append(a.list, attempt{miner: miner, at: now, took: took, mined: mined})
}

func (a *attempts) summarize(now time.Time) []MinerStats {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.prune(now)

	byMiner := make(map[database.Address]*MinerStats)
	totals := make(map[database.Address]time.Duration)
	for _, at := range a.list {
		ms, exists := byMiner[at.miner]
		if !exists {
			ms = &MinerStats{Miner: at.miner}
			byMiner[at.miner] = ms
		}

		ms.Attempts++
		if at.mined {
			ms.Successful++
			totals[at.miner] += at.took
		}
	}

	out := make([]MinerStats, 0, len(byMiner))
	for miner, ms := range byMiner {
		if ms.Successful > 0 {
			ms.AvgTime = (totals[miner] / time.Duration(ms.Successful)).Seconds()
		}
		out = append(out, *ms)
	}

	slices.SortFunc(out, func(a, b MinerStats) int {
		if c := cmp.Compare(b.Successful, a.Successful); c != 0 {
			return c
		}
		return cmp.Compare(a.Miner, b.Miner)
	})

	if len(out) > statsTopMiners {
		out = out[:statsTopMiners]
	}

	return out
}

// prune drops the attempts that finished before the window. The list is in
// the order the attempts finished.
func (a *attempts) prune(now time.Time) {
	cutoff := now.Add(-statsWindow)

	i, _ := slices.BinarySearchFunc(a.list, cutoff, func(at attempt, t time.Time) int {
		return at.at.Compare(t)
	})
	a.list = a.list[i:]
}

// =============================================================================

// QueryMiningStats returns the attempts of the busiest miners over the last
// day along with the difficulty and reward of the next block.
func (s *State) QueryMiningStats() MiningStats {
	s.mu.RLock()
	next := s.db.LatestBlock().Header.Index + 1
	difficulty := s.difficulty
	s.mu.RUnlock()

	return MiningStats{
		TopMiners:         s.attempts.summarize(time.Now()),
		CurrentDifficulty: difficulty,
		NextReward:        MiningReward(next, s.consensus),
		TargetBlockTime:   s.consensus.TargetBlockTime.Seconds(),
	}
}
