package state_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cadcoin/blockchain/foundation/blockchain/database"
	"github.com/cadcoin/blockchain/foundation/blockchain/genesis"
	"github.com/cadcoin/blockchain/foundation/blockchain/ledger"
	"github.com/cadcoin/blockchain/foundation/blockchain/mempool"
	"github.com/cadcoin/blockchain/foundation/blockchain/state"
	"github.com/cadcoin/blockchain/foundation/blockchain/storage/disk"
	"github.com/cadcoin/blockchain/foundation/blockchain/storage/memory"
	"github.com/cadcoin/blockchain/foundation/blockchain/storage/mocks"
	"github.com/golang/mock/gomock"
	"github.com/shopspring/decimal"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

const native = database.Symbol("CAD-COIN")

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func testGenesis(balances map[database.Address]string) genesis.Genesis {
	gen := genesis.Default()
	gen.Difficulty = 1
	gen.MinDifficulty = 1
	gen.MaxDifficulty = 3

	gen.Balances = make(map[database.Address]decimal.Decimal)
	for address, amount := range balances {
		gen.Balances[address] = d(amount)
	}

	return gen
}

func newState(t *testing.T, gen genesis.Genesis, storage database.Storage) *state.State {
	if storage == nil {
		var err error
		if storage, err = memory.New(); err != nil {
			t.Fatalf("\t%s\tShould be able to construct storage: %v", failed, err)
		}
	}

	st, err := state.New(state.Config{
		MinerAddress: "miner1",
		Genesis:      gen,
		Storage:      storage,
		EvHandler:    func(v string, args ...any) { t.Logf(v, args...) },
	})
	if err != nil {
		t.Fatalf("\t%s\tShould be able to construct state: %v", failed, err)
	}

	return st
}

func transfer(t *testing.T, from database.Address, to database.Address, amount string, fee string) database.Tx {
	tx, err := database.NewTransfer(from, to, native, d(amount), d(fee))
	if err != nil {
		t.Fatalf("\t%s\tShould be able to construct transfer: %v", failed, err)
	}
	return tx
}

func mine(t *testing.T, st *state.State, miner database.Address) database.Block {
	block, err := st.MineNewBlock(context.Background(), miner)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to mine a block: %v", failed, err)
	}
	return block
}

// =============================================================================

func Test_EndToEnd(t *testing.T) {
	t.Log("Given the need to move coins from a fresh chain.")
	{
		st := newState(t, testGenesis(nil), nil)

		t.Logf("\tTest 0:\tWhen alice has nothing to spend.")
		{
			if info := st.QueryChainInfo(); info.Length != 1 {
				t.Fatalf("\t%s\tTest 0:\tShould start with the genesis block only, got %d.", failed, info.Length)
			}
			t.Logf("\t%s\tTest 0:\tShould start with the genesis block only.", success)

			_, err := st.SubmitTransaction(transfer(t, "alice", "bob", "10", "0.01"))
			if !errors.Is(err, ledger.ErrInsufficientFunds) {
				t.Fatalf("\t%s\tTest 0:\tShould reject the transfer, got %v.", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould reject the transfer.", success)
		}

		t.Logf("\tTest 1:\tWhen alice mines an empty block.")
		{
			block := mine(t, st, "alice")

			if len(block.Trans) != 1 || block.Trans[0].Kind != database.KindReward {
				t.Fatalf("\t%s\tTest 1:\tShould hold only the reward: %+v", failed, block.Trans)
			}
			t.Logf("\t%s\tTest 1:\tShould hold only the reward.", success)

			if bal := st.QueryBalance("alice")[native]; !bal.Equal(d("50")) {
				t.Fatalf("\t%s\tTest 1:\tShould credit alice 50, got %s.", failed, bal)
			}
			t.Logf("\t%s\tTest 1:\tShould credit alice 50.", success)
		}

		t.Logf("\tTest 2:\tWhen alice resubmits and mines again.")
		{
			if _, err := st.SubmitTransaction(transfer(t, "alice", "bob", "10", "0.01")); err != nil {
				t.Fatalf("\t%s\tTest 2:\tShould accept the transfer: %v", failed, err)
			}
			if st.QueryMempoolLength() != 1 {
				t.Fatalf("\t%s\tTest 2:\tShould hold the transfer in the pool.", failed)
			}
			t.Logf("\t%s\tTest 2:\tShould accept the transfer into the pool.", success)

			mine(t, st, "alice")

			info := st.QueryChainInfo()
			if info.Length != 3 || info.PendingCount != 0 {
				t.Fatalf("\t%s\tTest 2:\tShould have length 3 and an empty pool: %+v", failed, info)
			}
			t.Logf("\t%s\tTest 2:\tShould have length 3 and an empty pool.", success)

			// The fee alice paid comes back to her as the miner.
			alice := st.QueryBalance("alice")[native]
			bob := st.QueryBalance("bob")[native]
			if !alice.Equal(d("90")) || !bob.Equal(d("10")) {
				t.Fatalf("\t%s\tTest 2:\tShould end with alice 90 and bob 10, got %s and %s.", failed, alice, bob)
			}
			t.Logf("\t%s\tTest 2:\tShould end with alice 90 and bob 10.", success)

			report, err := st.ValidateChain(context.Background(), 0)
			if err != nil || !report.Valid || report.Checked != 3 {
				t.Fatalf("\t%s\tTest 2:\tShould validate the whole chain: %v %+v", failed, err, report)
			}
			t.Logf("\t%s\tTest 2:\tShould validate the whole chain.", success)

			blocks, err := st.QueryBlocks(0, 2)
			if err != nil || len(blocks) != 2 || blocks[0].Header.Index != 2 || blocks[1].Header.Index != 1 {
				t.Fatalf("\t%s\tTest 2:\tShould list blocks newest first: %v", failed, err)
			}
			t.Logf("\t%s\tTest 2:\tShould list blocks newest first.", success)
		}
	}
}

func Test_Pool(t *testing.T) {
	t.Log("Given the need to guard the pending pool.")
	{
		t.Logf("\tTest 0:\tWhen the same transaction is submitted twice.")
		{
			st := newState(t, testGenesis(map[database.Address]string{"alice": "100"}), nil)
			tx := transfer(t, "alice", "bob", "1", "0.01")

			if _, err := st.SubmitTransaction(tx); err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould accept the first submission: %v", failed, err)
			}
			if _, err := st.SubmitTransaction(tx); !errors.Is(err, mempool.ErrDuplicateTransaction) {
				t.Fatalf("\t%s\tTest 0:\tShould reject the second submission, got %v.", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould reject the second submission.", success)
		}

		t.Logf("\tTest 1:\tWhen two transfers spend the same coins.")
		{
			st := newState(t, testGenesis(map[database.Address]string{"alice": "10.02"}), nil)

			if _, err := st.SubmitTransaction(transfer(t, "alice", "bob", "10", "0.01")); err != nil {
				t.Fatalf("\t%s\tTest 1:\tShould accept the first spend: %v", failed, err)
			}
			if _, err := st.SubmitTransaction(transfer(t, "alice", "carol", "10", "0.01")); err != nil {
				t.Fatalf("\t%s\tTest 1:\tShould accept the second spend into the pool: %v", failed, err)
			}

			block := mine(t, st, "miner1")
			if len(block.Trans) != 2 {
				t.Fatalf("\t%s\tTest 1:\tShould mine only one of the spends, got %d transactions.", failed, len(block.Trans)-1)
			}
			t.Logf("\t%s\tTest 1:\tShould mine only one of the spends.", success)

			received := st.QueryBalance("bob")[native].Add(st.QueryBalance("carol")[native])
			if !received.Equal(d("10")) || st.QueryMempoolLength() != 0 {
				t.Fatalf("\t%s\tTest 1:\tShould pay out once and drop the loser, got %s.", failed, received)
			}
			t.Logf("\t%s\tTest 1:\tShould pay out once and drop the loser.", success)
		}

		t.Logf("\tTest 2:\tWhen a reward is submitted by a user.")
		{
			st := newState(t, testGenesis(nil), nil)

			reward, _ := database.NewReward("alice", native, d("50"))
			if _, err := st.SubmitTransaction(reward); !errors.Is(err, database.ErrValidation) {
				t.Fatalf("\t%s\tTest 2:\tShould reject the reward, got %v.", failed, err)
			}
			t.Logf("\t%s\tTest 2:\tShould reject the reward.", success)
		}

		t.Logf("\tTest 3:\tWhen a mined transaction is submitted again.")
		{
			store, err := memory.New()
			if err != nil {
				t.Fatalf("\t%s\tTest 3:\tShould be able to construct storage: %v", failed, err)
			}
			gen := testGenesis(map[database.Address]string{"alice": "100"})
			st := newState(t, gen, store)
			tx := transfer(t, "alice", "bob", "10", "0.01")

			if _, err := st.SubmitTransaction(tx); err != nil {
				t.Fatalf("\t%s\tTest 3:\tShould accept the first submission: %v", failed, err)
			}
			mine(t, st, "miner1")

			if _, err := st.SubmitTransaction(tx); !errors.Is(err, mempool.ErrDuplicateTransaction) {
				t.Fatalf("\t%s\tTest 3:\tShould reject the committed transaction, got %v.", failed, err)
			}
			t.Logf("\t%s\tTest 3:\tShould reject the committed transaction.", success)

			block := mine(t, st, "miner1")
			if len(block.Trans) != 1 || !st.QueryBalance("bob")[native].Equal(d("10")) {
				t.Fatalf("\t%s\tTest 3:\tShould pay bob only once, got %s.", failed, st.QueryBalance("bob")[native])
			}
			t.Logf("\t%s\tTest 3:\tShould pay bob only once.", success)

			restarted := newState(t, gen, store)
			if _, err := restarted.SubmitTransaction(tx); !errors.Is(err, mempool.ErrDuplicateTransaction) {
				t.Fatalf("\t%s\tTest 3:\tShould still reject it after a restart, got %v.", failed, err)
			}
			t.Logf("\t%s\tTest 3:\tShould still reject it after a restart.", success)
		}

		t.Logf("\tTest 4:\tWhen an offered block lists a transaction twice.")
		{
			gen := testGenesis(map[database.Address]string{"alice": "100"})
			st := newState(t, gen, nil)
			tx := database.NewBlockTx(transfer(t, "alice", "bob", "10", "0.01"))

			amount := state.MiningReward(1, state.NewConsensus(gen)).Add(tx.Fee).Add(tx.Fee)
			reward, _ := database.NewReward("miner1", native, amount)
			block, err := database.POW(context.Background(), database.POWArgs{
				Miner:      "miner1",
				Difficulty: 1,
				PrevBlock:  st.RetrieveLatestBlock(),
				Trans:      []database.BlockTx{database.NewBlockTx(reward), tx, tx},
			})
			if err != nil {
				t.Fatalf("\t%s\tTest 4:\tShould be able to mine the block: %v", failed, err)
			}

			if err := st.TryAppend(block); !errors.Is(err, database.ErrValidation) {
				t.Fatalf("\t%s\tTest 4:\tShould reject the block, got %v.", failed, err)
			}
			t.Logf("\t%s\tTest 4:\tShould reject the block.", success)

			if info := st.QueryChainInfo(); info.Length != 1 || !st.QueryBalance("bob")[native].IsZero() {
				t.Fatalf("\t%s\tTest 4:\tShould leave the chain untouched: %+v", failed, info)
			}
			t.Logf("\t%s\tTest 4:\tShould leave the chain untouched.", success)
		}

		t.Logf("\tTest 5:\tWhen an offered block replays a committed transaction.")
		{
			gen := testGenesis(map[database.Address]string{"alice": "100"})
			st := newState(t, gen, nil)
			tx, err := st.SubmitTransaction(transfer(t, "alice", "bob", "10", "0.01"))
			if err != nil {
				t.Fatalf("\t%s\tTest 5:\tShould accept the transfer: %v", failed, err)
			}
			mine(t, st, "miner1")

			amount := state.MiningReward(2, state.NewConsensus(gen)).Add(tx.Fee)
			reward, _ := database.NewReward("miner1", native, amount)
			block, err := database.POW(context.Background(), database.POWArgs{
				Miner:      "miner1",
				Difficulty: st.QueryChainInfo().Difficulty,
				PrevBlock:  st.RetrieveLatestBlock(),
				Trans:      []database.BlockTx{database.NewBlockTx(reward), tx},
			})
			if err != nil {
				t.Fatalf("\t%s\tTest 5:\tShould be able to mine the block: %v", failed, err)
			}

			if err := st.TryAppend(block); !errors.Is(err, mempool.ErrDuplicateTransaction) {
				t.Fatalf("\t%s\tTest 5:\tShould reject the block, got %v.", failed, err)
			}
			t.Logf("\t%s\tTest 5:\tShould reject the block.", success)

			if info := st.QueryChainInfo(); info.Length != 2 || !st.QueryBalance("bob")[native].Equal(d("10")) {
				t.Fatalf("\t%s\tTest 5:\tShould pay bob only once: %+v", failed, info)
			}
			t.Logf("\t%s\tTest 5:\tShould pay bob only once.", success)
		}
	}
}

func Test_Stablecoins(t *testing.T) {
	t.Log("Given the need to issue a stablecoin.")
	{
		st := newState(t, testGenesis(map[database.Address]string{"alice": "5", "carol": "1"}), nil)

		def, err := database.NewAssetDefinition("USDC", "USD Coin", "USD", decimal.Zero, d("1000"))
		if err != nil {
			t.Fatalf("\t%s\tShould be able to define USDC: %v", failed, err)
		}

		if _, err := st.CreateStableCoin(def, "alice"); err != nil {
			t.Fatalf("\t%s\tShould be able to create USDC: %v", failed, err)
		}

		t.Logf("\tTest 0:\tWhen carol mints without rights.")
		{
			if _, err := st.Mint("USDC", "carol", d("100"), "carol"); !errors.Is(err, ledger.ErrNotAuthorized) {
				t.Fatalf("\t%s\tTest 0:\tShould reject the mint, got %v.", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould reject the mint.", success)
		}

		t.Logf("\tTest 1:\tWhen alice grants carol the right to mint.")
		{
			if _, err := st.AuthorizeMinter("USDC", "carol", "alice"); err != nil {
				t.Fatalf("\t%s\tTest 1:\tShould authorize carol: %v", failed, err)
			}

			if _, err := st.Mint("USDC", "carol", d("100"), "carol"); err != nil {
				t.Fatalf("\t%s\tTest 1:\tShould accept the mint: %v", failed, err)
			}

			if asset, _ := st.QueryAsset("USDC"); !asset.Minted.IsZero() {
				t.Fatalf("\t%s\tTest 1:\tShould not change supply before mining.", failed)
			}
			t.Logf("\t%s\tTest 1:\tShould not change supply before mining.", success)

			mine(t, st, "miner1")

			asset, _ := st.QueryAsset("USDC")
			if !asset.Minted.Equal(d("100")) || !st.QueryBalance("carol")["USDC"].Equal(d("100")) {
				t.Fatalf("\t%s\tTest 1:\tShould raise supply by exactly the amount: %s", failed, asset.Minted)
			}
			t.Logf("\t%s\tTest 1:\tShould raise supply by exactly the amount.", success)

			if !st.QueryBalance("carol")[native].Equal(d("0.9")) {
				t.Fatalf("\t%s\tTest 1:\tShould charge carol the default fee.", failed)
			}
			t.Logf("\t%s\tTest 1:\tShould charge carol the default fee.", success)
		}

		t.Logf("\tTest 2:\tWhen a mint would pass the cap.")
		{
			if _, err := st.Mint("USDC", "carol", d("901"), "alice"); !errors.Is(err, ledger.ErrSupplyCapExceeded) {
				t.Fatalf("\t%s\tTest 2:\tShould reject the mint, got %v.", failed, err)
			}
			t.Logf("\t%s\tTest 2:\tShould reject the mint.", success)

			if _, err := st.Mint("EURC", "carol", d("1"), "alice"); !errors.Is(err, ledger.ErrUnknownSymbol) {
				t.Fatalf("\t%s\tTest 2:\tShould reject an unknown symbol, got %v.", failed, err)
			}
			t.Logf("\t%s\tTest 2:\tShould reject an unknown symbol.", success)
		}
	}
}

func Test_Consensus(t *testing.T) {
	c := state.NewConsensus(genesis.Default())

	t.Log("Given the need to halve the reward.")
	{
		type table struct {
			length uint64
			reward string
		}

		tt := []table{
			{length: 99, reward: "50"},
			{length: 100, reward: "25"},
			{length: 200, reward: "12.5"},
			{length: 1000, reward: "0.1"},
			{length: 10_000, reward: "0.1"},
		}

		for testID, tst := range tt {
			t.Logf("\tTest %d:\tWhen the chain length is %d.", testID, tst.length)
			{
				if got := state.MiningReward(tst.length, c); !got.Equal(d(tst.reward)) {
					t.Fatalf("\t%s\tTest %d:\tShould pay %s, got %s.", failed, testID, tst.reward, got)
				}
				t.Logf("\t%s\tTest %d:\tShould pay %s.", success, testID, tst.reward)
			}
		}
	}

	t.Log("Given the need to retarget the difficulty.")
	{
		samples := func(seconds float64) []time.Duration {
			out := make([]time.Duration, 10)
			for i := range out {
				out[i] = time.Duration(seconds * float64(time.Second))
			}
			return out
		}

		type table struct {
			name    string
			current uint16
			seconds float64
			exp     uint16
		}

		tt := []table{
			{name: "much-faster", current: 6, seconds: 1, exp: 8},
			{name: "faster", current: 6, seconds: 7, exp: 7},
			{name: "on-target", current: 6, seconds: 10, exp: 6},
			{name: "slower", current: 6, seconds: 16, exp: 5},
			{name: "much-slower", current: 6, seconds: 30, exp: 4},
			{name: "capped", current: 20, seconds: 1, exp: 20},
			{name: "floored", current: 4, seconds: 30, exp: 4},
		}

		for testID, tst := range tt {
			t.Logf("\tTest %d:\tWhen blocks take %.0fs at difficulty %d.", testID, tst.seconds, tst.current)
			{
				if got := state.NextDifficulty(tst.current, samples(tst.seconds), c); got != tst.exp {
					t.Fatalf("\t%s\tTest %d:\tShould move to %d, got %d.", failed, testID, tst.exp, got)
				}
				t.Logf("\t%s\tTest %d:\tShould move to %d.", success, testID, tst.exp)
			}
		}
	}
}

func Test_Mining(t *testing.T) {
	t.Log("Given the need to mine under changing conditions.")
	{
		t.Logf("\tTest 0:\tWhen blocks arrive far faster than the target.")
		{
			gen := testGenesis(nil)
			gen.AdjustmentInterval = 2
			st := newState(t, gen, nil)

			mine(t, st, "miner1")
			mine(t, st, "miner1")

			if info := st.QueryChainInfo(); info.Difficulty != 3 {
				t.Fatalf("\t%s\tTest 0:\tShould raise the difficulty to 3, got %d.", failed, info.Difficulty)
			}
			t.Logf("\t%s\tTest 0:\tShould raise the difficulty to 3.", success)

			block := mine(t, st, "miner1")
			if block.Header.Difficulty != 3 || block.Hash()[2:5] != "000" {
				t.Fatalf("\t%s\tTest 0:\tShould mine at the new difficulty: %s", failed, block.Hash())
			}
			t.Logf("\t%s\tTest 0:\tShould mine at the new difficulty.", success)
		}

		t.Logf("\tTest 1:\tWhen the search runs past its deadline.")
		{
			gen := testGenesis(nil)
			gen.Difficulty = 20
			gen.MaxDifficulty = 20
			st := newState(t, gen, nil)

			ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
			defer cancel()

			if _, err := st.MineNewBlock(ctx, "miner1"); !errors.Is(err, state.ErrMiningTimeout) {
				t.Fatalf("\t%s\tTest 1:\tShould time out, got %v.", failed, err)
			}
			t.Logf("\t%s\tTest 1:\tShould time out.", success)

			if info := st.QueryChainInfo(); info.Length != 1 {
				t.Fatalf("\t%s\tTest 1:\tShould leave the chain untouched.", failed)
			}
			t.Logf("\t%s\tTest 1:\tShould leave the chain untouched.", success)
		}

		t.Logf("\tTest 2:\tWhen a block is offered at the wrong difficulty.")
		{
			st := newState(t, testGenesis(nil), nil)

			reward, _ := database.NewReward("miner1", native, d("50"))
			block, err := database.POW(context.Background(), database.POWArgs{
				Miner:      "miner1",
				Difficulty: 2,
				PrevBlock:  st.RetrieveLatestBlock(),
				Trans:      []database.BlockTx{database.NewBlockTx(reward)},
			})
			if err != nil {
				t.Fatalf("\t%s\tTest 2:\tShould be able to mine the block: %v", failed, err)
			}

			if err := st.TryAppend(block); !errors.Is(err, database.ErrProofOfWork) {
				t.Fatalf("\t%s\tTest 2:\tShould reject the block, got %v.", failed, err)
			}
			t.Logf("\t%s\tTest 2:\tShould reject the block.", success)
		}
	}
}

func Test_MiningStats(t *testing.T) {
	t.Log("Given the need to report who has been mining.")
	{
		t.Logf("\tTest 0:\tWhen two miners find blocks.")
		{
			st := newState(t, testGenesis(map[database.Address]string{"alice": "10"}), nil)

			mine(t, st, "miner1")
			mine(t, st, "miner1")
			mine(t, st, "alice")

			stats := st.QueryMiningStats()
			if len(stats.TopMiners) != 2 {
				t.Fatalf("\t%s\tTest 0:\tShould report two miners: %+v", failed, stats.TopMiners)
			}
			top := stats.TopMiners[0]
			if top.Miner != "miner1" || top.Attempts != 2 || top.Successful != 2 {
				t.Fatalf("\t%s\tTest 0:\tShould rank miner1 first with two blocks: %+v", failed, top)
			}
			t.Logf("\t%s\tTest 0:\tShould rank miner1 first with two blocks.", success)

			if !stats.NextReward.Equal(d("50")) || stats.CurrentDifficulty != st.QueryChainInfo().Difficulty {
				t.Fatalf("\t%s\tTest 0:\tShould report the next block: %+v", failed, stats)
			}
			t.Logf("\t%s\tTest 0:\tShould report the next block.", success)

			bal, err := st.QueryBalanceOf("alice", native)
			if err != nil || !bal.Equal(d("60")) {
				t.Fatalf("\t%s\tTest 0:\tShould read alice's coin balance: %v %s", failed, err, bal)
			}
			t.Logf("\t%s\tTest 0:\tShould read alice's coin balance.", success)

			if _, err := st.QueryBalanceOf("alice", "EURC"); !errors.Is(err, ledger.ErrUnknownSymbol) {
				t.Fatalf("\t%s\tTest 0:\tShould reject an unknown symbol, got %v.", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould reject an unknown symbol.", success)
		}

		t.Logf("\tTest 1:\tWhen an attempt runs past its deadline.")
		{
			gen := testGenesis(nil)
			gen.Difficulty = 20
			gen.MaxDifficulty = 20
			st := newState(t, gen, nil)

			ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
			defer cancel()

			if _, err := st.MineNewBlock(ctx, "miner2"); err == nil {
				t.Fatalf("\t%s\tTest 1:\tShould fail to mine.", failed)
			}

			stats := st.QueryMiningStats()
			if len(stats.TopMiners) != 1 || stats.TopMiners[0].Attempts != 1 || stats.TopMiners[0].Successful != 0 {
				t.Fatalf("\t%s\tTest 1:\tShould count the failed attempt: %+v", failed, stats.TopMiners)
			}
			t.Logf("\t%s\tTest 1:\tShould count the failed attempt.", success)
		}
	}
}

func Test_Atomicity(t *testing.T) {
	t.Log("Given the need to commit blocks all or nothing.")
	{
		t.Logf("\tTest 0:\tWhen storage fails to write the block.")
		{
			ctrl := gomock.NewController(t)
			t.Cleanup(ctrl.Finish)

			iter := mocks.NewMockIterator(ctrl)
			iter.EXPECT().Next().Return(database.BlockData{}, errors.New("end of chain"))
			iter.EXPECT().Done().Return(true).AnyTimes()

			storage := mocks.NewMockStorage(ctrl)
			gomock.InOrder(
				storage.EXPECT().ForEach().Return(iter),
				storage.EXPECT().Write(gomock.Any(), gomock.Any()).Return(nil),
				storage.EXPECT().Write(gomock.Any(), gomock.Any()).Return(errors.New("disk full")),
			)

			st := newState(t, testGenesis(map[database.Address]string{"alice": "20"}), storage)

			if _, err := st.SubmitTransaction(transfer(t, "alice", "bob", "10", "0.01")); err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould accept the transfer: %v", failed, err)
			}

			if _, err := st.MineNewBlock(context.Background(), "miner1"); err == nil {
				t.Fatalf("\t%s\tTest 0:\tShould report the storage failure.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould report the storage failure.", success)

			info := st.QueryChainInfo()
			if info.Length != 1 || info.PendingCount != 1 {
				t.Fatalf("\t%s\tTest 0:\tShould keep the tip and the pool: %+v", failed, info)
			}
			t.Logf("\t%s\tTest 0:\tShould keep the tip and the pool.", success)

			if !st.QueryBalance("alice")[native].Equal(d("20")) || !st.QueryBalance("miner1")[native].IsZero() {
				t.Fatalf("\t%s\tTest 0:\tShould leave every balance untouched.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould leave every balance untouched.", success)
		}
	}
}

func Test_Storage(t *testing.T) {
	t.Log("Given the need to rebuild and audit the chain from storage.")
	{
		dbPath := t.TempDir()
		gen := testGenesis(map[database.Address]string{"alice": "100"})

		store, err := disk.New(dbPath)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to open disk storage: %v", failed, err)
		}
		st := newState(t, gen, store)

		def, _ := database.NewAssetDefinition("USDC", "USD Coin", "USD", decimal.Zero, d("1000"))
		if _, err := st.CreateStableCoin(def, "alice"); err != nil {
			t.Fatalf("\t%s\tShould be able to create USDC: %v", failed, err)
		}

		for i := 0; i < 3; i++ {
			if _, err := st.SubmitTransaction(transfer(t, "alice", "bob", "1", "0.01")); err != nil {
				t.Fatalf("\t%s\tShould accept transfer %d: %v", failed, i, err)
			}
			if i == 1 {
				if _, err := st.Mint("USDC", "bob", d("10"), "alice"); err != nil {
					t.Fatalf("\t%s\tShould accept the mint: %v", failed, err)
				}
			}
			mine(t, st, "miner1")
		}

		t.Logf("\tTest 0:\tWhen the node restarts on the same storage.")
		{
			restarted := newState(t, gen, store)

			before, after := st.QueryChainInfo(), restarted.QueryChainInfo()
			if before.Length != after.Length || before.LatestHash != after.LatestHash || before.Difficulty != after.Difficulty {
				t.Fatalf("\t%s\tTest 0:\tShould rebuild the same chain: %+v %+v", failed, before, after)
			}
			t.Logf("\t%s\tTest 0:\tShould rebuild the same chain.", success)

			if !restarted.QueryBalance("bob")[native].Equal(d("3")) || !restarted.QueryBalance("bob")["USDC"].Equal(d("10")) {
				t.Fatalf("\t%s\tTest 0:\tShould rebuild the balances: %v", failed, restarted.QueryBalance("bob"))
			}
			t.Logf("\t%s\tTest 0:\tShould rebuild the balances.", success)

			asset, err := restarted.QueryAsset("USDC")
			if err != nil || !asset.Minted.Equal(d("10")) || len(asset.Minters) != 1 {
				t.Fatalf("\t%s\tTest 0:\tShould rebuild the stablecoin: %v %+v", failed, err, asset)
			}
			t.Logf("\t%s\tTest 0:\tShould rebuild the stablecoin.", success)
		}

		t.Logf("\tTest 1:\tWhen an amount is altered inside block 1 on disk.")
		{
			path := filepath.Join(dbPath, "blocks", "1.json")

			data, err := os.ReadFile(path)
			if err != nil {
				t.Fatalf("\t%s\tTest 1:\tShould be able to read the block file: %v", failed, err)
			}

			var blockData database.BlockData
			if err := json.Unmarshal(data, &blockData); err != nil {
				t.Fatalf("\t%s\tTest 1:\tShould be able to decode the block: %v", failed, err)
			}
			blockData.Trans[1].Amount = d("1000")

			if data, err = json.Marshal(blockData); err != nil {
				t.Fatalf("\t%s\tTest 1:\tShould be able to encode the block: %v", failed, err)
			}
			if err := os.WriteFile(path, data, 0600); err != nil {
				t.Fatalf("\t%s\tTest 1:\tShould be able to write the block file: %v", failed, err)
			}

			report, err := st.ValidateChain(context.Background(), 0)
			if err != nil {
				t.Fatalf("\t%s\tTest 1:\tShould be able to validate: %v", failed, err)
			}
			if report.Valid || report.FirstViolation.Index != 1 {
				t.Fatalf("\t%s\tTest 1:\tShould point at block 1: %+v", failed, report)
			}
			t.Logf("\t%s\tTest 1:\tShould point at block 1.", success)

			report, err = st.ValidateChain(context.Background(), 1)
			if err != nil || !report.Valid || report.Checked != 2 {
				t.Fatalf("\t%s\tTest 1:\tShould not look past the requested depth: %v %+v", failed, err, report)
			}
			t.Logf("\t%s\tTest 1:\tShould not look past the requested depth.", success)

			if _, err := state.New(state.Config{Genesis: gen, Storage: store}); err == nil {
				t.Fatalf("\t%s\tTest 1:\tShould refuse to start on a tampered chain.", failed)
			}
			t.Logf("\t%s\tTest 1:\tShould refuse to start on a tampered chain.", success)
		}
	}
}
