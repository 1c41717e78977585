package database_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/cadcoin/blockchain/foundation/blockchain/database"
	"github.com/shopspring/decimal"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

const native = database.Symbol("CAD-COIN")

func mineChain(t *testing.T, n int, difficulty uint16) []database.Block {
	blocks := []database.Block{database.NewGenesisBlock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))}

	for i := 0; i < n; i++ {
		reward, err := database.NewReward("miner1", native, decimal.NewFromInt(50))
		if err != nil {
			t.Fatalf("\t%s\tShould be able to construct a reward: %v", failed, err)
		}

		transfer, err := database.NewTransfer("miner1", "bob", native, decimal.NewFromInt(int64(i+1)), decimal.RequireFromString("0.01"))
		if err != nil {
			t.Fatalf("\t%s\tShould be able to construct a transfer: %v", failed, err)
		}

		args := database.POWArgs{
			Miner:      "miner1",
			Difficulty: difficulty,
			PrevBlock:  blocks[len(blocks)-1],
			Trans:      []database.BlockTx{database.NewBlockTx(reward), database.NewBlockTx(transfer)},
		}

		block, err := database.POW(context.Background(), args)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to mine block %d: %v", failed, i+1, err)
		}
		blocks = append(blocks, block)
	}

	return blocks
}

// =============================================================================

func Test_Transactions(t *testing.T) {
	type table struct {
		name string
		from database.Address
		to   database.Address
		amt  string
		fee  string
		err  error
	}

	tt := []table{
		{name: "valid", from: "alice", to: "bob", amt: "10", fee: "0.01"},
		{name: "zero-amount", from: "alice", to: "bob", amt: "0", fee: "0.01", err: database.ErrValidation},
		{name: "negative-fee", from: "alice", to: "bob", amt: "10", fee: "-1", err: database.ErrValidation},
		{name: "self-transfer", from: "alice", to: "alice", amt: "10", fee: "0.01", err: database.ErrValidation},
		{name: "system-sender", from: database.SystemAddress, to: "bob", amt: "10", fee: "0.01", err: database.ErrValidation},
		{name: "bad-address", from: "al", to: "bob", amt: "10", fee: "0.01", err: database.ErrValidation},
	}

	t.Log("Given the need to construct transfers.")
	{
		for testID, tst := range tt {
			f := func(t *testing.T) {
				t.Logf("\tTest %d:\tWhen handling a %s transfer.", testID, tst.name)
				{
					tx, err := database.NewTransfer(tst.from, tst.to, native, decimal.RequireFromString(tst.amt), decimal.RequireFromString(tst.fee))
					if !errors.Is(err, tst.err) {
						t.Logf("\t%s\tTest %d:\tgot: %v", failed, testID, err)
						t.Logf("\t%s\tTest %d:\texp: %v", failed, testID, tst.err)
						t.Fatalf("\t%s\tTest %d:\tShould get the expected error.", failed, testID)
					}
					t.Logf("\t%s\tTest %d:\tShould get the expected error.", success, testID)

					if err != nil {
						return
					}

					btx := database.NewBlockTx(tx)
					if btx.ID != tx.Hash() || !strings.HasPrefix(btx.ID, "0x") {
						t.Fatalf("\t%s\tTest %d:\tShould cache the content hash.", failed, testID)
					}
					t.Logf("\t%s\tTest %d:\tShould cache the content hash.", success, testID)

					if err := btx.Verify(); err != nil {
						t.Fatalf("\t%s\tTest %d:\tShould verify the transaction: %v", failed, testID, err)
					}
					t.Logf("\t%s\tTest %d:\tShould verify the transaction.", success, testID)

					btx.Amount = btx.Amount.Add(decimal.NewFromInt(1))
					if err := btx.Verify(); !errors.Is(err, database.ErrValidation) {
						t.Fatalf("\t%s\tTest %d:\tShould detect an altered amount.", failed, testID)
					}
					t.Logf("\t%s\tTest %d:\tShould detect an altered amount.", success, testID)
				}
			}

			t.Run(tst.name, f)
		}
	}
}

func Test_DefaultFee(t *testing.T) {
	minFee := decimal.RequireFromString("0.001")

	t.Log("Given the need to charge a default fee.")
	{
		t.Logf("\tTest 0:\tWhen the amount is small.")
		{
			fee := database.DefaultFee(decimal.NewFromInt(1), minFee)
			if !fee.Equal(minFee) {
				t.Fatalf("\t%s\tTest 0:\tShould charge the minimum fee, got %s.", failed, fee)
			}
			t.Logf("\t%s\tTest 0:\tShould charge the minimum fee.", success)
		}

		t.Logf("\tTest 1:\tWhen the amount is large.")
		{
			fee := database.DefaultFee(decimal.NewFromInt(1000), minFee)
			if !fee.Equal(decimal.NewFromInt(1)) {
				t.Fatalf("\t%s\tTest 1:\tShould charge a tenth of a percent, got %s.", failed, fee)
			}
			t.Logf("\t%s\tTest 1:\tShould charge a tenth of a percent.", success)
		}
	}
}

func Test_POW(t *testing.T) {
	t.Log("Given the need to mine and link blocks.")
	{
		t.Logf("\tTest 0:\tWhen mining three blocks at difficulty 2.")
		{
			blocks := mineChain(t, 3, 2)

			for i := 1; i < len(blocks); i++ {
				if blocks[i].Header.PrevBlockHash != blocks[i-1].Hash() {
					t.Fatalf("\t%s\tTest 0:\tShould link block %d to its parent.", failed, i)
				}
				if !strings.HasPrefix(blocks[i].Hash(), "0x00") {
					t.Fatalf("\t%s\tTest 0:\tShould solve block %d: %s", failed, i, blocks[i].Hash())
				}
				if err := blocks[i].ValidateBlock(blocks[i-1], nil); err != nil {
					t.Fatalf("\t%s\tTest 0:\tShould validate block %d: %v", failed, i, err)
				}
			}
			t.Logf("\t%s\tTest 0:\tShould link, solve and validate every block.", success)

			if blocks[0].Header.PrevBlockHash != database.ZeroHash || len(blocks[0].Trans) != 0 {
				t.Fatalf("\t%s\tTest 0:\tShould have an empty genesis block on the zero hash.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould have an empty genesis block on the zero hash.", success)
		}

		t.Logf("\tTest 1:\tWhen the deadline passes before a solution.")
		{
			ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
			defer cancel()

			genesis := database.NewGenesisBlock(time.Now())
			_, err := database.POW(ctx, database.POWArgs{Miner: "miner1", Difficulty: 40, PrevBlock: genesis})
			if !errors.Is(err, context.DeadlineExceeded) {
				t.Fatalf("\t%s\tTest 1:\tShould stop on the deadline, got %v.", failed, err)
			}
			t.Logf("\t%s\tTest 1:\tShould stop on the deadline.", success)
		}

		t.Logf("\tTest 2:\tWhen a block is offered against the wrong parent.")
		{
			blocks := mineChain(t, 2, 1)

			if err := blocks[2].ValidateBlock(blocks[0], nil); !errors.Is(err, database.ErrChainLinkage) {
				t.Fatalf("\t%s\tTest 2:\tShould reject the linkage, got %v.", failed, err)
			}
			t.Logf("\t%s\tTest 2:\tShould reject the linkage.", success)
		}

		t.Logf("\tTest 3:\tWhen a solved block lists the same transaction twice.")
		{
			blocks := mineChain(t, 1, 1)
			transfer := blocks[1].Trans[1]

			block, err := database.POW(context.Background(), database.POWArgs{
				Miner:      "miner1",
				Difficulty: 1,
				PrevBlock:  blocks[1],
				Trans:      []database.BlockTx{blocks[1].Trans[0], transfer, transfer},
			})
			if err != nil {
				t.Fatalf("\t%s\tTest 3:\tShould be able to mine the block: %v", failed, err)
			}

			if err := block.ValidateBlock(blocks[1], nil); !errors.Is(err, database.ErrValidation) {
				t.Fatalf("\t%s\tTest 3:\tShould reject the repeated transaction, got %v.", failed, err)
			}
			t.Logf("\t%s\tTest 3:\tShould reject the repeated transaction.", success)
		}
	}
}

func Test_TxProof(t *testing.T) {
	t.Log("Given the need to prove a transaction is recorded in a block.")
	{
		blocks := mineChain(t, 1, 1)
		block := blocks[1]

		t.Logf("\tTest 0:\tWhen proving every transaction in the block.")
		{
			for _, tx := range block.Trans {
				proof, err := block.ProveTx(tx.ID)
				if err != nil {
					t.Fatalf("\t%s\tTest 0:\tShould build a proof for %s: %v", failed, tx.ID, err)
				}

				ok, err := proof.Verify()
				if err != nil || !ok {
					t.Fatalf("\t%s\tTest 0:\tShould verify the proof for %s: %v", failed, tx.ID, err)
				}
			}
			t.Logf("\t%s\tTest 0:\tShould verify a proof for every transaction.", success)
		}

		t.Logf("\tTest 1:\tWhen the proof is checked against another root.")
		{
			proof, err := block.ProveTx(block.Trans[1].ID)
			if err != nil {
				t.Fatalf("\t%s\tTest 1:\tShould build a proof: %v", failed, err)
			}

			proof.TransRoot = database.ZeroHash
			if ok, _ := proof.Verify(); ok {
				t.Fatalf("\t%s\tTest 1:\tShould not verify against the zero hash.", failed)
			}
			t.Logf("\t%s\tTest 1:\tShould not verify against the zero hash.", success)
		}

		t.Logf("\tTest 2:\tWhen the transaction is not in the block.")
		{
			if _, err := block.ProveTx(database.ZeroHash); !errors.Is(err, database.ErrTxNotFound) {
				t.Fatalf("\t%s\tTest 2:\tShould get ErrTxNotFound, got %v.", failed, err)
			}
			if _, err := blocks[0].ProveTx(database.ZeroHash); !errors.Is(err, database.ErrTxNotFound) {
				t.Fatalf("\t%s\tTest 2:\tShould get ErrTxNotFound on the genesis block, got %v.", failed, err)
			}
			t.Logf("\t%s\tTest 2:\tShould get ErrTxNotFound.", success)
		}
	}
}

func Test_ValidateChain(t *testing.T) {
	t.Log("Given the need to audit the chain for tampering.")
	{
		t.Logf("\tTest 0:\tWhen the chain is untouched.")
		{
			blocks := mineChain(t, 4, 1)

			report, err := database.ValidateChain(context.Background(), blocks)
			if err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to validate: %v", failed, err)
			}
			if !report.Valid || report.Checked != 5 {
				t.Fatalf("\t%s\tTest 0:\tShould report a valid chain: %+v", failed, report)
			}
			t.Logf("\t%s\tTest 0:\tShould report a valid chain.", success)
		}

		t.Logf("\tTest 1:\tWhen an amount is altered inside block 2.")
		{
			blocks := mineChain(t, 4, 1)
			blocks[2].Trans[1].Amount = decimal.NewFromInt(1000)

			report, err := database.ValidateChain(context.Background(), blocks)
			if err != nil {
				t.Fatalf("\t%s\tTest 1:\tShould be able to validate: %v", failed, err)
			}
			if report.Valid || report.FirstViolation == nil {
				t.Fatalf("\t%s\tTest 1:\tShould report the chain as invalid.", failed)
			}
			t.Logf("\t%s\tTest 1:\tShould report the chain as invalid.", success)

			if report.FirstViolation.Index != 2 || !errors.Is(report.FirstViolation.Err, database.ErrProofOfWork) {
				t.Fatalf("\t%s\tTest 1:\tShould point at block 2: %+v", failed, report.FirstViolation)
			}
			t.Logf("\t%s\tTest 1:\tShould point at block 2.", success)
		}

		t.Logf("\tTest 2:\tWhen a header is altered inside block 3.")
		{
			blocks := mineChain(t, 4, 1)
			blocks[3].Header.TransRoot = database.ZeroHash

			report, err := database.ValidateChain(context.Background(), blocks)
			if err != nil {
				t.Fatalf("\t%s\tTest 2:\tShould be able to validate: %v", failed, err)
			}
			if report.Valid || report.FirstViolation.Index != 3 {
				t.Fatalf("\t%s\tTest 2:\tShould point at block 3: %+v", failed, report.FirstViolation)
			}
			t.Logf("\t%s\tTest 2:\tShould point at block 3.", success)
		}

		t.Logf("\tTest 3:\tWhen block 3 commits a transfer already in block 1.")
		{
			blocks := mineChain(t, 2, 1)

			reward, err := database.NewReward("miner1", native, decimal.NewFromInt(50))
			if err != nil {
				t.Fatalf("\t%s\tTest 3:\tShould be able to construct a reward: %v", failed, err)
			}

			block, err := database.POW(context.Background(), database.POWArgs{
				Miner:      "miner1",
				Difficulty: 1,
				PrevBlock:  blocks[2],
				Trans:      []database.BlockTx{database.NewBlockTx(reward), blocks[1].Trans[1]},
			})
			if err != nil {
				t.Fatalf("\t%s\tTest 3:\tShould be able to mine the block: %v", failed, err)
			}
			blocks = append(blocks, block)

			report, err := database.ValidateChain(context.Background(), blocks)
			if err != nil {
				t.Fatalf("\t%s\tTest 3:\tShould be able to validate: %v", failed, err)
			}
			if report.Valid || report.FirstViolation.Index != 3 || !errors.Is(report.FirstViolation.Err, database.ErrValidation) {
				t.Fatalf("\t%s\tTest 3:\tShould point at block 3: %+v", failed, report.FirstViolation)
			}
			t.Logf("\t%s\tTest 3:\tShould point at block 3.", success)
		}
	}
}

func Test_AssetDefinition(t *testing.T) {
	t.Log("Given the need to define stablecoins.")
	{
		t.Logf("\tTest 0:\tWhen the definition is complete.")
		{
			def, err := database.NewAssetDefinition("usdc", "USD Coin", "USD reserves", decimal.Zero, decimal.NewFromInt(1_000_000))
			if err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to define the asset: %v", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould be able to define the asset.", success)

			if def.Symbol != "USDC" || !def.CollateralRatio.Equal(decimal.NewFromInt(1)) {
				t.Fatalf("\t%s\tTest 0:\tShould normalize the symbol and ratio: %+v", failed, def)
			}
			t.Logf("\t%s\tTest 0:\tShould normalize the symbol and ratio.", success)
		}

		t.Logf("\tTest 1:\tWhen the definition is missing a backing reference.")
		{
			_, err := database.NewAssetDefinition("USDC", "USD Coin", "", decimal.Zero, decimal.NewFromInt(10))
			if !errors.Is(err, database.ErrValidation) {
				t.Fatalf("\t%s\tTest 1:\tShould reject the definition, got %v.", failed, err)
			}
			t.Logf("\t%s\tTest 1:\tShould reject the definition.", success)
		}
	}
}
