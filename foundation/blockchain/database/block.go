package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cadcoin/blockchain/foundation/blockchain/merkle"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Set of errors returned when working with blocks.
var (
	ErrChainLinkage = errors.New("chain linkage violation")
	ErrProofOfWork  = errors.New("proof of work invalid")
	ErrTxNotFound   = errors.New("transaction not found")
)

// =============================================================================

// BlockHeader represents common information required for each block.
type BlockHeader struct {
	Index         uint64  `json:"index"`           // Position of the block in the chain, genesis is 0.
	PrevBlockHash string  `json:"prev_block_hash"` // Hash of the previous block in the chain.
	TimeStamp     uint64  `json:"timestamp"`       // Time the block was mined in milliseconds.
	Nonce         uint64  `json:"nonce"`           // Value identified to solve the hash solution.
	Difficulty    uint16  `json:"difficulty"`      // Number of leading 0's needed to solve the hash solution.
	Miner         Address `json:"miner"`           // The account receiving the reward and fees.
	TransRoot     string  `json:"trans_root"`      // Hash of the ordered transaction hashes.
}

// Block represents a group of transactions batched together.
type Block struct {
	Header BlockHeader
	Trans  []BlockTx
}

// NewGenesisBlock constructs the first block of the chain. It carries no
// transactions and links to the zero hash.
func NewGenesisBlock(date time.Time) Block {
	return Block{
		Header: BlockHeader{
			Index:         0,
			PrevBlockHash: ZeroHash,
			TimeStamp:     uint64(date.UTC().UnixMilli()),
			TransRoot:     TransRoot(nil),
		},
	}
}

// POWArgs represents the set of arguments required to run POW.
type POWArgs struct {
	Miner      Address
	Difficulty uint16
	PrevBlock  Block
	Trans      []BlockTx
	EvHandler  func(v string, args ...any)
}

// POW constructs a new Block and performs the work to find a nonce that
// solves the cryptographic POW puzzle.
func POW(ctx context.Context, args POWArgs) (Block, error) {
	ev := args.EvHandler
	if ev == nil {
		ev = func(v string, args ...any) {}
	}

	// The clock can be behind the parent when blocks arrive quickly.
	ts := uint64(time.Now().UTC().UnixMilli())
	if ts < args.PrevBlock.Header.TimeStamp {
		ts = args.PrevBlock.Header.TimeStamp
	}

	nb := Block{
		Header: BlockHeader{
			Index:         args.PrevBlock.Header.Index + 1,
			PrevBlockHash: args.PrevBlock.Hash(),
			TimeStamp:     ts,
			Nonce:         0, // Will be identified by the POW algorithm.
			Difficulty:    args.Difficulty,
			Miner:         args.Miner,
			TransRoot:     TransRoot(args.Trans),
		},
		Trans: args.Trans,
	}

	if err := nb.performPOW(ctx, ev); err != nil {
		return Block{}, err
	}

	return nb, nil
}

// performPOW does the work of mining to find a valid hash for a specified
// block. Pointer semantics are being used since a nonce is being discovered.
func (b *Block) performPOW(ctx context.Context, ev func(v string, args ...any)) error {
	ev("database: PerformPOW: MINING: started: blk[%d]: difficulty[%d]", b.Header.Index, b.Header.Difficulty)
	defer ev("database: PerformPOW: MINING: completed")

	for _, tx := range b.Trans {
		ev("database: PerformPOW: MINING: tx[%s]", tx)
	}

	var attempts uint64
	for {
		attempts++
		if attempts%1_000_000 == 0 {
			ev("database: PerformPOW: MINING: attempts[%d]", attempts)
		}

		// Did we timeout trying to solve the problem.
		if ctx.Err() != nil {
			ev("database: PerformPOW: MINING: CANCELLED")
			return ctx.Err()
		}

		hash := b.Hash()
		if !isHashSolved(b.Header.Difficulty, hash) {
			b.Header.Nonce++
			continue
		}

		// A solution found after the deadline is still discarded.
		if ctx.Err() != nil {
			ev("database: PerformPOW: MINING: CANCELLED")
			return ctx.Err()
		}

		ev("database: PerformPOW: MINING: SOLVED: prevBlk[%s]: newBlk[%s]", b.Header.PrevBlockHash, hash)
		ev("database: PerformPOW: MINING: attempts[%d]", attempts)

		return nil
	}
}

// Hash returns the unique hash for the Block. Only the header is hashed,
// the transactions are covered by the TransRoot.
func (b Block) Hash() string {
	return Hash(b.Header)
}

// ValidateBlock takes a block and validates it to be the next block after
// the specified parent.
func (b Block) ValidateBlock(previousBlock Block, evHandler func(v string, args ...any)) error {
	if evHandler == nil {
		evHandler = func(v string, args ...any) {}
	}

	evHandler("database: ValidateBlock: validate: blk[%d]: check: block number is the next number", b.Header.Index)

	nextIndex := previousBlock.Header.Index + 1
	if b.Header.Index != nextIndex {
		return fmt.Errorf("%w: this block is not the next number, got %d, exp %d", ErrChainLinkage, b.Header.Index, nextIndex)
	}

	evHandler("database: ValidateBlock: validate: blk[%d]: check: parent hash does match parent block", b.Header.Index)

	if prevHash := previousBlock.Hash(); b.Header.PrevBlockHash != prevHash {
		return fmt.Errorf("%w: parent block hash doesn't match our known parent, got %s, exp %s", ErrChainLinkage, b.Header.PrevBlockHash, prevHash)
	}

	evHandler("database: ValidateBlock: validate: blk[%d]: check: block's timestamp is not before parent block's timestamp", b.Header.Index)

	if b.Header.TimeStamp < previousBlock.Header.TimeStamp {
		parentTime := time.UnixMilli(int64(previousBlock.Header.TimeStamp))
		blockTime := time.UnixMilli(int64(b.Header.TimeStamp))
		return fmt.Errorf("%w: block timestamp is before parent block, parent %s, block %s", ErrChainLinkage, parentTime, blockTime)
	}

	return b.CheckIntegrity(evHandler)
}

// CheckIntegrity recomputes the hashes held by the block and checks the
// proof of work. A transaction may only be listed once. It does not need the
// parent block.
func (b Block) CheckIntegrity(evHandler func(v string, args ...any)) error {
	if evHandler == nil {
		evHandler = func(v string, args ...any) {}
	}

	evHandler("database: CheckIntegrity: validate: blk[%d]: check: transaction hashes match content and are unique", b.Header.Index)

	seen := make(map[string]struct{}, len(b.Trans))
	for i, tx := range b.Trans {
		if exp := tx.Tx.Hash(); tx.ID != exp {
			return fmt.Errorf("%w: transaction %d hash mismatch, got %s, exp %s", ErrProofOfWork, i, tx.ID, exp)
		}

		if _, exists := seen[tx.ID]; exists {
			return fmt.Errorf("%w: transaction %s appears more than once", ErrValidation, tx.ID)
		}
		seen[tx.ID] = struct{}{}
	}

	evHandler("database: CheckIntegrity: validate: blk[%d]: check: trans root does match transactions", b.Header.Index)

	if root := TransRoot(b.Trans); b.Header.TransRoot != root {
		return fmt.Errorf("%w: trans root does not match transactions, got %s, exp %s", ErrProofOfWork, b.Header.TransRoot, root)
	}

	evHandler("database: CheckIntegrity: validate: blk[%d]: check: block hash has been solved", b.Header.Index)

	if hash := b.Hash(); !isHashSolved(b.Header.Difficulty, hash) {
		return fmt.Errorf("%w: %s does not meet difficulty %d", ErrProofOfWork, hash, b.Header.Difficulty)
	}

	return nil
}

// =============================================================================

// TransRoot returns the merkle root over the ordered transactions.
func TransRoot(trans []BlockTx) string {
	tree, err := transTree(trans)
	if err != nil {
		return ZeroHash
	}

	return tree.RootHex()
}

// TxProof shows a transaction is recorded in a block without handing over
// every other transaction in it.
type TxProof struct {
	Index     uint64             `json:"index"`
	TxID      string             `json:"tx_hash"`
	TransRoot string             `json:"trans_root"`
	Proof     []merkle.ProofStep `json:"proof"`
}

// ProveTx builds the inclusion proof for the transaction in the block.
func (b Block) ProveTx(id string) (TxProof, error) {
	tree, err := transTree(b.Trans)
	if err != nil {
		return TxProof{}, fmt.Errorf("%w: block %d has no transactions", ErrTxNotFound, b.Header.Index)
	}

	proof, err := tree.Proof(txLeaf{BlockTx{ID: id}})
	if err != nil {
		return TxProof{}, fmt.Errorf("%w: %s in block %d", ErrTxNotFound, id, b.Header.Index)
	}

	tp := TxProof{
		Index:     b.Header.Index,
		TxID:      id,
		TransRoot: b.Header.TransRoot,
		Proof:     proof,
	}

	return tp, nil
}

// Verify reports whether the proof leads to the transaction root.
func (tp TxProof) Verify() (bool, error) {
	leaf, err := hexutil.Decode(tp.TxID)
	if err != nil {
		return false, fmt.Errorf("%w: tx hash: %s", ErrValidation, err)
	}

	return merkle.VerifyProof(leaf, tp.Proof, tp.TransRoot)
}

// txLeaf lets a transaction sit in a merkle tree keyed by its identity.
type txLeaf struct {
	BlockTx
}

func (l txLeaf) Hash() ([]byte, error) {
	return hexutil.Decode(l.ID)
}

func (l txLeaf) Equals(other txLeaf) bool {
	return l.ID == other.ID
}

func transTree(trans []BlockTx) (*merkle.Tree[txLeaf], error) {
	leafs := make([]txLeaf, len(trans))
	for i, tx := range trans {
		leafs[i] = txLeaf{tx}
	}

	return merkle.NewTree(leafs)
}

// isHashSolved checks the hash to make sure it complies with the POW rules.
// We need to match a difficulty number of leading 0's after the 0x prefix.
func isHashSolved(difficulty uint16, hash string) bool {
	const prefix = "0x"
	const hexLength = 64

	if len(hash) != len(prefix)+hexLength || !strings.HasPrefix(hash, prefix) {
		return false
	}

	if int(difficulty) > hexLength {
		return false
	}

	return strings.Count(hash[len(prefix):len(prefix)+int(difficulty)], "0") == int(difficulty)
}

// =============================================================================

// BlockData represents what is written to storage.
type BlockData struct {
	Hash   string      `json:"hash"`
	Header BlockHeader `json:"block"`
	Trans  []BlockTx   `json:"trans"`
}

// NewBlockData constructs the value to serialize to storage.
func NewBlockData(block Block) BlockData {
	return BlockData{
		Hash:   block.Hash(),
		Header: block.Header,
		Trans:  block.Trans,
	}
}

// ToBlock converts a BlockData into a Block. No validation is performed so
// tampered data can still be loaded and reported on.
func ToBlock(blockData BlockData) Block {
	return Block{
		Header: blockData.Header,
		Trans:  blockData.Trans,
	}
}
