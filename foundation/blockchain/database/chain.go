package database

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Violation identifies the first block that breaks the chain rules.
type Violation struct {
	Index  uint64 `json:"index"`
	Reason string `json:"reason"`
	Err    error  `json:"-"`
}

// ChainReport is the result of checking a run of blocks.
type ChainReport struct {
	Valid          bool       `json:"valid"`
	Checked        int        `json:"checked"`
	FirstViolation *Violation `json:"first_violation,omitempty"`
}

// ValidateChain replays the linkage and proof of work checks over the
// ordered blocks and rejects a transaction committed twice. The first block is treated as the anchor: it is only
// checked for integrity, unless it is the genesis block which must also
// link to the zero hash. Blocks are checked concurrently and the violation
// with the lowest index is reported.
func ValidateChain(ctx context.Context, blocks []Block) (ChainReport, error) {
	if len(blocks) == 0 {
		return ChainReport{Valid: true}, nil
	}

	results := make([]error, len(blocks))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))

	for i := range blocks {
		i := i
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			switch {
			case i > 0:
				results[i] = blocks[i].ValidateBlock(blocks[i-1], nil)
			case blocks[i].Header.Index == 0:
				results[i] = validateGenesis(blocks[i])
			default:
				results[i] = blocks[i].CheckIntegrity(nil)
			}

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return ChainReport{}, err
	}

	// A transaction may only be committed once across the whole run.
	seen := make(map[string]struct{})
	for i, block := range blocks {
		for _, tx := range block.Trans {
			if tx.Kind == KindReward {
				continue
			}
			if _, exists := seen[tx.ID]; exists && results[i] == nil {
				results[i] = fmt.Errorf("%w: transaction %s is committed in an earlier block", ErrValidation, tx.ID)
			}
			seen[tx.ID] = struct{}{}
		}
	}

	report := ChainReport{
		Valid:   true,
		Checked: len(blocks),
	}

	for i, err := range results {
		if err != nil {
			report.Valid = false
			report.FirstViolation = &Violation{
				Index:  blocks[i].Header.Index,
				Reason: err.Error(),
				Err:    err,
			}
			break
		}
	}

	return report, nil
}

// validateGenesis checks the fixed properties of block 0.
func validateGenesis(block Block) error {
	if block.Header.PrevBlockHash != ZeroHash {
		return ErrChainLinkage
	}

	if len(block.Trans) != 0 {
		return ErrProofOfWork
	}

	return block.CheckIntegrity(nil)
}
