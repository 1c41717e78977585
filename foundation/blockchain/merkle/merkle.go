// Package merkle builds merkle trees so a single root commits to the order
// and content of a list of values, and produces inclusion proofs for them.
package merkle

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Set of errors the tree can report.
var (
	ErrNoContent = errors.New("cannot construct tree with no content")
	ErrNotFound  = errors.New("value not found in tree")
)

// Hashable represents the behavior concrete data must exhibit to be used in
// the merkle tree.
type Hashable[T any] interface {
	Hash() ([]byte, error)
	Equals(other T) bool
}

// ProofStep is one sibling hash on the path from a leaf to the root.
type ProofStep struct {
	Hash string `json:"hash"`
	Left bool   `json:"left"` // The sibling sits on the left of the path.
}

// =============================================================================

// Tree represents a merkle tree over values of some type T.
type Tree[T Hashable[T]] struct {
	values []T

	// levels[0] holds the leaf hashes and the last level holds the root. A
	// level with an odd count pairs its last node with itself.
	levels [][][]byte
}

// NewTree constructs the tree for the values in the order provided.
func NewTree[T Hashable[T]](values []T) (*Tree[T], error) {
	if len(values) == 0 {
		return nil, ErrNoContent
	}

	leafs := make([][]byte, len(values))
	for i, value := range values {
		hash, err := value.Hash()
		if err != nil {
			return nil, fmt.Errorf("hashing value %d: %w", i, err)
		}
		leafs[i] = hash
	}

	t := Tree[T]{
		values: values,
		levels: [][][]byte{leafs},
	}

	for level := leafs; len(level) > 1; {
		next := make([][]byte, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			right := level[i]
			if i+1 < len(level) {
				right = level[i+1]
			}
			next = append(next, combine(level[i], right))
		}

		t.levels = append(t.levels, next)
		level = next
	}

	return &t, nil
}

// Root returns the merkle root.
func (t *Tree[T]) Root() []byte {
	return t.levels[len(t.levels)-1][0]
}

// RootHex returns the merkle root as a 0x prefixed hex string.
func (t *Tree[T]) RootHex() string {
	return hexutil.Encode(t.Root())
}

// Values returns the values the tree was built from.
func (t *Tree[T]) Values() []T {
	return t.values
}

// Proof returns the sibling hashes needed to walk from the value's leaf up
// to the root.
func (t *Tree[T]) Proof(value T) ([]ProofStep, error) {
	idx := -1
	for i, v := range t.values {
		if v.Equals(value) {
			idx = i
			break
		}
	}

	if idx == -1 {
		return nil, ErrNotFound
	}

	proof := make([]ProofStep, 0, len(t.levels)-1)
	for _, level := range t.levels[:len(t.levels)-1] {
		sibling := idx ^ 1
		if sibling >= len(level) {
			sibling = idx
		}

		proof = append(proof, ProofStep{
			Hash: hexutil.Encode(level[sibling]),
			Left: sibling < idx,
		})
		idx /= 2
	}

	return proof, nil
}

// =============================================================================

// VerifyProof reports whether the leaf hash and proof lead to the root.
func VerifyProof(leaf []byte, proof []ProofStep, root string) (bool, error) {
	want, err := hexutil.Decode(root)
	if err != nil {
		return false, fmt.Errorf("decoding root: %w", err)
	}

	hash := leaf
	for i, step := range proof {
		sibling, err := hexutil.Decode(step.Hash)
		if err != nil {
			return false, fmt.Errorf("decoding proof step %d: %w", i, err)
		}

		switch step.Left {
		case true:
			hash = combine(sibling, hash)
		default:
			hash = combine(hash, sibling)
		}
	}

	return bytes.Equal(hash, want), nil
}

func combine(left []byte, right []byte) []byte {
	h := sha256.New()
	h.Write(left)
	h.Write(right)
	return h.Sum(nil)
}
