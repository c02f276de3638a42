package merkle

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

// ErrEmptyTree is returned when a commitment is requested over zero leaves.
// Callers treat an empty snapshot as "no work this week" and must not build.
var ErrEmptyTree = errors.New("merkle: empty leaf set")

// Leaf derives the per-wallet commitment hash from the tightly packed
// encoding of (address, uint256 weightA, uint256 weightB). The 20+32+32 byte
// layout is an external verifier contract; any deviation produces proofs the
// on-chain side silently rejects.
func Leaf(addr common.Address, weightA, weightB *uint256.Int) common.Hash {
	if weightA == nil {
		weightA = uint256.NewInt(0)
	}
	if weightB == nil {
		weightB = uint256.NewInt(0)
	}
	packed := make([]byte, 0, common.AddressLength+64)
	packed = append(packed, addr.Bytes()...)
	a := weightA.Bytes32()
	b := weightB.Bytes32()
	packed = append(packed, a[:]...)
	packed = append(packed, b[:]...)
	return common.BytesToHash(ethcrypto.Keccak256(packed))
}

// Tree is a sorted-pair keccak256 commitment over an ordered leaf set. An
// unpaired trailing node at any level is promoted to the next level
// unchanged; this odd-node rule is pinned to the external verifier and must
// not change.
type Tree struct {
	levels [][]common.Hash
}

// NewTree builds the commitment tree over the supplied leaf hashes. Leaf
// order is preserved so that proof indexes line up with snapshot order.
func NewTree(leaves []common.Hash) (*Tree, error) {
	if len(leaves) == 0 {
		return nil, ErrEmptyTree
	}
	level := make([]common.Hash, len(leaves))
	copy(level, leaves)
	levels := [][]common.Hash{level}
	for len(level) > 1 {
		next := make([]common.Hash, 0, (len(level)+1)/2)
		for i := 0; i+1 < len(level); i += 2 {
			next = append(next, hashPair(level[i], level[i+1]))
		}
		if len(level)%2 == 1 {
			next = append(next, level[len(level)-1])
		}
		levels = append(levels, next)
		level = next
	}
	return &Tree{levels: levels}, nil
}

// Root returns the tree root.
func (t *Tree) Root() common.Hash {
	top := t.levels[len(t.levels)-1]
	return top[0]
}

// Len returns the number of leaves committed to.
func (t *Tree) Len() int {
	return len(t.levels[0])
}

// Proof returns the ordered sibling path from the leaf at index to the root.
func (t *Tree) Proof(index int) ([]common.Hash, error) {
	if index < 0 || index >= t.Len() {
		return nil, fmt.Errorf("merkle: leaf index %d out of range [0,%d)", index, t.Len())
	}
	proof := make([]common.Hash, 0, len(t.levels)-1)
	for _, level := range t.levels[:len(t.levels)-1] {
		sibling := index ^ 1
		if sibling < len(level) {
			proof = append(proof, level[sibling])
		}
		index /= 2
	}
	return proof, nil
}

// Verify replays a proof against the root using the same sorted-pair rule as
// the external verifier.
func Verify(root, leaf common.Hash, proof []common.Hash) bool {
	computed := leaf
	for _, sibling := range proof {
		computed = hashPair(computed, sibling)
	}
	return computed == root
}

// hashPair hashes two nodes after canonical byte ordering so the parent is
// independent of left/right position.
func hashPair(a, b common.Hash) common.Hash {
	if bytes.Compare(a[:], b[:]) > 0 {
		a, b = b, a
	}
	return common.BytesToHash(ethcrypto.Keccak256(a[:], b[:]))
}
