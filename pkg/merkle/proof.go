package merkle

import (
	"context"
	"fmt"
	"strings"

	"github.com/alphavisionmethod/alphabet-weaver-sub000/pkg/digest"
)

type InclusionProof struct {
	LeafIndex  int         `json:"leaf_index"`
	LeafHash   string      `json:"leaf_hash"`
	MerkleRoot string      `json:"merkle_root"`
	ProofPath  []ProofStep `json:"proof_path"`
}

type ProofStep struct {
	Side        string `json:"side"` // "L" or "R"
	SiblingHash string `json:"sibling_hash"`
}

// Proof returns the inclusion proof for leaf i.
func (t *MerkleTree) Proof(i int) (InclusionProof, error) {
	if i < 0 || i >= len(t.Leaves) {
		return InclusionProof{}, fmt.Errorf("merkle: leaf %d out of range [0, %d)", i, len(t.Leaves))
	}
	proof := InclusionProof{LeafIndex: i, LeafHash: t.Leaves[i], MerkleRoot: t.Root}
	idx := i
	for _, level := range t.Nodes[:len(t.Nodes)-1] {
		if idx%2 == 0 {
			sibling := level[idx]
			if idx+1 < len(level) {
				sibling = level[idx+1]
			}
			proof.ProofPath = append(proof.ProofPath, ProofStep{Side: "R", SiblingHash: sibling})
		} else {
			proof.ProofPath = append(proof.ProofPath, ProofStep{Side: "L", SiblingHash: level[idx-1]})
		}
		idx /= 2
	}
	return proof, nil
}

// VerifyInclusionProof verifies that a leaf is part of the Merkle tree.
func VerifyInclusionProof(ctx context.Context, h digest.Hasher, proof InclusionProof, expectedRoot string) (bool, error) {
	if expectedRoot != "" && proof.MerkleRoot != expectedRoot {
		return false, nil
	}

	currentHash := proof.LeafHash
	for _, step := range proof.ProofPath {
		var err error
		if step.Side == "L" {
			currentHash, err = NodeHash(ctx, h, step.SiblingHash, currentHash)
		} else {
			currentHash, err = NodeHash(ctx, h, currentHash, step.SiblingHash)
		}
		if err != nil {
			return false, err
		}
	}

	return strings.EqualFold(currentHash, proof.MerkleRoot), nil
}
