// Package merkle aggregates a list of hex digests into a single root by
// pairwise hashing up a binary tree. At any level an unpaired last node is
// paired with itself.
package merkle

import (
	"context"
	"fmt"

	"github.com/alphavisionmethod/alphabet-weaver-sub000/pkg/digest"
)

// DefaultWindow is how many of the most recent receipt hashes a block
// ledger folds into each block's root.
const DefaultWindow = 8

type MerkleTree struct {
	Leaves []string
	Root   string
	Nodes  [][]string // levels of node hashes, leaves first
}

// Build constructs the tree over leaves. An empty leaf set has an empty root;
// a single leaf is paired with itself like any other unpaired node.
func Build(ctx context.Context, h digest.Hasher, leaves []string) (*MerkleTree, error) {
	if len(leaves) == 0 {
		return &MerkleTree{Root: ""}, nil
	}

	tree := &MerkleTree{Leaves: append([]string(nil), leaves...)}
	currentLevel := tree.Leaves

	for len(currentLevel) > 1 || len(tree.Nodes) == 0 {
		tree.Nodes = append(tree.Nodes, currentLevel)
		next, err := buildNextLevel(ctx, h, currentLevel)
		if err != nil {
			return nil, err
		}
		currentLevel = next
	}

	tree.Root = currentLevel[0]
	tree.Nodes = append(tree.Nodes, currentLevel)
	return tree, nil
}

// Root returns only the root of the tree over leaves.
func Root(ctx context.Context, h digest.Hasher, leaves []string) (string, error) {
	tree, err := Build(ctx, h, leaves)
	if err != nil {
		return "", err
	}
	return tree.Root, nil
}

// WindowRoot returns the root over the last n leaves.
func WindowRoot(ctx context.Context, h digest.Hasher, leaves []string, n int) (string, error) {
	if n > 0 && len(leaves) > n {
		leaves = leaves[len(leaves)-n:]
	}
	return Root(ctx, h, leaves)
}

func buildNextLevel(ctx context.Context, h digest.Hasher, hashes []string) ([]string, error) {
	count := len(hashes)
	nextLevel := make([]string, 0, (count+1)/2)
	for i := 0; i < count; i += 2 {
		right := hashes[i]
		if i+1 < count {
			right = hashes[i+1]
		}
		node, err := NodeHash(ctx, h, hashes[i], right)
		if err != nil {
			return nil, fmt.Errorf("merkle: node %d: %w", i/2, err)
		}
		nextLevel = append(nextLevel, node)
	}
	return nextLevel, nil
}

// NodeHash hashes the concatenation of two child digests.
func NodeHash(ctx context.Context, h digest.Hasher, left, right string) (string, error) {
	return digest.Concat(ctx, h, left, right)
}
