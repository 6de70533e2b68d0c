// Package blockledger is the investor-facing block chain. Each block
// carries the digest of its payload, a rolling Merkle root over the most
// recent payload digests, and a signature over its hash:
//
//	blockHash = H(previousHash ‖ receiptHash ‖ blockNumber ‖ merkleRoot)
//
// The default signer is digest.Placeholder, which proves nothing about who
// produced a block.
package blockledger

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/alphavisionmethod/alphabet-weaver-sub000/pkg/canonicalize"
	"github.com/alphavisionmethod/alphabet-weaver-sub000/pkg/chain"
	"github.com/alphavisionmethod/alphabet-weaver-sub000/pkg/digest"
	"github.com/alphavisionmethod/alphabet-weaver-sub000/pkg/merkle"
)

// Block is one ledger entry.
type Block struct {
	BlockNumber  int             `json:"blockNumber"`
	BlockHash    string          `json:"blockHash"`
	PreviousHash string          `json:"previousHash"`
	ReceiptHash  string          `json:"receiptHash"`
	MerkleRoot   string          `json:"merkleRoot"`
	CreatedAt    time.Time       `json:"createdAt"`
	Signature    string          `json:"signature"`
	EventType    string          `json:"eventType"`
	Payload      json.RawMessage `json:"payload"`
}

func (b *Block) ChainLink() chain.Link {
	return chain.Link{Index: b.BlockNumber, PrevHash: b.PreviousHash, Hash: b.BlockHash}
}

func (b *Block) SetChainLink(l chain.Link) {
	b.BlockNumber, b.PreviousHash, b.BlockHash = l.Index, l.PrevHash, l.Hash
}

// SealBytes is receiptHash ‖ blockNumber ‖ merkleRoot; the chain prepends
// the previous hash.
func (b *Block) SealBytes() ([]byte, error) {
	return []byte(b.ReceiptHash + strconv.Itoa(b.BlockNumber) + b.MerkleRoot), nil
}

func (b *Block) Clone() *Block {
	c := *b
	c.Payload = append(json.RawMessage(nil), b.Payload...)
	return &c
}

// receiptBody is what receiptHash commits to.
type receiptBody struct {
	EventType string          `json:"eventType"`
	CreatedAt time.Time       `json:"createdAt"`
	Data      json.RawMessage `json:"data"`
}

// merkleWindow derives each block's receipt hash and folds the last size of
// them into the block's Merkle root.
type merkleWindow struct {
	hasher digest.Hasher
	size   int
}

func (w merkleWindow) Size() int { return w.size }

func (w merkleWindow) Leaf(ctx context.Context, b *Block) (string, error) {
	body, err := canonicalize.JCS(receiptBody{EventType: b.EventType, CreatedAt: b.CreatedAt, Data: b.Payload})
	if err != nil {
		return "", err
	}
	return w.hasher.Digest(ctx, body)
}

func (w merkleWindow) Fold(ctx context.Context, leaves []string) (string, error) {
	return merkle.WindowRoot(ctx, w.hasher, leaves, w.size)
}

func (w merkleWindow) Stamp(b *Block, leaf, root string) {
	b.ReceiptHash, b.MerkleRoot = leaf, root
}

func (w merkleWindow) Stamped(b *Block) (string, string) {
	return b.ReceiptHash, b.MerkleRoot
}

type signatureAttestor struct {
	signer digest.Signer
}

func (a signatureAttestor) Attest(ctx context.Context, b *Block, hash string) error {
	sig, err := a.signer.Sign(ctx, hash)
	if err != nil {
		return err
	}
	b.Signature = sig
	return nil
}

func (a signatureAttestor) Check(ctx context.Context, b *Block) (bool, error) {
	return a.signer.Verify(ctx, b.BlockHash, b.Signature)
}

// Verification is the result of Ledger.Verify.
type Verification struct {
	Valid    bool   `json:"valid"`
	BrokenAt *int   `json:"brokenAt,omitempty"`
	Blocks   int    `json:"blocks"`
	Reason   string `json:"reason,omitempty"`
}

// Ledger is an append-only block chain.
type Ledger struct {
	log    *chain.Log[*Block]
	hasher digest.Hasher
	window int
	clock  func() time.Time
	logger *slog.Logger
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithWindow sets how many receipt hashes the Merkle root spans.
func WithWindow(n int) Option {
	return func(l *Ledger) { l.window = n }
}

func WithClock(clock func() time.Time) Option {
	return func(l *Ledger) { l.clock = clock }
}

func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) { l.logger = logger }
}

// New creates an empty ledger. A nil signer selects the placeholder.
func New(h digest.Hasher, signer digest.Signer, opts ...Option) *Ledger {
	if h == nil {
		h = digest.SHA256()
	}
	if signer == nil {
		signer = digest.Placeholder(h)
	}
	l := &Ledger{
		hasher: h,
		window: merkle.DefaultWindow,
		clock:  time.Now,
		logger: slog.Default().With("component", "blockledger"),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.window <= 0 {
		l.window = merkle.DefaultWindow
	}
	l.log = chain.New[*Block](h,
		chain.WithWindow[*Block](merkleWindow{hasher: h, size: l.window}),
		chain.WithAttestor[*Block](signatureAttestor{signer: signer}),
	)
	return l
}

// AppendBlock records one event. data is stored in canonical form.
func (l *Ledger) AppendBlock(ctx context.Context, eventType string, data interface{}) (Block, error) {
	payload, err := canonicalize.JCS(data)
	if err != nil {
		return Block{}, fmt.Errorf("blockledger: canonicalize %s payload: %w", eventType, err)
	}
	b, err := l.log.Append(ctx, &Block{
		CreatedAt: l.clock().UTC(),
		EventType: eventType,
		Payload:   payload,
	})
	if err != nil {
		return Block{}, fmt.Errorf("blockledger: append %s: %w", eventType, err)
	}
	l.logger.DebugContext(ctx, "block appended", "block", b.BlockNumber, "event_type", eventType, "hash", b.BlockHash)
	return *b, nil
}

// Verify recomputes every block from genesis.
func (l *Ledger) Verify(ctx context.Context) (Verification, error) {
	v, err := l.log.Verify(ctx)
	if err != nil {
		return Verification{}, fmt.Errorf("blockledger: %w", err)
	}
	if !v.Valid {
		l.logger.ErrorContext(ctx, "block ledger integrity failure", "broken_at", *v.BrokenAt, "reason", v.Reason)
	}
	return Verification{Valid: v.Valid, BrokenAt: v.BrokenAt, Blocks: v.Length, Reason: v.Reason}, nil
}

// Blocks returns copies in chain order.
func (l *Ledger) Blocks() []Block {
	entries := l.log.Entries()
	out := make([]Block, len(entries))
	for i, b := range entries {
		out[i] = *b
	}
	return out
}

func (l *Ledger) Len() int {
	return l.log.Len()
}

// Window returns the Merkle window size.
func (l *Ledger) Window() int {
	return l.window
}

func (l *Ledger) Hasher() digest.Hasher {
	return l.hasher
}

// Tamper mutates a stored block without resealing it.
func (l *Ledger) Tamper(i int, mutate func(*Block)) error {
	return l.log.Tamper(i, mutate)
}

// Reset discards every block.
func (l *Ledger) Reset() {
	l.log.Reset()
}

// Proof returns an inclusion proof for the receipt hash of block i within
// the Merkle root stamped on that block.
func (l *Ledger) Proof(ctx context.Context, i int) (merkle.InclusionProof, error) {
	blocks := l.Blocks()
	if i < 0 || i >= len(blocks) {
		return merkle.InclusionProof{}, fmt.Errorf("%w: %d of %d", chain.ErrIndexOutOfRange, i, len(blocks))
	}
	start := i + 1 - l.window
	if start < 0 {
		start = 0
	}
	leaves := make([]string, 0, i+1-start)
	for _, b := range blocks[start : i+1] {
		leaves = append(leaves, b.ReceiptHash)
	}
	tree, err := merkle.Build(ctx, l.hasher, leaves)
	if err != nil {
		return merkle.InclusionProof{}, err
	}
	return tree.Proof(len(leaves) - 1)
}
