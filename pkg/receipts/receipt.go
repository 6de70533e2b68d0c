// Package receipts mints the immutable record of each completed execution.
// Receipts form their own hash chain, indexed from 0 with no gaps.
package receipts

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/alphavisionmethod/alphabet-weaver-sub000/pkg/canonicalize"
	"github.com/alphavisionmethod/alphabet-weaver-sub000/pkg/chain"
	"github.com/alphavisionmethod/alphabet-weaver-sub000/pkg/digest"
	"github.com/alphavisionmethod/alphabet-weaver-sub000/pkg/policy"
)

// Receipt records one approve-and-execute transition. Verified is a view
// computed by the last Book.Verify and is not covered by the hash.
type Receipt struct {
	ChainIndex   int             `json:"chainIndex"`
	Timestamp    time.Time       `json:"timestamp"`
	Category     policy.Category `json:"category"`
	ActionType   string          `json:"actionType"`
	Summary      string          `json:"summary"`
	Details      json.RawMessage `json:"details"`
	Hash         string          `json:"hash"`
	PreviousHash string          `json:"previousHash"`
	Verified     bool            `json:"verified"`
}

func (r *Receipt) ChainLink() chain.Link {
	return chain.Link{Index: r.ChainIndex, PrevHash: r.PreviousHash, Hash: r.Hash}
}

func (r *Receipt) SetChainLink(l chain.Link) {
	r.ChainIndex, r.PreviousHash, r.Hash = l.Index, l.PrevHash, l.Hash
}

func (r *Receipt) SealBytes() ([]byte, error) {
	return canonicalize.JCS(struct {
		ChainIndex   int             `json:"chainIndex"`
		Timestamp    time.Time       `json:"timestamp"`
		Category     policy.Category `json:"category"`
		ActionType   string          `json:"actionType"`
		Summary      string          `json:"summary"`
		Details      json.RawMessage `json:"details"`
		PreviousHash string          `json:"previousHash"`
	}{r.ChainIndex, r.Timestamp, r.Category, r.ActionType, r.Summary, r.Details, r.PreviousHash})
}

func (r *Receipt) Clone() *Receipt {
	c := *r
	c.Details = append(json.RawMessage(nil), r.Details...)
	return &c
}

// Book holds a session's receipts.
type Book struct {
	log   *chain.Log[*Receipt]
	clock func() time.Time

	mu sync.Mutex
	// verified counts the leading receipts that passed the last check.
	verified int
}

// NewBook creates an empty receipt book.
func NewBook(h digest.Hasher) *Book {
	return &Book{log: chain.New[*Receipt](h), clock: time.Now}
}

// WithClock overrides clock for testing.
func (b *Book) WithClock(clock func() time.Time) *Book {
	b.clock = clock
	return b
}

// Mint appends a receipt. details is stored in canonical form.
func (b *Book) Mint(ctx context.Context, category policy.Category, actionType, summary string, details interface{}) (Receipt, error) {
	raw, err := canonicalize.JCS(details)
	if err != nil {
		return Receipt{}, fmt.Errorf("receipts: canonicalize details: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	before := b.log.Len()
	stored, err := b.log.Append(ctx, &Receipt{
		Timestamp:  b.clock().UTC(),
		Category:   category,
		ActionType: actionType,
		Summary:    summary,
		Details:    raw,
	})
	if err != nil {
		return Receipt{}, fmt.Errorf("receipts: mint %s/%s: %w", category, actionType, err)
	}
	if b.verified == before {
		b.verified++
	}
	out := *stored
	out.Verified = b.verified > out.ChainIndex
	return out, nil
}

// Verify re-derives the receipt chain and refreshes every Verified flag.
func (b *Book) Verify(ctx context.Context) (chain.Verification, error) {
	v, err := b.log.Verify(ctx)
	if err != nil {
		return v, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if v.Valid {
		b.verified = v.Length
	} else {
		b.verified = *v.BrokenAt
	}
	return v, nil
}

// Receipts returns copies in chain order.
func (b *Book) Receipts() []Receipt {
	entries := b.log.Entries()
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Receipt, len(entries))
	for i, r := range entries {
		out[i] = *r
		out[i].Verified = i < b.verified
	}
	return out
}

// Len returns the number of receipts minted.
func (b *Book) Len() int {
	return b.log.Len()
}

// Tamper mutates a stored receipt without resealing it.
func (b *Book) Tamper(i int, mutate func(*Receipt)) error {
	return b.log.Tamper(i, mutate)
}

// Load replaces the book with exported receipts. Verified flags are taken
// as given until the next Verify.
func (b *Book) Load(receipts []Receipt) {
	records := make([]*Receipt, len(receipts))
	verified := 0
	for i := range receipts {
		records[i] = &receipts[i]
		if receipts[i].Verified && verified == i {
			verified++
		}
	}
	b.log.Load(records)
	b.mu.Lock()
	b.verified = verified
	b.mu.Unlock()
}
