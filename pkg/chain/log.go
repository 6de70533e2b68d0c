// Package chain is the hash-chained, append-only log shared by the session
// audit ledger, the receipt book, and the block ledger.
//
// Every record is sealed as hash = H(previousHash ‖ SealBytes(record)); the
// first record links to digest.Genesis. A log may additionally carry a
// rolling window aggregate (the block ledger's Merkle root) and an attestor
// (the block ledger's signature). Both are stamped before or after sealing
// and re-checked by Verify.
package chain

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/alphavisionmethod/alphabet-weaver-sub000/pkg/digest"
)

// Link is the chain bookkeeping carried by every record.
type Link struct {
	Index    int
	PrevHash string
	Hash     string
}

// Record is implemented by the pointer type stored in a Log.
type Record[R any] interface {
	ChainLink() Link
	SetChainLink(Link)
	// SealBytes returns the bytes hashed after the previous hash. It must
	// cover every stored field except the record's own hash.
	SealBytes() ([]byte, error)
	Clone() R
}

// Window aggregates a digest per record over the most recent Size records.
type Window[R any] interface {
	Size() int
	// Leaf derives the record's leaf digest from its content.
	Leaf(ctx context.Context, r R) (string, error)
	Fold(ctx context.Context, leaves []string) (string, error)
	Stamp(r R, leaf, root string)
	Stamped(r R) (leaf, root string)
}

// Attestor signs a record once its hash is known.
type Attestor[R any] interface {
	Attest(ctx context.Context, r R, hash string) error
	Check(ctx context.Context, r R) (bool, error)
}

var (
	ErrIndexOutOfRange = errors.New("chain: index out of range")
)

// Option configures a Log.
type Option[R Record[R]] func(*Log[R])

// WithWindow attaches a rolling aggregate.
func WithWindow[R Record[R]](w Window[R]) Option[R] {
	return func(l *Log[R]) { l.window = w }
}

// WithAttestor attaches a post-seal attestation.
func WithAttestor[R Record[R]](a Attestor[R]) Option[R] {
	return func(l *Log[R]) { l.attestor = a }
}

// Log is an append-only, hash-chained sequence of records. Appends and
// verification are serialized by the log's mutex.
type Log[R Record[R]] struct {
	mu       sync.Mutex
	hasher   digest.Hasher
	window   Window[R]
	attestor Attestor[R]
	records  []R
}

// New creates an empty log.
func New[R Record[R]](h digest.Hasher, opts ...Option[R]) *Log[R] {
	if h == nil {
		h = digest.SHA256()
	}
	l := &Log[R]{hasher: h}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Hasher returns the log's hash primitive.
func (l *Log[R]) Hasher() digest.Hasher {
	return l.hasher
}

// Append links, seals and stores r, returning a copy of the stored record.
func (l *Log[R]) Append(ctx context.Context, r R) (R, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var zero R
	prev := digest.Genesis
	if n := len(l.records); n > 0 {
		prev = l.records[n-1].ChainLink().Hash
	}
	link := Link{Index: len(l.records), PrevHash: prev}
	r.SetChainLink(link)

	if l.window != nil {
		leaf, err := l.window.Leaf(ctx, r)
		if err != nil {
			return zero, fmt.Errorf("chain: leaf for record %d: %w", link.Index, err)
		}
		leaves := append(l.storedLeaves(l.window.Size()-1), leaf)
		root, err := l.window.Fold(ctx, leaves)
		if err != nil {
			return zero, fmt.Errorf("chain: fold window at %d: %w", link.Index, err)
		}
		l.window.Stamp(r, leaf, root)
	}

	hash, err := l.seal(ctx, prev, r)
	if err != nil {
		return zero, fmt.Errorf("chain: seal record %d: %w", link.Index, err)
	}
	link.Hash = hash
	r.SetChainLink(link)

	if l.attestor != nil {
		if err := l.attestor.Attest(ctx, r, hash); err != nil {
			return zero, fmt.Errorf("chain: attest record %d: %w", link.Index, err)
		}
	}

	l.records = append(l.records, r.Clone())
	return r.Clone(), nil
}

func (l *Log[R]) seal(ctx context.Context, prev string, r R) (string, error) {
	body, err := r.SealBytes()
	if err != nil {
		return "", err
	}
	buf := make([]byte, 0, len(prev)+len(body))
	buf = append(buf, prev...)
	buf = append(buf, body...)
	return l.hasher.Digest(ctx, buf)
}

// storedLeaves returns up to n of the most recent stamped leaves.
func (l *Log[R]) storedLeaves(n int) []string {
	if n <= 0 {
		return nil
	}
	start := len(l.records) - n
	if start < 0 {
		start = 0
	}
	out := make([]string, 0, n+1)
	for _, r := range l.records[start:] {
		leaf, _ := l.window.Stamped(r)
		out = append(out, leaf)
	}
	return out
}

// Verification is the result of walking a chain.
type Verification struct {
	Valid    bool   `json:"valid"`
	BrokenAt *int   `json:"brokenAt,omitempty"`
	Length   int    `json:"length"`
	Reason   string `json:"reason,omitempty"`
}

func broken(i, length int, format string, args ...interface{}) Verification {
	return Verification{
		Valid:    false,
		BrokenAt: &i,
		Length:   length,
		Reason:   fmt.Sprintf(format, args...),
	}
}

// Verify walks the chain from genesis and reports the first record whose
// position, link, aggregate, hash, or attestation does not check out.
func (l *Log[R]) Verify(ctx context.Context) (Verification, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := len(l.records)
	prev := digest.Genesis
	var leaves []string

	for i, r := range l.records {
		link := r.ChainLink()
		if link.Index != i {
			return broken(i, n, "record %d carries index %d", i, link.Index), nil
		}
		if link.PrevHash != prev {
			return broken(i, n, "record %d links to %s, expected %s", i, link.PrevHash, prev), nil
		}

		if l.window != nil {
			leaf, err := l.window.Leaf(ctx, r)
			if err != nil {
				return Verification{}, fmt.Errorf("chain: leaf for record %d: %w", i, err)
			}
			storedLeaf, storedRoot := l.window.Stamped(r)
			if leaf != storedLeaf {
				return broken(i, n, "record %d leaf digest does not match its content", i), nil
			}
			leaves = append(leaves, leaf)
			if size := l.window.Size(); len(leaves) > size {
				leaves = leaves[len(leaves)-size:]
			}
			root, err := l.window.Fold(ctx, leaves)
			if err != nil {
				return Verification{}, fmt.Errorf("chain: fold window at %d: %w", i, err)
			}
			if root != storedRoot {
				return broken(i, n, "record %d aggregate root mismatch", i), nil
			}
		}

		expected, err := l.seal(ctx, link.PrevHash, r)
		if err != nil {
			return Verification{}, fmt.Errorf("chain: seal record %d: %w", i, err)
		}
		if expected != link.Hash {
			return broken(i, n, "record %d hash mismatch", i), nil
		}

		if l.attestor != nil {
			ok, err := l.attestor.Check(ctx, r)
			if err != nil {
				return Verification{}, fmt.Errorf("chain: check attestation %d: %w", i, err)
			}
			if !ok {
				return broken(i, n, "record %d attestation invalid", i), nil
			}
		}
		prev = link.Hash
	}

	return Verification{Valid: true, Length: n}, nil
}

// Len returns the number of records.
func (l *Log[R]) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}

// Head returns the hash of the last record, or the genesis sentinel.
func (l *Log[R]) Head() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if n := len(l.records); n > 0 {
		return l.records[n-1].ChainLink().Hash
	}
	return digest.Genesis
}

// Get returns a copy of the record at index i.
func (l *Log[R]) Get(i int) (R, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var zero R
	if i < 0 || i >= len(l.records) {
		return zero, fmt.Errorf("%w: %d of %d", ErrIndexOutOfRange, i, len(l.records))
	}
	return l.records[i].Clone(), nil
}

// Entries returns copies of every record in chain order.
func (l *Log[R]) Entries() []R {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]R, len(l.records))
	for i, r := range l.records {
		out[i] = r.Clone()
	}
	return out
}

// Tamper mutates a stored record in place without resealing it. It exists
// to demonstrate and test tamper detection.
func (l *Log[R]) Tamper(i int, mutate func(R)) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if i < 0 || i >= len(l.records) {
		return fmt.Errorf("%w: %d of %d", ErrIndexOutOfRange, i, len(l.records))
	}
	mutate(l.records[i])
	return nil
}

// Load replaces the log's contents with previously exported records as-is.
// Nothing is resealed; call Verify to check what was loaded.
func (l *Log[R]) Load(records []R) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = make([]R, len(records))
	for i, r := range records {
		l.records[i] = r.Clone()
	}
}

// Reset empties the log.
func (l *Log[R]) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = nil
}
