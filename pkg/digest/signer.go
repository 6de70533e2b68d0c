package digest

import (
	"context"
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// Signer attests a block hash.
type Signer interface {
	Sign(ctx context.Context, blockHash string) (string, error)
	Verify(ctx context.Context, blockHash, signature string) (bool, error)
}

// PlaceholderPrefix is mixed into placeholder signatures.
const PlaceholderPrefix = "helm-sim:placeholder-signing-key:"

// placeholder "signs" by hashing a fixed, public prefix with the block hash.
// Anyone can produce it, so it proves nothing about who wrote the block; it
// only gives the ledger a signature-shaped field that changes with the hash.
type placeholder struct {
	h Hasher
}

// Placeholder returns the demonstration signer. It is NOT a signature.
func Placeholder(h Hasher) Signer {
	return placeholder{h: h}
}

func (p placeholder) Sign(ctx context.Context, blockHash string) (string, error) {
	return Concat(ctx, p.h, PlaceholderPrefix, blockHash)
}

func (p placeholder) Verify(ctx context.Context, blockHash, signature string) (bool, error) {
	want, err := p.Sign(ctx, blockHash)
	if err != nil {
		return false, err
	}
	return want == signature, nil
}

// Ed25519Signer signs block hashes with a real key.
type Ed25519Signer struct {
	privKey ed25519.PrivateKey
	pubKey  ed25519.PublicKey
}

// NewEd25519Signer derives a signing key from seed material with HKDF so a
// seeded session can reproduce its key.
func NewEd25519Signer(seed []byte, info string) (*Ed25519Signer, error) {
	if len(seed) == 0 {
		return nil, fmt.Errorf("digest: empty signer seed")
	}
	reader := hkdf.New(sha256.New, seed, []byte("helm-sim-block-signer"), []byte(info))
	keySeed := make([]byte, ed25519.SeedSize)
	if _, err := io.ReadFull(reader, keySeed); err != nil {
		return nil, fmt.Errorf("digest: derive signer key: %w", err)
	}
	priv := ed25519.NewKeyFromSeed(keySeed)
	return &Ed25519Signer{
		privKey: priv,
		pubKey:  priv.Public().(ed25519.PublicKey),
	}, nil
}

func (s *Ed25519Signer) Sign(ctx context.Context, blockHash string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return hex.EncodeToString(ed25519.Sign(s.privKey, []byte(blockHash))), nil
}

func (s *Ed25519Signer) Verify(ctx context.Context, blockHash, signature string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	sig, err := hex.DecodeString(signature)
	if err != nil {
		return false, nil
	}
	return ed25519.Verify(s.pubKey, []byte(blockHash), sig), nil
}

// PublicKey returns the hex-encoded verification key.
func (s *Ed25519Signer) PublicKey() string {
	return hex.EncodeToString(s.pubKey)
}
