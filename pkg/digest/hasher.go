// Package digest is the one-way hash primitive behind every chain link,
// receipt, and Merkle node. Digests are lowercase hex strings.
//
// Hashing takes a context so a remote or hardware-backed implementation can
// suspend without changing callers; the in-process hashers never block.
package digest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/zeebo/blake3"
)

// Genesis is the previous-hash sentinel of the first record in every chain.
var Genesis = strings.Repeat("0", 64)

// Hasher computes a 256-bit digest.
type Hasher interface {
	Digest(ctx context.Context, data []byte) (string, error)
	Name() string
}

type sha256Hasher struct{}

// SHA256 returns the default hasher.
func SHA256() Hasher { return sha256Hasher{} }

func (sha256Hasher) Digest(ctx context.Context, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

func (sha256Hasher) Name() string { return "sha256" }

type blake3Hasher struct{}

// BLAKE3 returns a BLAKE3-256 hasher.
func BLAKE3() Hasher { return blake3Hasher{} }

func (blake3Hasher) Digest(ctx context.Context, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

func (blake3Hasher) Name() string { return "blake3" }

// ByName resolves a configured hasher name. The empty name selects SHA-256.
func ByName(name string) (Hasher, error) {
	switch strings.ToLower(name) {
	case "", "sha256", "sha-256":
		return SHA256(), nil
	case "blake3":
		return BLAKE3(), nil
	default:
		return nil, fmt.Errorf("digest: unknown hasher %q", name)
	}
}

// Concat hashes the concatenation of parts.
func Concat(ctx context.Context, h Hasher, parts ...string) (string, error) {
	var b strings.Builder
	for _, p := range parts {
		b.WriteString(p)
	}
	return h.Digest(ctx, []byte(b.String()))
}

// IsHex reports whether s looks like a 256-bit hex digest.
func IsHex(s string) bool {
	if len(s) != 64 {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}
