// Package canonicalize provides RFC 8785 (JSON Canonicalization Scheme)
// serialization so that ledger hashes do not depend on the order in which a
// record's fields or map keys were built.
package canonicalize

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/gowebpki/jcs"
	"golang.org/x/text/unicode/norm"
)

// JCS returns the canonical JSON representation of v.
//
// Object keys are sorted recursively, arrays keep their order, HTML
// characters are not escaped, and every string (keys included) is NFC
// normalised so that visually identical text hashes identically.
func JCS(v interface{}) ([]byte, error) {
	// Marshal first so struct tags and custom marshalers are honoured, then
	// rebuild a generic tree to normalise strings before the JCS transform.
	intermediate, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("jcs: pre-marshal failed: %w", err)
	}

	var generic interface{}
	decoder := json.NewDecoder(bytes.NewReader(intermediate))
	decoder.UseNumber()
	if err := decoder.Decode(&generic); err != nil {
		return nil, fmt.Errorf("jcs: intermediate decode failed: %w", err)
	}

	generic = normalize(generic)

	// The transform only accepts an object or array at the top level, so
	// bare primitives travel inside a one-element array.
	_, isObject := generic.(map[string]interface{})
	_, isArray := generic.([]interface{})
	wrapped := !isObject && !isArray
	if wrapped {
		generic = []interface{}{generic}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(generic); err != nil {
		return nil, fmt.Errorf("jcs: re-encode failed: %w", err)
	}

	out, err := jcs.Transform(bytes.TrimSuffix(buf.Bytes(), []byte{'\n'}))
	if err != nil {
		return nil, fmt.Errorf("jcs: transform failed: %w", err)
	}
	if wrapped {
		out = out[1 : len(out)-1]
	}
	return out, nil
}

// Canonicalize returns the canonical form of v as a string.
func Canonicalize(v interface{}) (string, error) {
	data, err := JCS(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// JCSString is an alias of Canonicalize kept for callers that think in JCS terms.
func JCSString(v interface{}) (string, error) {
	return Canonicalize(v)
}

// CanonicalHash returns the SHA-256 hex digest of the canonical JSON representation of v.
func CanonicalHash(v interface{}) (string, error) {
	b, err := JCS(v)
	if err != nil {
		return "", err
	}
	return HashBytes(b), nil
}

// HashBytes computes SHA-256 hash of raw bytes and returns hex string
func HashBytes(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}

func normalize(v interface{}) interface{} {
	switch t := v.(type) {
	case string:
		return norm.NFC.String(t)
	case []interface{}:
		for i := range t {
			t[i] = normalize(t[i])
		}
		return t
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			out[norm.NFC.String(k)] = normalize(val)
		}
		return out
	default:
		return v
	}
}
