package core

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Hash represents a cryptographic hash
type Hash string

// NewHash creates a new hash from data
func NewHash(data []byte) Hash {
	sum := sha256.Sum256(data)
	return Hash(hex.EncodeToString(sum[:]))
}

// String returns the string representation
func (h Hash) String() string {
	return string(h)
}

// IsEmpty checks if the hash is empty
func (h Hash) IsEmpty() bool {
	return h == ""
}

// Equals checks if two hashes are equal
func (h Hash) Equals(other Hash) bool {
	return h == other
}

// Domain-specific hash types
type (
	// CircuitFingerprint identifies a circuit's exact contents; equal
	// fingerprints mean byte-identical canonical serializations.
	CircuitFingerprint Hash
	// PatternDigest identifies an attention map's exact contents.
	PatternDigest Hash
)

// String conversions
func (h CircuitFingerprint) String() string { return Hash(h).String() }
func (h PatternDigest) String() string      { return Hash(h).String() }

// Hash computation helpers

// CanonicalFloat renders a float64 in the shortest round-trippable form
// so canonical serializations are stable across runs and platforms.
func CanonicalFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// ComputeKeyedHash hashes a string-keyed map of serialized values in
// sorted key order. Map iteration order never leaks into the digest.
func ComputeKeyedHash(fields map[string]string) Hash {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var data strings.Builder
	for _, key := range keys {
		data.WriteString(key)
		data.WriteString("=")
		data.WriteString(fields[key])
		data.WriteString(";")
	}

	return NewHash([]byte(data.String()))
}

// ComputePatternDigest hashes a layer-keyed set of pre-serialized
// tensor sections in ascending layer order.
func ComputePatternDigest(sections map[int]string) PatternDigest {
	layers := make([]int, 0, len(sections))
	for l := range sections {
		layers = append(layers, l)
	}
	sort.Ints(layers)

	var data strings.Builder
	for _, layer := range layers {
		data.WriteString(fmt.Sprintf("L%d:", layer))
		data.WriteString(sections[layer])
	}

	return PatternDigest(NewHash([]byte(data.String())))
}
