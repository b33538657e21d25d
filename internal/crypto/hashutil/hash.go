// Package hashutil provides digest computation by registry algorithm name.
package hashutil

import (
	_ "crypto/sha256"
	_ "crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"hash"

	"github.com/opencontainers/go-digest"
	"golang.org/x/crypto/sha3"
)

// New returns a new hash for the named algorithm. Algorithm names are
// the lowercase identifiers used in repository metadata, e.g. "sha256",
// "sha512", "sha3-256".
func New(algorithm string) (hash.Hash, error) {
	if algorithm == "sha3-256" {
		return sha3.New256(), nil
	}
	alg := digest.Algorithm(algorithm)
	if !alg.Available() {
		return nil, fmt.Errorf("unsupported hash algorithm %q", algorithm)
	}
	return alg.Hash(), nil
}

// Supported reports whether the named algorithm can be computed.
func Supported(algorithm string) bool {
	if algorithm == "sha3-256" {
		return true
	}
	return digest.Algorithm(algorithm).Available()
}

// ComputeHex computes the lowercase hex digest of message under the
// named algorithm.
func ComputeHex(algorithm string, message []byte) (string, error) {
	h, err := New(algorithm)
	if err != nil {
		return "", err
	}
	if _, err := h.Write(message); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// VerifyHex computes the digest of message under the named algorithm
// and compares it to the expected hex digest in constant time.
func VerifyHex(algorithm, expected string, message []byte) (bool, error) {
	got, err := ComputeHex(algorithm, message)
	if err != nil {
		return false, err
	}
	if len(got) != len(expected) {
		return false, nil
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(expected)) == 1, nil
}
