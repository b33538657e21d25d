// Copyright The Uptane Project Authors.
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package keyutil models the ed25519 key records used throughout the
// client: pinned verification keys, the ECU signing key, and the key
// IDs that bind signatures to them.
package keyutil

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/secure-systems-lab/go-securesystemslib/cjson"

	uptane "github.com/uptane/uptane-go"
)

const (
	// KeyTypeEd25519 is the only key type the client accepts.
	KeyTypeEd25519 = "ed25519"

	// MethodEd25519 is the signature method recorded in envelopes.
	MethodEd25519 = "ed25519"
)

// HexBytes is a byte slice that marshals to and from lowercase hex.
type HexBytes []byte

// MarshalJSON implements json.Marshaler.
func (b HexBytes) MarshalJSON() ([]byte, error) {
	return json.Marshal(hex.EncodeToString(b))
}

// UnmarshalJSON implements json.Unmarshaler.
func (b *HexBytes) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	decoded, err := hex.DecodeString(s)
	if err != nil {
		return err
	}
	*b = decoded
	return nil
}

func (b HexBytes) String() string {
	return hex.EncodeToString(b)
}

// PublicKey is a public key record as it appears in metadata and in
// envelope signature entries.
type PublicKey struct {
	KeyType string    `json:"keytype"`
	KeyID   string    `json:"keyid,omitempty"`
	KeyVal  PublicVal `json:"keyval"`
}

// PublicVal holds the public half of a key record.
type PublicVal struct {
	Public HexBytes `json:"public"`
}

// Validate checks the record against the public-key schema.
func (k PublicKey) Validate() error {
	if k.KeyType != KeyTypeEd25519 {
		return uptane.FormatError{Field: "keytype", Msg: "unsupported key type " + k.KeyType}
	}
	if len(k.KeyVal.Public) != ed25519.PublicKeySize {
		return uptane.FormatError{Field: "keyval.public", Msg: "not a 32-byte ed25519 public key"}
	}
	return nil
}

// ID returns the key's identifier: the stored KeyID when present,
// otherwise the sha256 of the canonical JSON of the public record.
func (k PublicKey) ID() (string, error) {
	if k.KeyID != "" {
		return k.KeyID, nil
	}
	return ComputeKeyID(k)
}

// Verify reports whether sig is a valid ed25519 signature by k over
// message.
func (k PublicKey) Verify(message, sig []byte) bool {
	if len(k.KeyVal.Public) != ed25519.PublicKeySize || len(sig) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(k.KeyVal.Public), message, sig)
}

// ComputeKeyID derives the identifier of a public key record. The KeyID
// field itself is excluded from the derivation so that stored and
// derived records agree.
func ComputeKeyID(k PublicKey) (string, error) {
	canonical, err := cjson.EncodeCanonical(PublicKey{
		KeyType: k.KeyType,
		KeyVal:  k.KeyVal,
	})
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// KeyPair carries both halves of a signing key.
type KeyPair struct {
	KeyType string `json:"keytype"`
	KeyID   string `json:"keyid,omitempty"`
	KeyVal  KeyVal `json:"keyval"`
}

// KeyVal holds both halves of a keypair's material.
type KeyVal struct {
	Public  HexBytes `json:"public"`
	Private HexBytes `json:"private,omitempty"`
}

// Public returns the public record of the pair.
func (k KeyPair) Public() PublicKey {
	return PublicKey{
		KeyType: k.KeyType,
		KeyID:   k.KeyID,
		KeyVal:  PublicVal{Public: k.KeyVal.Public},
	}
}

// Validate checks the record against the keypair schema: a valid public
// record plus private material that corresponds to it.
func (k KeyPair) Validate() error {
	if err := k.Public().Validate(); err != nil {
		return err
	}
	if len(k.KeyVal.Private) != ed25519.SeedSize && len(k.KeyVal.Private) != ed25519.PrivateKeySize {
		return uptane.FormatError{Field: "keyval.private", Msg: "not an ed25519 private key or seed"}
	}
	priv := k.privateKey()
	derived := priv.Public().(ed25519.PublicKey)
	if !derived.Equal(ed25519.PublicKey(k.KeyVal.Public)) {
		return uptane.FormatError{Field: "keyval", Msg: "public and private halves do not correspond"}
	}
	return nil
}

func (k KeyPair) privateKey() ed25519.PrivateKey {
	if len(k.KeyVal.Private) == ed25519.SeedSize {
		return ed25519.NewKeyFromSeed(k.KeyVal.Private)
	}
	return ed25519.PrivateKey(k.KeyVal.Private)
}

// Signer signs envelope payloads with a validated keypair.
type Signer struct {
	priv  ed25519.PrivateKey
	keyID string
}

// NewSigner validates pair and returns a Signer for it.
func NewSigner(pair KeyPair) (*Signer, error) {
	if err := pair.Validate(); err != nil {
		return nil, err
	}
	keyID, err := pair.Public().ID()
	if err != nil {
		return nil, err
	}
	return &Signer{priv: pair.privateKey(), keyID: keyID}, nil
}

// Sign returns the ed25519 signature over message.
func (s *Signer) Sign(message []byte) []byte {
	return ed25519.Sign(s.priv, message)
}

// KeyID returns the identifier of the signing key.
func (s *Signer) KeyID() string {
	return s.keyID
}

// Method returns the signature method name recorded alongside
// signatures produced by this signer.
func (s *Signer) Method() string {
	return MethodEd25519
}

// Private exposes the underlying private key for codecs that sign
// through crypto.Signer.
func (s *Signer) Private() ed25519.PrivateKey {
	return s.priv
}
