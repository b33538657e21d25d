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

package keyutil

import (
	"bytes"
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	uptane "github.com/uptane/uptane-go"
)

// testKeyPair builds a deterministic keypair from a fixed seed.
func testKeyPair(t *testing.T, seedByte byte) KeyPair {
	t.Helper()
	seed := bytes.Repeat([]byte{seedByte}, ed25519.SeedSize)
	priv := ed25519.NewKeyFromSeed(seed)
	return KeyPair{
		KeyType: KeyTypeEd25519,
		KeyVal: KeyVal{
			Public:  HexBytes(priv.Public().(ed25519.PublicKey)),
			Private: HexBytes(seed),
		},
	}
}

func TestPublicKeyValidate(t *testing.T) {
	good := testKeyPair(t, 1).Public()
	if err := good.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	tests := []struct {
		name string
		key  PublicKey
	}{
		{
			name: "wrong key type",
			key:  PublicKey{KeyType: "rsa", KeyVal: good.KeyVal},
		},
		{
			name: "truncated public key",
			key:  PublicKey{KeyType: KeyTypeEd25519, KeyVal: PublicVal{Public: good.KeyVal.Public[:16]}},
		},
		{
			name: "empty",
			key:  PublicKey{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.key.Validate()
			var fe uptane.FormatError
			if !errors.As(err, &fe) {
				t.Errorf("Validate() error = %v, want FormatError", err)
			}
		})
	}
}

func TestKeyPairValidate(t *testing.T) {
	pair := testKeyPair(t, 2)
	if err := pair.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	// Private half not matching the public half must be rejected.
	other := testKeyPair(t, 3)
	mismatched := KeyPair{
		KeyType: KeyTypeEd25519,
		KeyVal: KeyVal{
			Public:  pair.KeyVal.Public,
			Private: other.KeyVal.Private,
		},
	}
	var fe uptane.FormatError
	if err := mismatched.Validate(); !errors.As(err, &fe) {
		t.Errorf("Validate() error = %v, want FormatError", err)
	}
}

func TestComputeKeyIDStable(t *testing.T) {
	key := testKeyPair(t, 4).Public()

	id1, err := ComputeKeyID(key)
	if err != nil {
		t.Fatalf("ComputeKeyID() error = %v", err)
	}
	id2, err := ComputeKeyID(key)
	if err != nil {
		t.Fatalf("ComputeKeyID() error = %v", err)
	}
	if id1 != id2 {
		t.Errorf("key ID not stable: %s != %s", id1, id2)
	}
	if len(id1) != 64 {
		t.Errorf("key ID length = %d, want 64 hex chars", len(id1))
	}

	// A stored key ID wins over derivation.
	key.KeyID = "pinned"
	got, err := key.ID()
	if err != nil {
		t.Fatalf("ID() error = %v", err)
	}
	if got != "pinned" {
		t.Errorf("ID() = %s, want pinned", got)
	}
}

func TestSignAndVerify(t *testing.T) {
	pair := testKeyPair(t, 5)
	signer, err := NewSigner(pair)
	if err != nil {
		t.Fatalf("NewSigner() error = %v", err)
	}

	message := []byte(`{"nonces":[42],"time":"2016-11-02T21:06:05Z"}`)
	sig := signer.Sign(message)

	if !pair.Public().Verify(message, sig) {
		t.Error("signature did not verify under the public half")
	}

	// Corrupting one signature byte must break verification.
	sig[0] ^= 0x01
	if pair.Public().Verify(message, sig) {
		t.Error("corrupted signature verified")
	}
	sig[0] ^= 0x01

	// A different message must not verify.
	if pair.Public().Verify([]byte("other"), sig) {
		t.Error("signature verified over the wrong message")
	}

	if signer.Method() != MethodEd25519 {
		t.Errorf("Method() = %s, want %s", signer.Method(), MethodEd25519)
	}
}

func TestHexBytesRoundTrip(t *testing.T) {
	in := HexBytes{0xde, 0xad, 0xbe, 0xef}
	data, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if string(data) != `"deadbeef"` {
		t.Errorf("Marshal() = %s, want \"deadbeef\"", data)
	}

	var out HexBytes
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if !bytes.Equal(in, out) {
		t.Errorf("round trip mismatch: %v != %v", in, out)
	}

	if err := json.Unmarshal([]byte(`"zz"`), &out); err == nil {
		t.Error("expected error for non-hex input")
	}
}

func TestReadKeyFiles(t *testing.T) {
	root := t.TempDir()
	pair := testKeyPair(t, 6)

	pairPath := filepath.Join(root, "secondary.json")
	pairData, err := json.Marshal(pair)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if err := os.WriteFile(pairPath, pairData, 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	pubPath := filepath.Join(root, "secondary.pub.json")
	pubData, err := json.Marshal(pair.Public())
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if err := os.WriteFile(pubPath, pubData, 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	gotPair, err := ReadKeyPairFile(pairPath)
	if err != nil {
		t.Fatalf("ReadKeyPairFile() error = %v", err)
	}
	if !bytes.Equal(gotPair.KeyVal.Public, pair.KeyVal.Public) {
		t.Error("loaded keypair does not match")
	}

	gotPub, err := ReadPublicKeyFile(pubPath)
	if err != nil {
		t.Fatalf("ReadPublicKeyFile() error = %v", err)
	}
	if !bytes.Equal(gotPub.KeyVal.Public, pair.KeyVal.Public) {
		t.Error("loaded public key does not match")
	}

	if _, err := ReadPublicKeyFile(filepath.Join(root, "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
}
