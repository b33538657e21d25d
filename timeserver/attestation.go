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

// Package timeserver parses and verifies signed time attestations. A
// valid attestation is a live answer to a specific nonce this client
// sent; it is the only source of trusted time on a device without a
// reliable clock of its own.
package timeserver

import (
	"encoding/json"
	"time"

	uptane "github.com/uptane/uptane-go"
	"github.com/uptane/uptane-go/crypto/keyutil"
	"github.com/uptane/uptane-go/envelope"
)

// Attestation is the signed portion of a time attestation: the current
// time as the Time Server sees it, bound to the nonces it is answering.
type Attestation struct {
	Nonces []uint32  `json:"nonces"`
	Time   time.Time `json:"time"`
}

// Decode parses a wire attestation with codec. No signature is checked.
func Decode(codec envelope.Codec, data []byte) (*envelope.Document, *Attestation, error) {
	doc, err := codec.Decode(data)
	if err != nil {
		return nil, nil, err
	}
	var att Attestation
	if err := json.Unmarshal(doc.Signed, &att); err != nil {
		return nil, nil, uptane.FormatError{Msg: "malformed time attestation: " + err.Error()}
	}
	if len(att.Nonces) == 0 {
		return nil, nil, uptane.FormatError{Field: "nonces", Msg: "attestation carries no nonces"}
	}
	if att.Time.IsZero() {
		return nil, nil, uptane.FormatError{Field: "time", Msg: "attestation carries no time"}
	}
	return doc, &att, nil
}

// Verify checks the attestation's signature under the timeserver key
// and its freshness against the nonce this client last sent. Signature
// first: a nonce check on an unauthenticated statement proves nothing.
func Verify(codec envelope.Codec, doc *envelope.Document, att *Attestation, key keyutil.PublicKey, nonce uint32) error {
	if err := codec.Verify(doc, key); err != nil {
		return err
	}
	for _, n := range att.Nonces {
		if n == nonce {
			return nil
		}
	}
	return uptane.BadTimeAttestationError{
		Msg: "attestation does not list the nonce this client sent; it may be stale, replayed, or misdirected",
	}
}
