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

package envelope

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"

	"github.com/veraison/go-cose"

	uptane "github.com/uptane/uptane-go"
	"github.com/uptane/uptane-go/crypto/keyutil"
)

// COSE is the COSE_Sign1 codec. The payload is the JSON encoding of the
// signed portion; the signature covers the COSE Sig_structure, so a
// document converted from another codec must be re-signed.
var COSE Codec = coseCodec{}

type coseCodec struct{}

func (coseCodec) MediaType() string {
	return MediaTypeCOSE
}

func (coseCodec) Encode(signed interface{}, signer *keyutil.Signer) ([]byte, error) {
	payload, err := json.Marshal(signed)
	if err != nil {
		return nil, err
	}
	cs, err := cose.NewSigner(cose.AlgorithmEdDSA, signer.Private())
	if err != nil {
		return nil, err
	}
	msg := cose.NewSign1Message()
	msg.Headers.Protected[cose.HeaderLabelAlgorithm] = cose.AlgorithmEdDSA
	msg.Headers.Unprotected[cose.HeaderLabelKeyID] = []byte(signer.KeyID())
	msg.Payload = payload
	if err := msg.Sign(rand.Reader, nil, cs); err != nil {
		return nil, err
	}
	return msg.MarshalCBOR()
}

func (coseCodec) Decode(data []byte) (*Document, error) {
	var msg cose.Sign1Message
	if err := msg.UnmarshalCBOR(data); err != nil {
		return nil, uptane.FormatError{Msg: "malformed COSE_Sign1 document: " + err.Error()}
	}
	if len(msg.Payload) == 0 {
		return nil, uptane.FormatError{Msg: "COSE_Sign1 document has no payload"}
	}
	var keyID string
	if kid, ok := msg.Headers.Unprotected[cose.HeaderLabelKeyID].([]byte); ok {
		keyID = string(kid)
	}
	return &Document{
		Signed: msg.Payload,
		Signatures: []Signature{{
			KeyID:  keyID,
			Method: keyutil.MethodEd25519,
			Sig:    msg.Signature,
		}},
		raw:       data,
		mediaType: MediaTypeCOSE,
	}, nil
}

func (coseCodec) Verify(doc *Document, key keyutil.PublicKey) error {
	if doc.raw == nil {
		return uptane.BadSignatureError{Msg: "COSE document is missing its wire form"}
	}
	var msg cose.Sign1Message
	if err := msg.UnmarshalCBOR(doc.raw); err != nil {
		return uptane.FormatError{Msg: "malformed COSE_Sign1 document: " + err.Error()}
	}
	verifier, err := cose.NewVerifier(cose.AlgorithmEdDSA, ed25519.PublicKey(key.KeyVal.Public))
	if err != nil {
		return uptane.BadSignatureError{Msg: err.Error()}
	}
	if err := msg.Verify(nil, verifier); err != nil {
		return uptane.BadSignatureError{Msg: "COSE signature did not verify: " + err.Error()}
	}
	return nil
}
