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
	"encoding/json"

	"github.com/secure-systems-lab/go-securesystemslib/cjson"

	uptane "github.com/uptane/uptane-go"
	"github.com/uptane/uptane-go/crypto/keyutil"
)

// JSON is the canonical-JSON codec. Signatures cover the
// securesystemslib canonical form of the signed payload, so documents
// may be re-serialized freely without invalidating them.
var JSON Codec = jsonCodec{}

type jsonCodec struct{}

func (jsonCodec) MediaType() string {
	return MediaTypeJSON
}

func (jsonCodec) Encode(signed interface{}, signer *keyutil.Signer) ([]byte, error) {
	payload, err := json.Marshal(signed)
	if err != nil {
		return nil, err
	}
	canonical, err := cjson.EncodeCanonical(signed)
	if err != nil {
		return nil, err
	}
	doc := Document{
		Signed: payload,
		Signatures: []Signature{{
			KeyID:  signer.KeyID(),
			Method: signer.Method(),
			Sig:    signer.Sign(canonical),
		}},
	}
	return json.Marshal(doc)
}

func (jsonCodec) Decode(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, uptane.FormatError{Msg: "malformed signed document: " + err.Error()}
	}
	if len(doc.Signed) == 0 {
		return nil, uptane.FormatError{Msg: "signed document has no signed portion"}
	}
	if len(doc.Signatures) == 0 {
		return nil, uptane.FormatError{Msg: "signed document has no signatures"}
	}
	doc.raw = data
	doc.mediaType = MediaTypeJSON
	return &doc, nil
}

func (jsonCodec) Verify(doc *Document, key keyutil.PublicKey) error {
	canonical, err := canonicalize(doc.Signed)
	if err != nil {
		return uptane.FormatError{Msg: "signed portion is not canonicalizable: " + err.Error()}
	}
	for _, sig := range doc.Signatures {
		if sig.Method != keyutil.MethodEd25519 {
			continue
		}
		if key.Verify(canonical, sig.Sig) {
			return nil
		}
	}
	return uptane.BadSignatureError{Msg: "no signature verified under the expected key"}
}

// canonicalize re-encodes a raw JSON value in securesystemslib
// canonical form.
func canonicalize(raw json.RawMessage) ([]byte, error) {
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return cjson.EncodeCanonical(v)
}
