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

// Package envelope implements the signed-document structure exchanged
// with the Time Server and the Primary: a signed payload plus a list of
// signature entries. Two wire codecs are provided, canonical JSON and
// COSE_Sign1, selected by media type. Converting a document between
// codecs requires re-signing, since each codec's signature covers its
// own serialization.
package envelope

import (
	"encoding/json"
	"fmt"

	"github.com/uptane/uptane-go/crypto/keyutil"
)

// Media types of the supported codecs.
const (
	MediaTypeJSON = "application/uptane+json"
	MediaTypeCOSE = "application/cose"
)

// Document is a parsed signed document.
type Document struct {
	Signed     json.RawMessage `json:"signed"`
	Signatures []Signature     `json:"signatures"`

	// raw preserves the wire form for codecs whose signatures cover
	// more than the payload bytes.
	raw       []byte
	mediaType string
}

// MediaType returns the media type of the codec that decoded the
// document, or the empty string for documents built in memory.
func (d *Document) MediaType() string {
	return d.mediaType
}

// Signature is one signature entry of a document.
type Signature struct {
	KeyID  string           `json:"keyid"`
	Method string           `json:"method"`
	Sig    keyutil.HexBytes `json:"sig"`
}

// Codec converts between wire bytes and documents.
type Codec interface {
	// MediaType identifies the codec.
	MediaType() string

	// Encode signs the payload with signer and renders the document in
	// this codec's wire form.
	Encode(signed interface{}, signer *keyutil.Signer) ([]byte, error)

	// Decode parses wire bytes into a Document without verifying any
	// signature. A structurally malformed input yields a FormatError.
	Decode(data []byte) (*Document, error)

	// Verify checks that at least one of the document's signatures is
	// valid under key. A failure yields a BadSignatureError.
	Verify(doc *Document, key keyutil.PublicKey) error
}

var codecs = map[string]Codec{
	MediaTypeJSON: JSON,
	MediaTypeCOSE: COSE,
}

// Get returns the codec registered for mediaType.
func Get(mediaType string) (Codec, error) {
	codec, ok := codecs[mediaType]
	if !ok {
		return nil, fmt.Errorf("unsupported envelope media type %q", mediaType)
	}
	return codec, nil
}
