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

// Package manifest builds and signs ECU version manifests, the
// attestation of an ECU's current firmware state reported upstream for
// audit.
package manifest

import (
	"encoding/json"
	"time"

	uptane "github.com/uptane/uptane-go"
	"github.com/uptane/uptane-go/crypto/keyutil"
	"github.com/uptane/uptane-go/envelope"
	"github.com/uptane/uptane-go/firmware"
)

// ECUVersionManifest is the signed portion of an ECU version report.
type ECUVersionManifest struct {
	ECUSerial string `json:"ecu_serial"`

	// InstalledImage is the fileinfo of the firmware currently running
	// on the ECU.
	InstalledImage firmware.FileInfo `json:"installed_image"`

	// AttacksDetected carries the client's accumulated attack report,
	// empty when nothing suspicious was observed.
	AttacksDetected string `json:"attacks_detected"`

	// TimeserverTime is the most recent validated timeserver time;
	// PreviousTimeserverTime the one before it.
	TimeserverTime         time.Time `json:"timeserver_time"`
	PreviousTimeserverTime time.Time `json:"previous_timeserver_time"`
}

// Sign renders the manifest as a signed document in codec's wire form,
// with exactly one signature by signer. Each call produces a fresh
// document; a manifest is never patched after signing.
func Sign(m *ECUVersionManifest, codec envelope.Codec, signer *keyutil.Signer) ([]byte, error) {
	return codec.Encode(m, signer)
}

// Decode parses a wire manifest with codec. No signature is checked.
func Decode(codec envelope.Codec, data []byte) (*envelope.Document, *ECUVersionManifest, error) {
	doc, err := codec.Decode(data)
	if err != nil {
		return nil, nil, err
	}
	var m ECUVersionManifest
	if err := json.Unmarshal(doc.Signed, &m); err != nil {
		return nil, nil, uptane.FormatError{Msg: "malformed ECU manifest: " + err.Error()}
	}
	if m.ECUSerial == "" {
		return nil, nil, uptane.FormatError{Field: "ecu_serial", Msg: "must be a non-empty string"}
	}
	return doc, &m, nil
}
