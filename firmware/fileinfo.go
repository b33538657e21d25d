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

// Package firmware models firmware integrity metadata: the fileinfo of
// an installed or assigned image, and the byte-level validation of a
// candidate image against it.
package firmware

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	uptane "github.com/uptane/uptane-go"
	"github.com/uptane/uptane-go/internal/crypto/hashutil"
)

// FileInfo describes one firmware image: its logical path, its digests
// by algorithm name, and its exact length in bytes.
type FileInfo struct {
	Filepath string            `json:"filepath"`
	Hashes   map[string]string `json:"hashes"`
	Length   int64             `json:"length"`
}

// Validate checks the fileinfo schema: a non-empty path, at least one
// hex digest under a computable algorithm, and a non-negative length.
func (f FileInfo) Validate() error {
	if f.Filepath == "" {
		return uptane.FormatError{Field: "filepath", Msg: "must be a non-empty string"}
	}
	if len(f.Hashes) == 0 {
		return uptane.FormatError{Field: "hashes", Msg: "at least one digest is required"}
	}
	for algorithm, digest := range f.Hashes {
		if !hashutil.Supported(algorithm) {
			return uptane.FormatError{Field: "hashes", Msg: fmt.Sprintf("unsupported algorithm %q", algorithm)}
		}
		if _, err := hex.DecodeString(digest); err != nil {
			return uptane.FormatError{Field: "hashes", Msg: fmt.Sprintf("digest for %s is not hex", algorithm)}
		}
	}
	if f.Length < 0 {
		return uptane.FormatError{Field: "length", Msg: "must be non-negative"}
	}
	return nil
}

// Verify checks candidate image bytes against the fileinfo: every
// configured digest must match and the length must match exactly.
// It fails closed on the first mismatch and never mutates f.
func (f FileInfo) Verify(content []byte) error {
	if int64(len(content)) != f.Length {
		return uptane.ImageValidationError{
			Filepath: f.Filepath,
			Msg:      fmt.Sprintf("length is %d, expected %d", len(content), f.Length),
		}
	}
	if len(f.Hashes) == 0 {
		return uptane.ImageValidationError{Filepath: f.Filepath, Msg: "no digests to verify against"}
	}
	for algorithm, expected := range f.Hashes {
		ok, err := hashutil.VerifyHex(algorithm, expected, content)
		if err != nil {
			return uptane.ImageValidationError{Filepath: f.Filepath, Msg: err.Error()}
		}
		if !ok {
			return uptane.ImageValidationError{
				Filepath: f.Filepath,
				Msg:      algorithm + " digest mismatch",
			}
		}
	}
	return nil
}

// Equal reports whether two fileinfos agree on path, length, and every
// digest. Both sides must carry the same algorithm set: a digest
// present on one side only counts as disagreement.
func (f FileInfo) Equal(other FileInfo) bool {
	if f.Filepath != other.Filepath || f.Length != other.Length {
		return false
	}
	if len(f.Hashes) != len(other.Hashes) {
		return false
	}
	for algorithm, digest := range f.Hashes {
		if other.Hashes[algorithm] != digest {
			return false
		}
	}
	return true
}

// Target is a repository target: a fileinfo plus the repository's
// opaque per-target custom fields.
type Target struct {
	FileInfo
	Custom map[string]json.RawMessage `json:"custom,omitempty"`
}

// ECUSerial returns the ECU serial this target is assigned to, per the
// Director's custom field, or the empty string when unassigned.
func (t Target) ECUSerial() string {
	raw, ok := t.Custom["ecu_serial"]
	if !ok {
		return ""
	}
	var serial string
	if err := json.Unmarshal(raw, &serial); err != nil {
		return ""
	}
	return serial
}
