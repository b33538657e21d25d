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

package firmware

import (
	"encoding/json"
	"errors"
	"testing"

	uptane "github.com/uptane/uptane-go"
	"github.com/uptane/uptane-go/internal/crypto/hashutil"
)

// fileInfoFor computes a fileinfo over content with the given
// algorithms.
func fileInfoFor(t *testing.T, path string, content []byte, algorithms ...string) FileInfo {
	t.Helper()
	hashes := make(map[string]string, len(algorithms))
	for _, algorithm := range algorithms {
		digest, err := hashutil.ComputeHex(algorithm, content)
		if err != nil {
			t.Fatalf("ComputeHex(%s) error = %v", algorithm, err)
		}
		hashes[algorithm] = digest
	}
	return FileInfo{Filepath: path, Hashes: hashes, Length: int64(len(content))}
}

func TestValidate(t *testing.T) {
	content := []byte("Secondary firmware, factory installed.")
	good := fileInfoFor(t, "/secondary_firmware.txt", content, "sha256", "sha512")
	if err := good.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	tests := []struct {
		name string
		info FileInfo
	}{
		{
			name: "empty filepath",
			info: FileInfo{Hashes: good.Hashes, Length: good.Length},
		},
		{
			name: "no hashes",
			info: FileInfo{Filepath: "/f", Length: 1},
		},
		{
			name: "unsupported algorithm",
			info: FileInfo{Filepath: "/f", Hashes: map[string]string{"crc32": "00"}, Length: 1},
		},
		{
			name: "non-hex digest",
			info: FileInfo{Filepath: "/f", Hashes: map[string]string{"sha256": "zz"}, Length: 1},
		},
		{
			name: "negative length",
			info: FileInfo{Filepath: "/f", Hashes: good.Hashes, Length: -1},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.info.Validate()
			var fe uptane.FormatError
			if !errors.As(err, &fe) {
				t.Errorf("Validate() error = %v, want FormatError", err)
			}
		})
	}
}

func TestVerify(t *testing.T) {
	content := []byte("Secondary firmware, factory installed.")
	info := fileInfoFor(t, "/secondary_firmware.txt", content, "sha256", "sha512")

	if err := info.Verify(content); err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
}

func TestVerifyRejectsAnySingleBitFlip(t *testing.T) {
	content := []byte("Secondary firmware, factory installed.")
	info := fileInfoFor(t, "/secondary_firmware.txt", content, "sha256", "sha512")

	for i := range content {
		mutated := make([]byte, len(content))
		copy(mutated, content)
		mutated[i] ^= 0x01

		err := info.Verify(mutated)
		var ive uptane.ImageValidationError
		if !errors.As(err, &ive) {
			t.Fatalf("Verify() with byte %d flipped: error = %v, want ImageValidationError", i, err)
		}
	}
}

func TestVerifyRejectsWrongLength(t *testing.T) {
	content := []byte("Secondary firmware, factory installed.")
	info := fileInfoFor(t, "/secondary_firmware.txt", content, "sha256")

	var ive uptane.ImageValidationError
	if err := info.Verify(append(content, 0x00)); !errors.As(err, &ive) {
		t.Errorf("Verify() error = %v, want ImageValidationError", err)
	}
	if err := info.Verify(content[:len(content)-1]); !errors.As(err, &ive) {
		t.Errorf("Verify() error = %v, want ImageValidationError", err)
	}
}

func TestEqual(t *testing.T) {
	content := []byte("image-a")
	a := fileInfoFor(t, "/a.img", content, "sha256", "sha512")

	b := a
	if !a.Equal(b) {
		t.Error("identical fileinfos not equal")
	}

	differentPath := a
	differentPath.Filepath = "/b.img"
	if a.Equal(differentPath) {
		t.Error("fileinfos with different paths equal")
	}

	differentHash := fileInfoFor(t, "/a.img", []byte("image-b"), "sha256", "sha512")
	differentHash.Length = a.Length
	if a.Equal(differentHash) {
		t.Error("fileinfos with different digests equal")
	}

	subsetHashes := fileInfoFor(t, "/a.img", content, "sha256")
	if a.Equal(subsetHashes) {
		t.Error("fileinfos with different algorithm sets equal")
	}
}

func TestTargetECUSerial(t *testing.T) {
	target := Target{
		FileInfo: FileInfo{Filepath: "/f", Hashes: map[string]string{"sha256": "00"}, Length: 1},
		Custom: map[string]json.RawMessage{
			"ecu_serial": json.RawMessage(`"TCUdemocar"`),
		},
	}
	if got := target.ECUSerial(); got != "TCUdemocar" {
		t.Errorf("ECUSerial() = %q, want TCUdemocar", got)
	}

	target.Custom = nil
	if got := target.ECUSerial(); got != "" {
		t.Errorf("ECUSerial() = %q, want empty", got)
	}

	target.Custom = map[string]json.RawMessage{"ecu_serial": json.RawMessage(`5`)}
	if got := target.ECUSerial(); got != "" {
		t.Errorf("ECUSerial() = %q, want empty for non-string serial", got)
	}
}
