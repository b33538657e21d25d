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
	"encoding/json"
	"os"
)

// ReadPublicKeyFile reads a JSON public key record from path.
func ReadPublicKeyFile(path string) (PublicKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return PublicKey{}, err
	}
	var key PublicKey
	if err := json.Unmarshal(data, &key); err != nil {
		return PublicKey{}, err
	}
	if err := key.Validate(); err != nil {
		return PublicKey{}, err
	}
	return key, nil
}

// ReadKeyPairFile reads a JSON keypair record from path.
func ReadKeyPairFile(path string) (KeyPair, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return KeyPair{}, err
	}
	var pair KeyPair
	if err := json.Unmarshal(data, &pair); err != nil {
		return KeyPair{}, err
	}
	if err := pair.Validate(); err != nil {
		return KeyPair{}, err
	}
	return pair, nil
}
