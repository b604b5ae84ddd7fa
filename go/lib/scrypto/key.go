// Copyright 2020 Anapaya Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package scrypto

import (
	"crypto/ecdsa"
	"crypto/x509"
	"encoding/pem"
	"io/ioutil"

	"github.com/AnotherKamila/scion/go/lib/serrors"
)

// LoadPrivateKey reads a PEM-encoded EC private key from path (spec.md §6:
// "Signing key: PEM-like base64 blob"). It is loaded once at startup and
// held for the process lifetime (spec.md §4.2).
func LoadPrivateKey(path string) (*ecdsa.PrivateKey, error) {
	raw, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, serrors.WrapStr("reading signing key file", err, "path", path)
	}
	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, serrors.New("signing key file is not PEM-encoded", "path", path)
	}
	key, err := x509.ParseECPrivateKey(block.Bytes)
	if err != nil {
		return nil, serrors.WrapStr("parsing EC private key", err, "path", path)
	}
	return key, nil
}
