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

// Package crypto_testutil provides small test-only constructors for the
// signing keys and trust stores the beacon server's tests need, so each
// test package doesn't reimplement ECDSA key generation and temp-dir
// trust-store setup.
package crypto_testutil

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"testing"

	"github.com/AnotherKamila/scion/go/lib/trust"
)

// MustGenerateECDSAKey generates a fresh P-256 key, failing the test on
// error.
func MustGenerateECDSAKey(t *testing.T) *ecdsa.PrivateKey {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generating test ECDSA key: %v", err)
	}
	return key
}

// MustNewTrustStore returns a trust.Store rooted at a fresh temporary
// directory scoped to the test.
func MustNewTrustStore(t *testing.T) *trust.Store {
	t.Helper()
	store, err := trust.New(t.TempDir())
	if err != nil {
		t.Fatalf("creating test trust store: %v", err)
	}
	return store
}
