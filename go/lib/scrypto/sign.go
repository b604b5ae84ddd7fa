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

// Package scrypto is the Crypto Service (spec.md §4.2): it signs AD
// markings with the local private key and verifies a PCB signature against
// a certificate chain anchored in a TRC.
package scrypto

import (
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/sha256"

	"github.com/AnotherKamila/scion/go/lib/addr"
	"github.com/AnotherKamila/scion/go/lib/log"
	"github.com/AnotherKamila/scion/go/lib/scrypto/cppki"
	"github.com/AnotherKamila/scion/go/lib/serrors"
	"go.uber.org/zap"
)

// Sign signs data with priv and returns the ASN.1 DER-encoded signature.
func Sign(data []byte, priv *ecdsa.PrivateKey) ([]byte, error) {
	if priv == nil {
		return nil, serrors.New("no signing key loaded")
	}
	h := sha256.Sum256(data)
	sig, err := ecdsa.SignASN1(rand.Reader, priv, h[:])
	if err != nil {
		return nil, serrors.WrapStr("signing data", err)
	}
	return sig, nil
}

// Verify verifies that sig is a valid signature over data made by subject,
// whose certificate chain must validate up to a core AD listed in trc at
// trcVersion. It never panics: any chain/anchor/signature mismatch results
// in a false return, never an error.
func Verify(
	data, sig []byte,
	subject addr.IsdAs,
	chain cppki.CertificateChain,
	trc *cppki.TRC,
	trcVersion uint64,
) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			log.Warn("recovered from panic during signature verification",
				zap.Any("panic", r), zap.Stringer("subject", subject))
			ok = false
		}
	}()
	if trc == nil || trc.Version != trcVersion {
		return false
	}
	as, ca := chain.AS(), chain.CA()
	if as == nil || ca == nil {
		return false
	}
	if err := cppki.ValidateChain(chain); err != nil {
		return false
	}
	issuer, err := addr.IsdAsFromString(ca.Subject.CommonName)
	if err != nil || !trc.Contains(issuer) {
		return false
	}
	asSubject, err := addr.IsdAsFromString(as.Subject.CommonName)
	if err != nil || !asSubject.Equal(subject) {
		return false
	}
	pub, ok := as.PublicKey.(*ecdsa.PublicKey)
	if !ok {
		return false
	}
	h := sha256.Sum256(data)
	return ecdsa.VerifyASN1(pub, h[:], sig)
}
