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

package cppki

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha1"
	"crypto/x509"
	"math/big"
	"time"

	"github.com/AnotherKamila/scion/go/lib/serrors"
)

// IssuerPolicy mints AS signing certificates for the beacon server's trust
// hierarchy: given a CA certificate/key and an AS's certificate request, it
// produces the two-certificate [AS, CA] chain that scrypto.Verify walks
// (spec.md §4.2). It exists so tests can build chains without driving the
// real Certificate Server protocol, which spec.md §1 places out of scope.
type IssuerPolicy struct {
	// Validity is how long the issued AS certificate is valid for.
	Validity time.Duration
	// Certificate is the issuing CA's certificate.
	Certificate *x509.Certificate
	// Signer holds the private key authenticated by Certificate.
	Signer crypto.Signer
	// CurrentTime is the signing time. The zero value means now.
	CurrentTime time.Time
}

// IssueChain signs csr with the policy's CA key and returns the resulting
// [AS, CA] chain. csr is assumed already validated by the caller.
func (p IssuerPolicy) IssueChain(csr *x509.CertificateRequest) (CertificateChain, error) {
	now := p.CurrentTime
	if now.IsZero() {
		now = time.Now()
	}
	caVal := Validity{NotBefore: p.Certificate.NotBefore, NotAfter: p.Certificate.NotAfter}
	asVal := Validity{NotBefore: now, NotAfter: now.Add(p.Validity)}
	if !caVal.Covers(asVal) {
		return nil, serrors.New("AS certificate validity not covered by CA", "ca", caVal, "as", asVal)
	}

	serial := make([]byte, 20)
	if _, err := rand.Read(serial); err != nil {
		return nil, serrors.WrapStr("creating random serial number", err)
	}

	subject := csr.Subject
	subject.ExtraNames = subject.Names
	skid, err := SubjectKeyID(csr.PublicKey)
	if err != nil {
		return nil, serrors.WrapStr("computing subject key ID", err)
	}

	tmpl := &x509.Certificate{
		SignatureAlgorithm:    x509.ECDSAWithSHA512,
		Version:               3,
		SerialNumber:          big.NewInt(0).SetBytes(serial),
		Subject:               subject,
		NotBefore:             asVal.NotBefore,
		NotAfter:              asVal.NotAfter,
		KeyUsage:              x509.KeyUsageDigitalSignature,
		BasicConstraintsValid: false,
		SubjectKeyId:          skid,
		AuthorityKeyId:        p.Certificate.SubjectKeyId,
	}
	raw, err := x509.CreateCertificate(rand.Reader, tmpl, p.Certificate, csr.PublicKey, p.Signer)
	if err != nil {
		return nil, serrors.WrapStr("creating AS certificate", err)
	}
	as, err := x509.ParseCertificate(raw)
	if err != nil {
		return nil, serrors.WrapStr("parsing created AS certificate", err)
	}
	chain := CertificateChain{as, p.Certificate}
	if err := ValidateChain(chain); err != nil {
		return nil, serrors.WrapStr("created invalid AS certificate chain", err)
	}
	return chain, nil
}

// SubjectKeyID computes the RFC 5280 §4.2.1.2(1) subject key identifier (the
// SHA-1 hash of the marshaled public key) for pub.
func SubjectKeyID(pub crypto.PublicKey) ([]byte, error) {
	switch k := pub.(type) {
	case *ecdsa.PublicKey:
		skid := sha1.Sum(elliptic.Marshal(k.Curve, k.X, k.Y))
		return skid[:], nil
	default:
		return nil, serrors.New("unsupported public key type for subject key ID")
	}
}
