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
	"crypto/x509"
	"time"

	"github.com/AnotherKamila/scion/go/lib/serrors"
)

// Validity is a [NotBefore, NotAfter] validity window.
type Validity struct {
	NotBefore time.Time
	NotAfter  time.Time
}

// Covers reports whether v fully contains o.
func (v Validity) Covers(o Validity) bool {
	return !v.NotBefore.After(o.NotBefore) && !v.NotAfter.Before(o.NotAfter)
}

// ValidateChain checks that chain is a two-certificate [AS, CA] chain where
// the AS certificate is signed by, and has a validity covered by, the CA
// certificate.
func ValidateChain(chain []*x509.Certificate) error {
	if len(chain) != 2 {
		return serrors.New("chain must have exactly 2 certificates", "len", len(chain))
	}
	as, ca := chain[0], chain[1]
	if err := as.CheckSignatureFrom(ca); err != nil {
		return serrors.WrapStr("AS certificate not signed by CA", err)
	}
	asVal := Validity{NotBefore: as.NotBefore, NotAfter: as.NotAfter}
	caVal := Validity{NotBefore: ca.NotBefore, NotAfter: ca.NotAfter}
	if !caVal.Covers(asVal) {
		return serrors.New("AS certificate validity not covered by CA", "ca", caVal, "as", asVal)
	}
	return nil
}
