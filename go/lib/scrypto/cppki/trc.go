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

	"github.com/AnotherKamila/scion/go/lib/addr"
)

// TRC is the Trust Root Configuration anchoring a set of core ADs for one
// ISD at a given version (spec.md §3, §4.2).
type TRC struct {
	ISD     addr.ISD
	Version uint64
	CoreADs []addr.IsdAs
}

// Contains reports whether ia is listed as a core AD in the TRC.
func (t *TRC) Contains(ia addr.IsdAs) bool {
	for _, core := range t.CoreADs {
		if core.Equal(ia) {
			return true
		}
	}
	return false
}

// CertificateChain is an AS certificate together with the CA certificate
// that issued it, in that order ([0] is the AS leaf, [1] is the issuing CA).
type CertificateChain []*x509.Certificate

// AS returns the leaf (subject) certificate.
func (c CertificateChain) AS() *x509.Certificate {
	if len(c) == 0 {
		return nil
	}
	return c[0]
}

// CA returns the issuing certificate.
func (c CertificateChain) CA() *x509.Certificate {
	if len(c) < 2 {
		return nil
	}
	return c[1]
}
