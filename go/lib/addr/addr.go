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

// Package addr defines the ISD/AD address primitives that identify an
// Autonomous Domain inside an Isolation Domain.
package addr

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/AnotherKamila/scion/go/lib/serrors"
)

// ISD identifies an Isolation Domain.
type ISD uint16

// AD identifies an Autonomous Domain within an ISD.
type AD uint32

// IfId identifies a router interface, unique within an AD.
type IfId uint16

// IsdAs is the (ISD, AD) pair that globally identifies an Autonomous Domain.
type IsdAs struct {
	ISD ISD
	AD  AD
}

// IsZero reports whether ia is the zero value.
func (ia IsdAs) IsZero() bool {
	return ia == IsdAs{}
}

// Equal reports whether ia and o identify the same AD.
func (ia IsdAs) Equal(o IsdAs) bool {
	return ia.ISD == o.ISD && ia.AD == o.AD
}

func (ia IsdAs) String() string {
	return fmt.Sprintf("%d-%d", ia.ISD, ia.AD)
}

// IsdAsFromString parses the "isd-ad" textual form produced by String.
func IsdAsFromString(s string) (IsdAs, error) {
	parts := strings.SplitN(s, "-", 2)
	if len(parts) != 2 {
		return IsdAs{}, serrors.New("malformed ISD-AD string", "value", s)
	}
	isd, err := strconv.ParseUint(parts[0], 10, 16)
	if err != nil {
		return IsdAs{}, serrors.WrapStr("parsing ISD", err, "value", s)
	}
	ad, err := strconv.ParseUint(parts[1], 10, 32)
	if err != nil {
		return IsdAs{}, serrors.WrapStr("parsing AD", err, "value", s)
	}
	return IsdAs{ISD: ISD(isd), AD: AD(ad)}, nil
}
