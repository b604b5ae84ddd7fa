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

// Package pathpolicy is the Path Policy (spec.md §4.3): a parsed document
// supplying the Path Store's weights, ranges, and set-size limits.
package pathpolicy

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/iancoleman/strcase"
	"github.com/xeipuuv/gojsonschema"

	"github.com/AnotherKamila/scion/go/lib/addr"
	"github.com/AnotherKamila/scion/go/lib/log"
	"go.uber.org/zap"
)

// WeightKeys are the property names the fidelity function (spec.md §4.4)
// recognizes.
var WeightKeys = []string{
	"PeerLinks", "HopsLength", "Disjointness", "LastSentTime", "LastSeenTime",
	"DelayTime", "GuaranteedBandwidth", "AvailableBandwidth", "TotalBandwidth",
}

// Range is an inclusive [Lo, Hi] property range.
type Range struct {
	Lo int
	Hi int
}

// Policy is a parsed path policy document.
type Policy struct {
	BestSetSize       int
	CandidatesSetSize int
	HistoryLimit      int
	UpdateAfterNumber int
	UpdateAfterTime   int
	UnwantedADs       map[addr.IsdAs]struct{}
	PropertyRanges    map[string]Range
	PropertyWeights   map[string]float64
}

// String renders a human-readable summary of the policy, for operational
// debugging (ported from the original's PathPolicy.__str__).
func (p *Policy) String() string {
	return fmt.Sprintf(
		"PathPolicy{BestSetSize=%d CandidatesSetSize=%d HistoryLimit=%d "+
			"UnwantedADs=%d PropertyRanges=%d PropertyWeights=%d}",
		p.BestSetSize, p.CandidatesSetSize, p.HistoryLimit,
		len(p.UnwantedADs), len(p.PropertyRanges), len(p.PropertyWeights),
	)
}

// Default returns the zero-value-safe default policy: generous limits, all
// weights zero (a fidelity of exactly 0 for everything until configured).
func Default() *Policy {
	weights := make(map[string]float64, len(WeightKeys))
	for _, k := range WeightKeys {
		weights[k] = 0
	}
	return &Policy{
		BestSetSize:       5,
		CandidatesSetSize: 600,
		HistoryLimit:      0,
		UnwantedADs:       map[addr.IsdAs]struct{}{},
		PropertyRanges:    map[string]Range{},
		PropertyWeights:   weights,
	}
}

// document is the on-disk JSON shape, matching the original's
// CamelCase/"isd-ad,isd-ad"/"lo-hi" conventions.
type document struct {
	BestSetSize       int               `json:"BestSetSize"`
	CandidatesSetSize int               `json:"CandidatesSetSize"`
	HistoryLimit      int               `json:"HistoryLimit"`
	UpdateAfterNumber int               `json:"UpdateAfterNumber"`
	UpdateAfterTime   int               `json:"UpdateAfterTime"`
	UnwantedADs       string            `json:"UnwantedADs"`
	PropertyRanges    map[string]string `json:"PropertyRanges"`
	PropertyWeights   map[string]float64 `json:"PropertyWeights"`
}

const schema = `{
  "type": "object",
  "required": ["BestSetSize", "CandidatesSetSize", "PropertyWeights"],
  "properties": {
    "BestSetSize": {"type": "integer"},
    "CandidatesSetSize": {"type": "integer"},
    "HistoryLimit": {"type": "integer"},
    "UpdateAfterNumber": {"type": "integer"},
    "UpdateAfterTime": {"type": "integer"},
    "UnwantedADs": {"type": "string"},
    "PropertyRanges": {"type": "object"},
    "PropertyWeights": {"type": "object"}
  }
}`

// Parse parses raw as a path policy document. On any malformed input, it
// logs the error and returns Default(), per spec.md §4.3 ("malformed
// documents cause the policy to retain defaults; the error is reported but
// not fatal").
func Parse(raw []byte) *Policy {
	if err := validate(raw); err != nil {
		log.Error("path policy failed schema validation, using defaults", zap.Error(err))
		return Default()
	}
	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		log.Error("path policy JSON format error, using defaults", zap.Error(err))
		return Default()
	}
	p := Default()
	p.BestSetSize = doc.BestSetSize
	p.CandidatesSetSize = doc.CandidatesSetSize
	p.HistoryLimit = doc.HistoryLimit
	p.UpdateAfterNumber = doc.UpdateAfterNumber
	p.UpdateAfterTime = doc.UpdateAfterTime
	if doc.UnwantedADs != "" {
		for _, tok := range strings.Split(doc.UnwantedADs, ",") {
			ia, err := addr.IsdAsFromString(strings.TrimSpace(tok))
			if err != nil {
				log.Error("unwanted AD entry malformed, skipping", zap.String("value", tok), zap.Error(err))
				continue
			}
			p.UnwantedADs[ia] = struct{}{}
		}
	}
	for k, v := range doc.PropertyRanges {
		lo, hi, err := parseRange(v)
		if err != nil {
			log.Error("property range malformed, skipping", zap.String("key", k), zap.Error(err))
			continue
		}
		p.PropertyRanges[canonicalKey(k)] = Range{Lo: lo, Hi: hi}
	}
	for k, v := range doc.PropertyWeights {
		p.PropertyWeights[canonicalKey(k)] = v
	}
	return p
}

// canonicalKey normalizes a policy document's weight/range key (which may
// be written in snake_case or already in the fidelity function's
// CamelCase, e.g. "peer_links" or "PeerLinks") to the canonical key used by
// update_fidelity.
func canonicalKey(k string) string {
	camel := strcase.ToCamel(k)
	for _, known := range WeightKeys {
		if strings.EqualFold(known, camel) {
			return known
		}
	}
	return camel
}

func parseRange(s string) (int, int, error) {
	parts := strings.SplitN(s, "-", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("expected lo-hi, got %q", s)
	}
	var lo, hi int
	if _, err := fmt.Sscanf(parts[0], "%d", &lo); err != nil {
		return 0, 0, err
	}
	if _, err := fmt.Sscanf(parts[1], "%d", &hi); err != nil {
		return 0, 0, err
	}
	return lo, hi, nil
}

func validate(raw []byte) error {
	schemaLoader := gojsonschema.NewStringLoader(schema)
	docLoader := gojsonschema.NewBytesLoader(raw)
	result, err := gojsonschema.Validate(schemaLoader, docLoader)
	if err != nil {
		return err
	}
	if !result.Valid() {
		var msgs []string
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("%s", strings.Join(msgs, "; "))
	}
	return nil
}
