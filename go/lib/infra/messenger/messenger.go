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

// Package messenger is the beacon server's view of the dispatcher/socket
// layer, which spec.md §1 treats as an external collaborator: "the
// dispatcher / socket layer that delivers and sends raw packets." Messenger
// is the interface the pipeline sends through; Packet/PacketType and the
// message bodies are the wire-level vocabulary of spec.md §6.
package messenger

import (
	"context"
	"net"

	"github.com/AnotherKamila/scion/go/lib/addr"
	"github.com/AnotherKamila/scion/go/lib/ctrl/seg"
)

// PacketType classifies an inbound/outbound packet (spec.md §6).
type PacketType uint8

const (
	IfidReq PacketType = iota
	IfidRep
	Beacon
	CertReqLocal
	CertRep
	TrcReqLocal
	TrcRep
	PathRec
)

func (t PacketType) String() string {
	switch t {
	case IfidReq:
		return "IFID_REQ"
	case IfidRep:
		return "IFID_REP"
	case Beacon:
		return "BEACON"
	case CertReqLocal:
		return "CERT_REQ_LOCAL"
	case CertRep:
		return "CERT_REP"
	case TrcReqLocal:
		return "TRC_REQ_LOCAL"
	case TrcRep:
		return "TRC_REP"
	case PathRec:
		return "PATH_REC"
	default:
		return "UNKNOWN"
	}
}

// CertRequest requests a certificate chain from a certificate server.
type CertRequest struct {
	SrcAddr      net.Addr
	IfId         addr.IfId
	SrcIsd       addr.ISD
	SrcAd        addr.AD
	TargetIsd    addr.ISD
	TargetAd     addr.AD
	CertVersion  uint64
}

// TRCRequest requests a TRC from a certificate server.
type TRCRequest struct {
	SrcAddr    net.Addr
	IfId       addr.IfId
	SrcIsd     addr.ISD
	SrcAd      addr.AD
	TargetIsd  addr.ISD
	TrcVersion uint64
}

// CertReply carries a base64-independent (already decoded) certificate
// chain payload in reply to a CertRequest; base64 framing is a wire-layer
// concern handled by the transport, not by this type.
type CertReply struct {
	CertIsd     addr.ISD
	CertAd      addr.AD
	CertVersion uint64
	Raw         []byte
}

// TRCReply carries a decoded TRC payload in reply to a TRCRequest.
type TRCReply struct {
	TrcIsd     addr.ISD
	TrcVersion uint64
	Raw        []byte
}

// PathSegType distinguishes the three kinds of path-segment registration
// (spec.md §4.6, §4.7).
type PathSegType uint8

const (
	SegCore PathSegType = iota
	SegUp
	SegDown
)

// PathSegmentInfo identifies the source/destination endpoints of a
// PathSegmentRecords registration.
type PathSegmentInfo struct {
	Type PathSegType
	Src  addr.IsdAs
	Dst  addr.IsdAs
}

// PathSegmentRecords is the registration message sent to path servers
// (spec.md §4.6, §4.7): one or more path segments, tagged with Info, plus
// an optional reverse Path used to route the message toward the
// originating core path server rather than straight to its destination
// address.
type PathSegmentRecords struct {
	Info PathSegmentInfo
	Segs []*seg.PathSegment
	// Path, if non-nil, is the segment whose hop sequence the message
	// should be reverse-routed along instead of sent directly.
	Path *seg.PathSegment
}

// Messenger is everything the beacon pipeline needs from the
// dispatcher/socket layer: send beacons, trust-material requests/replies,
// and path-segment registrations to a given address.
type Messenger interface {
	SendBeacon(ctx context.Context, pcb *seg.PathSegment, to net.Addr) error
	SendCertChainRequest(ctx context.Context, req CertRequest, to net.Addr) error
	SendCertChainReply(ctx context.Context, rep CertReply, to net.Addr) error
	SendTRCRequest(ctx context.Context, req TRCRequest, to net.Addr) error
	SendTRCReply(ctx context.Context, rep TRCReply, to net.Addr) error
	SendPathSegmentRecords(ctx context.Context, recs PathSegmentRecords, to net.Addr) error
}
