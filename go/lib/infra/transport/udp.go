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

// Package transport is a concrete, UDP+gob Messenger. It exists so the
// beacon server is runnable end to end in this exercise; spec.md §1 places
// the real dispatcher/socket layer out of scope, and the real wire codec
// (capnproto2, per the teacher's go.mod) requires schema codegen this
// repository does not perform (see DESIGN.md).
package transport

import (
	"bytes"
	"context"
	"encoding/gob"
	"net"

	"github.com/AnotherKamila/scion/go/lib/ctrl/seg"
	"github.com/AnotherKamila/scion/go/lib/infra/messenger"
	"github.com/AnotherKamila/scion/go/lib/log"
	"github.com/AnotherKamila/scion/go/lib/serrors"
	"go.uber.org/zap"
)

func init() {
	gob.Register(&net.UDPAddr{})
}

// envelope is the on-the-wire framing: a packet type tag plus its
// gob-encoded body.
type envelope struct {
	Type messenger.PacketType
	Body []byte
}

// UDP is a Messenger backed by a single UDP socket.
type UDP struct {
	conn *net.UDPConn
}

var _ messenger.Messenger = (*UDP)(nil)

// Listen opens a UDP socket at laddr and returns a UDP transport bound to
// it.
func Listen(laddr *net.UDPAddr) (*UDP, error) {
	conn, err := net.ListenUDP("udp", laddr)
	if err != nil {
		return nil, serrors.WrapStr("opening UDP socket", err)
	}
	return &UDP{conn: conn}, nil
}

// LocalAddr returns the transport's bound address.
func (u *UDP) LocalAddr() net.Addr {
	return u.conn.LocalAddr()
}

// Close closes the underlying socket.
func (u *UDP) Close() error {
	return u.conn.Close()
}

func (u *UDP) send(ctx context.Context, t messenger.PacketType, body interface{}, to net.Addr) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(body); err != nil {
		return serrors.WrapStr("encoding packet body", err, "type", t.String())
	}
	var wire bytes.Buffer
	if err := gob.NewEncoder(&wire).Encode(envelope{Type: t, Body: buf.Bytes()}); err != nil {
		return serrors.WrapStr("encoding envelope", err, "type", t.String())
	}
	udpAddr, ok := to.(*net.UDPAddr)
	if !ok {
		return serrors.New("transport requires a *net.UDPAddr destination", "got", to)
	}
	if _, err := u.conn.WriteTo(wire.Bytes(), udpAddr); err != nil {
		return serrors.WrapStr("sending packet", err, "type", t.String(), "to", to.String())
	}
	return nil
}

func (u *UDP) SendBeacon(ctx context.Context, pcb *seg.PathSegment, to net.Addr) error {
	return u.send(ctx, messenger.Beacon, pcb, to)
}

func (u *UDP) SendCertChainRequest(ctx context.Context, req messenger.CertRequest, to net.Addr) error {
	return u.send(ctx, messenger.CertReqLocal, req, to)
}

func (u *UDP) SendCertChainReply(ctx context.Context, rep messenger.CertReply, to net.Addr) error {
	return u.send(ctx, messenger.CertRep, rep, to)
}

func (u *UDP) SendTRCRequest(ctx context.Context, req messenger.TRCRequest, to net.Addr) error {
	return u.send(ctx, messenger.TrcReqLocal, req, to)
}

func (u *UDP) SendTRCReply(ctx context.Context, rep messenger.TRCReply, to net.Addr) error {
	return u.send(ctx, messenger.TrcRep, rep, to)
}

func (u *UDP) SendPathSegmentRecords(ctx context.Context, recs messenger.PathSegmentRecords, to net.Addr) error {
	return u.send(ctx, messenger.PathRec, recs, to)
}

// Inbound is one received, classified packet.
type Inbound struct {
	Type   messenger.PacketType
	Body   []byte
	Sender net.Addr
}

// ReadLoop blocks reading packets off the socket until ctx is canceled or
// the socket errors, delivering each to handle. It is the dispatcher's
// receive side (spec.md §5: "the dispatcher suspends on packet receive").
func (u *UDP) ReadLoop(ctx context.Context, handle func(Inbound)) error {
	buf := make([]byte, 64*1024)
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		n, sender, err := u.conn.ReadFrom(buf)
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			return serrors.WrapStr("reading from socket", err)
		}
		var env envelope
		if err := gob.NewDecoder(bytes.NewReader(buf[:n])).Decode(&env); err != nil {
			log.Warn("malformed packet, discarding", zap.Error(err), zap.Stringer("sender", sender))
			continue
		}
		handle(Inbound{Type: env.Type, Body: env.Body, Sender: sender})
	}
}

// DecodeBody gob-decodes an Inbound packet's body into v.
func DecodeBody(in Inbound, v interface{}) error {
	return gob.NewDecoder(bytes.NewReader(in.Body)).Decode(v)
}
