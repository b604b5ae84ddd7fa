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

package transport_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/AnotherKamila/scion/go/lib/ctrl/seg"
	"github.com/AnotherKamila/scion/go/lib/infra/messenger"
	"github.com/AnotherKamila/scion/go/lib/infra/transport"
)

func mustListen(t *testing.T) *transport.UDP {
	t.Helper()
	laddr, err := net.ResolveUDPAddr("udp", "127.0.0.1:0")
	require.NoError(t, err)
	tr, err := transport.Listen(laddr)
	require.NoError(t, err)
	t.Cleanup(func() { tr.Close() })
	return tr
}

func TestSendBeaconRoundTrip(t *testing.T) {
	sender := mustListen(t)
	receiver := mustListen(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan seg.PathSegment, 1)
	go receiver.ReadLoop(ctx, func(in transport.Inbound) {
		if in.Type != messenger.Beacon {
			return
		}
		var pcb seg.PathSegment
		if err := transport.DecodeBody(in, &pcb); err == nil {
			received <- pcb
		}
	})

	pcb := &seg.PathSegment{}
	pcb.AddAD(seg.ADMarking{PCBM: seg.PCBMarking{AdId: 10}})
	require.NoError(t, sender.SendBeacon(ctx, pcb, receiver.LocalAddr()))

	select {
	case got := <-received:
		require.Len(t, got.Ads, 1)
		require.EqualValues(t, 10, got.Ads[0].PCBM.AdId)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for beacon")
	}
}

func TestReadLoopDiscardsMalformedPacket(t *testing.T) {
	receiver := mustListen(t)
	sender, err := net.DialUDP("udp", nil, receiver.LocalAddr().(*net.UDPAddr))
	require.NoError(t, err)
	defer sender.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	handled := make(chan struct{}, 1)
	go receiver.ReadLoop(ctx, func(in transport.Inbound) {
		handled <- struct{}{}
	})

	_, err = sender.Write([]byte("not a valid gob envelope"))
	require.NoError(t, err)

	select {
	case <-handled:
		t.Fatal("malformed packet should not reach the handler")
	case <-time.After(200 * time.Millisecond):
	}
}
