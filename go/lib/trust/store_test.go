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

package trust_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AnotherKamila/scion/go/lib/addr"
	"github.com/AnotherKamila/scion/go/lib/trust"
)

func TestStoreAndLoadTRCRoundTrip(t *testing.T) {
	store, err := trust.New(t.TempDir())
	require.NoError(t, err)

	local := addr.IsdAs{ISD: 1, AD: 10}
	assert.False(t, store.HasTRC(local, 1, 3))

	raw := []byte("trc-bytes-v3")
	require.NoError(t, store.StoreTRC(local, 1, 3, raw))

	assert.True(t, store.HasTRC(local, 1, 3))
	got, err := store.LoadTRC(local, 1, 3)
	require.NoError(t, err)
	assert.Equal(t, raw, got)
}

func TestStoreAndLoadCertChainRoundTrip(t *testing.T) {
	store, err := trust.New(t.TempDir())
	require.NoError(t, err)

	local := addr.IsdAs{ISD: 1, AD: 10}
	target := addr.IsdAs{ISD: 1, AD: 11}
	assert.False(t, store.HasCertChain(local, target, 0))

	raw := []byte("cert-chain-bytes")
	require.NoError(t, store.StoreCertChain(local, target, 0, raw))

	assert.True(t, store.HasCertChain(local, target, 0))
	got, err := store.LoadCertChain(local, target, 0)
	require.NoError(t, err)
	assert.Equal(t, raw, got)
}

func TestLoadMissingTRCReturnsError(t *testing.T) {
	store, err := trust.New(t.TempDir())
	require.NoError(t, err)

	local := addr.IsdAs{ISD: 1, AD: 10}
	_, err = store.LoadTRC(local, 1, 99)
	assert.Error(t, err)
}
