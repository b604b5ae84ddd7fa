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

// Package env loads the Topology and Config views spec.md §1 treats as
// external collaborators ("Topology and configuration loading (provides an
// immutable Topology and Config view)"). Once loaded, both are immutable
// for the beacon server's lifetime (spec.md §5).
package env

import (
	"net"
	"time"

	"github.com/spf13/viper"

	"github.com/AnotherKamila/scion/go/lib/addr"
	"github.com/AnotherKamila/scion/go/lib/serrors"
)

// Interface describes one router-facing network interface.
type Interface struct {
	IfId       addr.IfId `mapstructure:"if_id"`
	NeighborAd addr.AD   `mapstructure:"neighbor_ad"`
}

// Router is one edge router's address and the interface it terminates.
type Router struct {
	Addr      string    `mapstructure:"addr"`
	Interface Interface `mapstructure:"interface"`
}

// UDPAddr resolves the router's textual address into a *net.UDPAddr.
func (r Router) UDPAddr() (*net.UDPAddr, error) {
	a, err := net.ResolveUDPAddr("udp", r.Addr)
	if err != nil {
		return nil, serrors.WrapStr("resolving router address", err, "addr", r.Addr)
	}
	return a, nil
}

// Topology is the immutable view of the beacon server's AD and its
// neighbors (spec.md §3).
type Topology struct {
	IsCoreAd bool      `mapstructure:"is_core_ad"`
	IsdId    addr.ISD  `mapstructure:"isd_id"`
	AdId     addr.AD   `mapstructure:"ad_id"`

	ChildEdgeRouters   []Router `mapstructure:"child_edge_routers"`
	RoutingEdgeRouters []Router `mapstructure:"routing_edge_routers"`
	PeerEdgeRouters    []Router `mapstructure:"peer_edge_routers"`

	PathServers        []string `mapstructure:"path_servers"`
	CertificateServers []string `mapstructure:"certificate_servers"`
}

// IA returns the topology's own (ISD, AD) pair.
func (t *Topology) IA() addr.IsdAs {
	return addr.IsdAs{ISD: t.IsdId, AD: t.AdId}
}

// Ifid2Addr resolves the neighbor address reachable via a given ingress
// interface ID, by scanning all router lists. Used to reverse-route
// registration messages toward the originating core path server
// (spec.md §4.6, §4.7).
func (t *Topology) Ifid2Addr(ifid addr.IfId) (*net.UDPAddr, error) {
	for _, list := range [][]Router{t.ChildEdgeRouters, t.RoutingEdgeRouters, t.PeerEdgeRouters} {
		for _, r := range list {
			if r.Interface.IfId == ifid {
				return r.UDPAddr()
			}
		}
	}
	return nil, serrors.New("no router found for interface", "if_id", ifid)
}

// Config is the immutable operational configuration (spec.md §3).
type Config struct {
	PropagationTime  time.Duration `mapstructure:"propagation_time"`
	RegistrationTime time.Duration `mapstructure:"registration_time"`
	RegistersPaths   bool          `mapstructure:"registers_paths"`

	// DebugAddr, if non-empty, is the listen address for the debug HTTP API
	// (go/pkg/bs/api.go). Empty disables it.
	DebugAddr string `mapstructure:"debug_addr"`
}

// LoadTopology reads a YAML topology file from path.
func LoadTopology(path string) (*Topology, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, serrors.WrapStr("reading topology file", err, "path", path)
	}
	var t Topology
	if err := v.Unmarshal(&t); err != nil {
		return nil, serrors.WrapStr("parsing topology file", err, "path", path)
	}
	return &t, nil
}

// LoadConfig reads a YAML config file from path. propagation_time and
// registration_time are given in whole seconds, per spec.md §3.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetDefault("propagation_time", 10)
	v.SetDefault("registration_time", 10)
	if err := v.ReadInConfig(); err != nil {
		return nil, serrors.WrapStr("reading config file", err, "path", path)
	}
	cfg := &Config{
		PropagationTime:  time.Duration(v.GetInt64("propagation_time")) * time.Second,
		RegistrationTime: time.Duration(v.GetInt64("registration_time")) * time.Second,
		RegistersPaths:   v.GetBool("registers_paths"),
		DebugAddr:        v.GetString("debug_addr"),
	}
	return cfg, nil
}
