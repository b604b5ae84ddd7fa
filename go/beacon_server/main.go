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

// The beacon_server command starts a Beacon Server in either core or
// local mode (spec.md §6): `beacon_server {core|local} <IP> <topo_file>
// <conf_file>`.
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/AnotherKamila/scion/go/lib/ctrl/pathpolicy"
	"github.com/AnotherKamila/scion/go/lib/env"
	"github.com/AnotherKamila/scion/go/lib/infra/transport"
	"github.com/AnotherKamila/scion/go/lib/log"
	"github.com/AnotherKamila/scion/go/lib/scrypto"
	"github.com/AnotherKamila/scion/go/lib/trust"
	"github.com/AnotherKamila/scion/go/pkg/bs"
	"github.com/AnotherKamila/scion/go/pkg/command"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "beacon_server",
		Short:         "Runs a SCION-style Beacon Server",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	pather := command.CommandPather(root)
	root.AddCommand(newRoleCmd("core", pather))
	root.AddCommand(newRoleCmd("local", pather))
	return root
}

func newRoleCmd(role string, pather command.Pather) *cobra.Command {
	return &cobra.Command{
		Use:     role + " <ip> <topo_file> <conf_file>",
		Short:   fmt.Sprintf("Start a %s-mode Beacon Server", role),
		Example: pather(role) + " 127.0.0.1:30041 topology.yaml bs.yaml",
		Args:    cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(role, args[0], args[1], args[2])
		},
	}
}

func run(role, ip, topoFile, confFile string) error {
	if err := log.Setup(log.Config{Console: log.ConsoleConfig{Level: "info"}}); err != nil {
		return err
	}

	topo, err := env.LoadTopology(topoFile)
	if err != nil {
		return fmt.Errorf("loading topology: %w", err)
	}
	if topo.IsCoreAd != (role == "core") {
		return fmt.Errorf("topology is_core_ad=%v does not match requested role %q", topo.IsCoreAd, role)
	}
	conf, err := env.LoadConfig(confFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	policyPath := filepath.Join(filepath.Dir(confFile), "path_policy.json")
	policy := pathpolicy.Default()
	if raw, rerr := readFileIfExists(policyPath); rerr == nil && raw != nil {
		policy = pathpolicy.Parse(raw)
	}

	keyPath := filepath.Join(filepath.Dir(confFile), fmt.Sprintf("ISD%d-AD%d-V0.key", topo.IsdId, topo.AdId))
	key, err := scrypto.LoadPrivateKey(keyPath)
	if err != nil {
		return fmt.Errorf("loading signing key: %w", err)
	}

	trustDir := filepath.Join(filepath.Dir(confFile), "trust")
	trustStore, err := trust.New(trustDir)
	if err != nil {
		return fmt.Errorf("initializing trust store: %w", err)
	}

	laddr, err := net.ResolveUDPAddr("udp", ip)
	if err != nil {
		return fmt.Errorf("parsing bind address: %w", err)
	}
	tr, err := transport.Listen(laddr)
	if err != nil {
		return fmt.Errorf("binding socket: %w", err)
	}
	defer tr.Close()

	srv := bs.New(topo, conf, policy, trustStore, tr, key)

	if conf.DebugAddr != "" {
		dbgLn, derr := bs.ListenAndServeDebug(conf.DebugAddr, bs.NewDebugHandler(srv))
		if derr != nil {
			return fmt.Errorf("starting debug API: %w", derr)
		}
		defer dbgLn.Close()
	}

	printStatus(role, ip, topo)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	switch role {
	case "core":
		return bs.NewCore(srv, tr).Run(ctx)
	case "local":
		return bs.NewLocal(srv, tr).Run(ctx)
	default:
		return fmt.Errorf("unknown role %q", role)
	}
}

func readFileIfExists(path string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	return raw, err
}

func printStatus(role, ip string, topo *env.Topology) {
	bold := color.New(color.Bold)
	if !isatty.IsTerminal(os.Stdout.Fd()) {
		bold.DisableColor()
	}
	bold.Printf("beacon_server")
	fmt.Printf(" starting role=%s ia=%s listen=%s\n", role, topo.IA(), ip)
}
