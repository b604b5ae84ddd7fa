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

// Package command provides the small helper subcommand constructors use to
// build the full invocation path of a cobra command, for use in usage
// strings and examples.
package command

import "github.com/spf13/cobra"

// Pather returns the full command path a subcommand is mounted under,
// e.g. "beacon_server core". Passed down to constructors so they can
// render accurate usage examples without knowing their parent ahead of
// time.
type Pather func(name string) string

// CommandPather returns a Pather rooted at cmd.
func CommandPather(cmd *cobra.Command) Pather {
	return func(name string) string {
		return cmd.CommandPath() + " " + name
	}
}
