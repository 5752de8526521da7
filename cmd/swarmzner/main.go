// Package main is the entry point for the swarmzner CLI.
//
// swarmzner provisions a Docker Swarm on Hetzner Cloud: a private network
// with firewall rules, one manager node and a set of worker nodes that join
// the swarm through a join token kept in a versioned secret store.
//
// Commands: apply, destroy, version.
//
// For detailed usage information, run:
//
//	swarmzner --help
package main

import (
	"fmt"
	"os"

	"github.com/imamik/swarmzner/cmd/swarmzner/commands"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.SetVersionInfo(version, commit, date)
	if err := commands.Root().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
