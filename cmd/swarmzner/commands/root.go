// Package commands defines the CLI command structure and flag bindings.
//
// Command execution is delegated to handler functions in the handlers
// package.
package commands

import "github.com/spf13/cobra"

// DefaultConfigPath is used when --config is not given.
const DefaultConfigPath = "swarm.yaml"

var verbose bool

// Root returns the root command for the swarmzner CLI.
func Root() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "swarmzner",
		Short:         "Provision Docker Swarm clusters on Hetzner Cloud",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	cmd.AddCommand(Apply())
	cmd.AddCommand(Destroy())
	cmd.AddCommand(Version())

	return cmd
}
