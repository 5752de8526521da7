package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/swarmzner/cmd/swarmzner/handlers"
)

// Destroy returns the destroy command.
func Destroy() *cobra.Command {
	var (
		configPath string
		yes        bool
	)

	cmd := &cobra.Command{
		Use:   "destroy",
		Short: "Destroy a swarm and all associated resources",
		Long: `Destroy removes every resource labelled with the swarm's name:
  - Servers (manager and workers)
  - Firewall rules
  - The private network and its subnet
  - The join token container in the secret store

The deployer SSH key file is left in place.

Example:
  swarmzner destroy -c swarm.yaml --yes

WARNING: This operation is irreversible.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Destroy(cmd.Context(), handlers.DestroyOptions{
				ConfigPath: configPath,
				Yes:        yes,
				Verbose:    verbose,
			})
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", DefaultConfigPath, "Path to swarm configuration file")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt")

	return cmd
}
