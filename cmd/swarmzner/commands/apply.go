package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/swarmzner/cmd/swarmzner/handlers"
)

// Apply returns the command that creates or updates a swarm.
//
// Environment variables:
//
//	HCLOUD_TOKEN: Hetzner Cloud API token (required)
//	SWARMZNER_S3_ACCESS_KEY, SWARMZNER_S3_SECRET_KEY: object storage credentials (s3 secret store)
//	SWARMZNER_SECRET_KEY: passphrase sealing the join token
func Apply() *cobra.Command {
	var (
		configPath  string
		metricsFile string
	)

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Create or update the swarm",
		Long: `Create or update a Docker Swarm on Hetzner Cloud.

Apply provisions the private network and firewall rules, creates the
manager node, initializes the swarm, publishes the worker join token to
the secret store and creates the worker nodes, which join the swarm.

Re-running apply with an unchanged configuration creates nothing new.
Increasing instance_count adds workers that join the existing swarm.

Examples:
  # Create the swarm described in swarm.yaml
  swarmzner apply

  # Use a specific config and export deployment metrics
  swarmzner apply -c production.yaml --metrics-file /var/lib/node_exporter/swarmzner.prom`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Apply(cmd.Context(), handlers.ApplyOptions{
				ConfigPath:  configPath,
				MetricsFile: metricsFile,
				Verbose:     verbose,
			})
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", DefaultConfigPath, "Path to swarm configuration file")
	cmd.Flags().StringVar(&metricsFile, "metrics-file", "", "Write deployment metrics in Prometheus textfile format")

	return cmd
}
