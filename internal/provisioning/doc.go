// Package provisioning provides the shared context, state machine and error
// taxonomy for deploying a swarm.
//
// The work is organized into phases, each in its own subpackage:
//   - access/: deployer keypair and node metadata keys
//   - network/: network, subnet and firewall rules
//   - compute/: manager bootstrap, token hand-off and worker joins
//   - destroy/: teardown of everything labelled with the cluster
//
// Phases run sequentially through RunPhases and share a Context whose State
// is filled in as they complete.
package provisioning
