// Package compute bootstraps the swarm: it creates the manager node,
// initializes the swarm on it, hands the worker join token to the secret
// broker and then creates and joins every worker in parallel.
//
// Worker failures never abort their siblings. Every worker resolves before
// the phase reports, and all failures are returned together in a
// *provisioning.DeploymentError.
package compute
