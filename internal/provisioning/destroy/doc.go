// Package destroy handles swarm teardown and resource cleanup.
//
// It removes every engine resource labelled with the cluster (servers first,
// then firewall rules, the network and SSH keys) and finally the secret
// container holding the join token. The deployer's private key file is
// left in place.
package destroy
