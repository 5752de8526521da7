// Package access prepares the deployer's SSH keypair and the authorized keys
// placed into every node's metadata. It performs no network I/O.
package access
